package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aqasim81/crm-updater/internal/settings"
	"github.com/aqasim81/crm-updater/internal/updating"
	"github.com/aqasim81/crm-updater/internal/webform"
)

const maxBodyBytes = 1 << 20

// apiError is an error with the status code it is reported under.
type apiError struct {
	Status int
	Err    error
}

func (e *apiError) Error() string { return e.Err.Error() }

func badRequest(err error) *apiError { return &apiError{Status: http.StatusBadRequest, Err: err} }
func notFound(err error) *apiError   { return &apiError{Status: http.StatusNotFound, Err: err} }
func internal(err error) *apiError   { return &apiError{Status: http.StatusInternalServerError, Err: err} }

type handlerFunc func(w http.ResponseWriter, r *http.Request) *apiError

// handle adapts a handlerFunc, writing any returned error as JSON.
func handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiErr := fn(w, r)
		if apiErr == nil {
			return
		}

		msg := apiErr.Err.Error()
		if apiErr.Status >= http.StatusInternalServerError {
			msg = http.StatusText(apiErr.Status)
		}

		respondJSON(w, apiErr.Status, map[string]string{
			"error":      msg,
			"request_id": middleware.GetReqID(r.Context()),
		})
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type pendingResponse struct {
	Count       int    `json:"count"`
	RequestPath string `json:"request_path,omitempty"`
	UpdatePath  string `json:"update_path,omitempty"`
}

func (s *Server) pending() pendingResponse {
	return pendingResponse{
		Count:       s.deps.Settings.Int(settings.KeyPendingActions),
		RequestPath: s.deps.Settings.String(settings.KeyRequestPath),
		UpdatePath:  s.deps.Settings.String(settings.KeyUpdatePath),
	}
}

func (s *Server) handlePending(w http.ResponseWriter, _ *http.Request) *apiError {
	respondJSON(w, http.StatusOK, s.pending())
	return nil
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) *apiError {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil || id == 0 {
		return badRequest(fmt.Errorf("invalid updating id %q", chi.URLParam(r, "id")))
	}

	if err := s.deps.Tasks.Complete(r.Context(), uint(id)); err != nil {
		if errors.Is(err, updating.ErrNotFound) {
			return notFound(err)
		}

		s.deps.Logger.Error().Err(err).Uint64("updating_id", id).Msg("completing updating task")

		return internal(err)
	}

	if _, err := s.deps.Publisher.Publish(r.Context()); err != nil {
		s.deps.Logger.Error().Err(err).Msg("republishing pending actions")
		return internal(err)
	}

	respondJSON(w, http.StatusOK, s.pending())

	return nil
}

func (s *Server) handleElement(w http.ResponseWriter, r *http.Request) *apiError {
	var field webform.Field

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&field); err != nil {
		return badRequest(fmt.Errorf("decoding field: %w", err))
	}

	html, err := s.deps.Renderer.Render(chi.URLParam(r, "element"), field)
	if err != nil {
		if errors.Is(err, webform.ErrUnknownElement) {
			return notFound(err)
		}

		s.deps.Logger.Error().Err(err).Msg("rendering webform element")

		return internal(err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))

	return nil
}
