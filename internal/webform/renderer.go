// Package webform renders the form-builder field elements.
package webform

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates/*.html
var templateFiles embed.FS

// Element types with a template.
const (
	ElementText = "text"
)

// ErrUnknownElement is returned for an element type with no template.
var ErrUnknownElement = errors.New("unknown webform element")

// Flag is a boolean that also accepts the string forms a form builder posts:
// "yes", "on", "true" and "1". Anything else is false.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag(b)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = n.String() == "1"
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding flag %s: %w", data, err)
	}

	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "on", "true", "1":
		*f = true
	default:
		*f = false
	}

	return nil
}

// Field is the definition of one form field.
type Field struct {
	Required    Flag   `json:"required"`
	Label       string `json:"label"`
	Tooltip     string `json:"tooltip"`
	Class       string `json:"class"`
	Name        string `json:"name"`
	Placeholder string `json:"placeholder"`
}

// Renderer turns field definitions into HTML. Templates are compiled once
// and cached until Reset.
type Renderer struct {
	mu     sync.RWMutex
	set    *pongo2.TemplateSet
	policy *bluemonday.Policy
}

// NewRenderer returns a Renderer over the embedded templates.
func NewRenderer() (*Renderer, error) {
	sub, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		return nil, fmt.Errorf("opening webform templates: %w", err)
	}

	return &Renderer{
		set:    pongo2.NewSet("webform", pongo2.NewFSLoader(sub)),
		policy: bluemonday.StrictPolicy(),
	}, nil
}

// Render renders the element of the given type.
func (r *Renderer) Render(element string, f Field) (string, error) {
	if element != ElementText {
		return "", fmt.Errorf("%w: %q", ErrUnknownElement, element)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	tpl, err := r.set.FromCache(element + ".html")
	if err != nil {
		return "", fmt.Errorf("loading %s template: %w", element, err)
	}

	// label and tooltip are sanitized to escaped text, the rest is autoescaped
	var buf bytes.Buffer
	if err := tpl.ExecuteWriter(pongo2.Context{
		"required":    bool(f.Required),
		"label":       r.policy.Sanitize(f.Label),
		"has_tooltip": f.Tooltip != "",
		"tooltip":     r.policy.Sanitize(f.Tooltip),
		"class":       f.Class,
		"name":        f.Name,
		"placeholder": f.Placeholder,
	}, &buf); err != nil {
		return "", fmt.Errorf("rendering %s element: %w", element, err)
	}

	return buf.String(), nil
}

// RenderText renders a text input.
func (r *Renderer) RenderText(f Field) (string, error) {
	return r.Render(ElementText, f)
}

// Reset drops the compiled templates.
func (r *Renderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.set.CleanCache()
}

// Name implements cache.Flusher.
func (r *Renderer) Name() string { return "view" }

// Flush implements cache.Flusher.
func (r *Renderer) Flush(_ context.Context) error {
	r.Reset()
	return nil
}
