// Package updater applies the SQL update files shipped with a release when
// the application boots.
package updater

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aqasim81/crm-updater/internal/database"
	"github.com/aqasim81/crm-updater/internal/hooks"
	"github.com/aqasim81/crm-updater/internal/settings"
	"github.com/aqasim81/crm-updater/internal/tracker"
	"github.com/aqasim81/crm-updater/internal/updatefile"
	"github.com/aqasim81/crm-updater/internal/updating"
)

// Outcomes reported for each file in the updates directory.
const (
	OutcomeApplied   = "applied"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
	OutcomeDiscarded = "discarded"
)

// maxSQLErrorLen caps the database error logged for a failed file.
const maxSQLErrorLen = 150

const logProcess = "[updates]"

// FileResult describes what happened to one file.
type FileResult struct {
	File    updatefile.File
	Outcome string
	Hook    string // name of the hook that ran, if any
	Err     error  // SQL error for OutcomeFailed, hook error for OutcomeApplied
}

// Report summarises a Run.
type Report struct {
	DebugRef       string
	SetupPending   bool // setup has not completed; nothing ran
	LockSkipped    bool // another process holds the update lock
	Files          []FileResult
	Updated        bool // at least one file was found and removed
	PendingActions int
	CachesCleared  bool
}

// ScriptExecutor runs the contents of one update file.
type ScriptExecutor interface {
	ExecScript(ctx context.Context, sql string) error
}

// UpdateTracker abstracts the updates table for testability.
type UpdateTracker interface {
	EnsureTable(ctx context.Context) error
	Exists(ctx context.Context, filename string) (bool, error)
	Record(ctx context.Context, p tracker.RecordParams) error
}

// PendingTasks returns the manual modal tasks waiting for an administrator.
type PendingTasks interface {
	PendingModal(ctx context.Context) (updating.Pending, error)
}

// CacheClearer flushes the application caches.
type CacheClearer interface {
	Clear(ctx context.Context) error
}

// Releaser is returned by a LockFunc and released when the run ends.
type Releaser interface {
	Release(ctx context.Context) error
}

// LockFunc acquires the cross-process update lock. It returns
// database.ErrLockNotAcquired when another process holds it.
type LockFunc func(ctx context.Context) (Releaser, error)

// Runner is the boot-time update routine.
type Runner struct {
	dir            string
	setupCompleted bool
	exec           ScriptExecutor
	tracker        UpdateTracker
	tasks          PendingTasks
	settings       *settings.Store
	hooks          *hooks.Registry
	caches         CacheClearer
	acquireLock    LockFunc
	logger         zerolog.Logger
	onFile         func(FileResult)
	newRef         func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithSetupCompleted enables the routine. Until setup has completed the
// database may not exist yet, so Run is a no-op.
func WithSetupCompleted(b bool) Option {
	return func(r *Runner) { r.setupCompleted = b }
}

// WithHooks sets the post-update hooks.
func WithHooks(h *hooks.Registry) Option {
	return func(r *Runner) { r.hooks = h }
}

// WithCacheClearer sets the caches flushed after files were processed.
func WithCacheClearer(c CacheClearer) Option {
	return func(r *Runner) { r.caches = c }
}

// WithLock sets the function that guards the updates directory.
func WithLock(fn LockFunc) Option {
	return func(r *Runner) { r.acquireLock = fn }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithProgressCallback sets a function called for each file processed.
func WithProgressCallback(fn func(FileResult)) Option {
	return func(r *Runner) { r.onFile = fn }
}

// New creates a Runner draining dir.
func New(
	dir string,
	exec ScriptExecutor,
	t UpdateTracker,
	tasks PendingTasks,
	store *settings.Store,
	opts ...Option,
) *Runner {
	r := &Runner{
		dir:      dir,
		exec:     exec,
		tracker:  t,
		tasks:    tasks,
		settings: store,
		logger:   zerolog.Nop(),
		newRef:   uuid.NewString,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run processes the updates directory once, publishes the pending modal
// actions and, when any file was processed, clears the caches.
//
// A script that fails to execute, or that ran but could not be recorded,
// is logged and deleted. Any other error (tracker lookup, filesystem,
// pending-task query) aborts the run.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{DebugRef: r.newRef()}
	log := r.logger.With().Str("process", logProcess).Str("debug_ref", report.DebugRef).Logger()

	if !r.setupCompleted {
		log.Debug().Msg("setup has not completed, skipping updates")

		report.SetupPending = true

		return report, nil
	}

	if err := r.processFiles(ctx, log, report); err != nil {
		return report, err
	}

	if err := r.publishPending(ctx, report); err != nil {
		return report, err
	}

	if report.Updated && r.caches != nil {
		if err := r.caches.Clear(ctx); err != nil {
			return report, fmt.Errorf("clearing caches: %w", err)
		}

		report.CachesCleared = true

		log.Info().Msg("caches cleared")
	}

	return report, nil
}

func (r *Runner) processFiles(ctx context.Context, log zerolog.Logger, report *Report) error {
	if r.acquireLock != nil {
		lock, err := r.acquireLock(ctx)
		if errors.Is(err, database.ErrLockNotAcquired) {
			ev := log.Warn()

			var locked *database.LockedError
			if errors.As(err, &locked) && locked.PID != 0 {
				ev = ev.Int32("holder_pid", locked.PID)
			}

			ev.Msg("another process is applying updates, skipping the updates folder")

			report.LockSkipped = true

			return nil
		}

		if err != nil {
			return fmt.Errorf("acquiring update lock: %w", err)
		}
		defer lock.Release(ctx) //nolint:errcheck // best-effort release on return
	}

	files, err := updatefile.Scan(r.dir)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return nil
	}

	if err := r.tracker.EnsureTable(ctx); err != nil {
		return err
	}

	for _, f := range files {
		res, err := r.processFile(ctx, log.With().Str("filename", f.Name).Logger(), f)
		if err != nil {
			return err
		}

		report.Files = append(report.Files, res)
		report.Updated = true

		if r.onFile != nil {
			r.onFile(res)
		}
	}

	return nil
}

func (r *Runner) processFile(ctx context.Context, log zerolog.Logger, f updatefile.File) (FileResult, error) {
	if !f.IsSQL() {
		log.Info().Msg("found a non sql file inside the updates folder, deleting it")

		return FileResult{File: f, Outcome: OutcomeDiscarded}, updatefile.Remove(f)
	}

	exists, err := r.tracker.Exists(ctx, f.Name)
	if err != nil {
		return FileResult{}, err
	}

	if exists {
		log.Info().Msg("the sql file has previously been executed, deleting it")

		return FileResult{File: f, Outcome: OutcomeDuplicate}, updatefile.Remove(f)
	}

	content, checksum, err := updatefile.Read(f)
	if err != nil {
		return FileResult{}, err
	}

	log.Info().Msg("the sql file has not previously been executed, executing it")

	if execErr := r.exec.ExecScript(ctx, content); execErr != nil {
		log.Error().
			Str("severity", "critical").
			Str("sql_error", truncate(execErr.Error(), maxSQLErrorLen)).
			Msg("the sql file failed to execute, deleting it")

		return FileResult{File: f, Outcome: OutcomeFailed, Err: execErr}, updatefile.Remove(f)
	}

	log.Info().Msg("the sql file executed ok, deleting it")

	// The script has run; keeping the file would run it again next boot.
	if recErr := r.tracker.Record(ctx, tracker.RecordParams{Filename: f.Name, Checksum: checksum}); recErr != nil {
		log.Error().
			Str("severity", "critical").
			Str("sql_error", truncate(recErr.Error(), maxSQLErrorLen)).
			Msg("the sql file executed but could not be recorded, deleting it")

		return FileResult{File: f, Outcome: OutcomeFailed, Err: recErr}, updatefile.Remove(f)
	}

	if err := updatefile.Remove(f); err != nil {
		return FileResult{}, err
	}

	res := FileResult{File: f, Outcome: OutcomeApplied}

	name, hook, ok := r.hooks.Lookup(f.Name)
	if !ok {
		return res, nil
	}

	res.Hook = name

	if err := hook(ctx); err != nil {
		log.Error().Err(err).Str("hook", name).Msg("the update hook failed")

		res.Err = err

		return res, nil
	}

	log.Info().Str("hook", name).Msg("the update hook executed")

	return res, nil
}

// publishPending exposes the first pending modal task to the frontend.
func (r *Runner) publishPending(ctx context.Context, report *Report) error {
	pending, err := r.tasks.PendingModal(ctx)
	if err != nil {
		return fmt.Errorf("loading pending updating tasks: %w", err)
	}

	if pending.Count > 0 && pending.First != nil {
		report.PendingActions = int(pending.Count)

		r.settings.Set(map[string]any{
			settings.KeyPendingActions: report.PendingActions,
			settings.KeyRequestPath:    pending.First.RequestPath,
			settings.KeyUpdatePath:     pending.First.UpdatePath,
		})

		return nil
	}

	r.settings.Set(map[string]any{
		settings.KeyPendingActions: 0,
		settings.KeyRequestPath:    "",
		settings.KeyUpdatePath:     "",
	})

	return nil
}

// Publish refreshes the pending modal actions without touching the updates
// directory, e.g. after an administrator completed a task.
func (r *Runner) Publish(ctx context.Context) (int, error) {
	report := &Report{}
	if err := r.publishPending(ctx, report); err != nil {
		return 0, err
	}

	return report.PendingActions, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	return string([]rune(s)[:n])
}
