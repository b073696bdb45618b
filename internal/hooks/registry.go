// Package hooks maps update files to the code that must run after their SQL
// has been applied.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aqasim81/crm-updater/internal/updatefile"
)

// ErrDuplicateHook indicates a second hook was registered for the same file.
var ErrDuplicateHook = errors.New("hook already registered")

// Func runs after the update file it is registered for has been applied.
type Func func(ctx context.Context) error

// Registry holds post-update hooks keyed by hook name
// ("updating_4_2_sql" for "4.2.sql").
type Registry struct {
	mu    sync.RWMutex
	hooks map[string]Func
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[string]Func)}
}

// Register adds a hook for the update file with the given filename.
func (r *Registry) Register(filename string, fn Func) error {
	if fn == nil {
		return fmt.Errorf("registering hook for %s: nil func", filename)
	}

	name := updatefile.HookName(filename)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.hooks[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHook, name)
	}

	r.hooks[name] = fn

	return nil
}

// MustRegister is Register for static wiring; it panics on error.
func (r *Registry) MustRegister(filename string, fn Func) {
	if err := r.Register(filename, fn); err != nil {
		panic(err)
	}
}

// Lookup returns the hook for a filename, if one is registered.
// A nil Registry has no hooks.
func (r *Registry) Lookup(filename string) (string, Func, bool) {
	name := updatefile.HookName(filename)

	if r == nil {
		return name, nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.hooks[name]

	return name, fn, ok
}

// Names returns the registered hook names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.hooks))
	for name := range r.hooks {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
