// Package cache clears the application caches after an update has changed
// the database underneath them.
package cache

import (
	"context"
	"errors"
	"fmt"
)

// Names of the caches flushed after an update run.
const (
	NameCache  = "cache"
	NameRoute  = "route"
	NameConfig = "config"
	NameView   = "view"
)

// Flusher empties one cache.
type Flusher interface {
	Name() string
	Flush(ctx context.Context) error
}

// FlusherFunc adapts a function to a named Flusher.
type FlusherFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// NewFlusherFunc returns a Flusher called name that runs fn.
func NewFlusherFunc(name string, fn func(ctx context.Context) error) FlusherFunc {
	return FlusherFunc{name: name, fn: fn}
}

// Name implements Flusher.
func (f FlusherFunc) Name() string { return f.name }

// Flush implements Flusher.
func (f FlusherFunc) Flush(ctx context.Context) error { return f.fn(ctx) }

// Clearer flushes a fixed list of caches in order.
type Clearer struct {
	flushers []Flusher
}

// NewClearer returns a Clearer for flushers; nil entries are dropped.
func NewClearer(flushers ...Flusher) *Clearer {
	c := &Clearer{}

	for _, f := range flushers {
		if f != nil {
			c.flushers = append(c.flushers, f)
		}
	}

	return c
}

// Names returns the flusher names in flush order.
func (c *Clearer) Names() []string {
	names := make([]string, 0, len(c.flushers))
	for _, f := range c.flushers {
		names = append(names, f.Name())
	}

	return names
}

// Clear runs every flusher, even after one fails, and joins the errors.
func (c *Clearer) Clear(ctx context.Context) error {
	var errs []error

	for _, f := range c.flushers {
		if err := f.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clearing %s cache: %w", f.Name(), err))
		}
	}

	return errors.Join(errs...)
}
