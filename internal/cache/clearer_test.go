package cache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/crm-updater/internal/cache"
)

func TestClearer_Clear_runsFlushersInOrder(t *testing.T) {
	t.Parallel()

	var order []string
	record := func(name string) cache.Flusher {
		return cache.NewFlusherFunc(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	c := cache.NewClearer(
		record(cache.NameCache),
		record(cache.NameRoute),
		record(cache.NameConfig),
		record(cache.NameView),
	)

	require.NoError(t, c.Clear(context.Background()))
	assert.Equal(t, []string{"cache", "route", "config", "view"}, order)
	assert.Equal(t, order, c.Names())
}

func TestClearer_Clear_continuesAfterFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("redis down")
	viewFlushed := false

	c := cache.NewClearer(
		cache.NewFlusherFunc(cache.NameCache, func(context.Context) error { return boom }),
		cache.NewFlusherFunc(cache.NameView, func(context.Context) error {
			viewFlushed = true
			return nil
		}),
	)

	err := c.Clear(context.Background())

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "clearing cache cache")
	assert.True(t, viewFlushed)
}

func TestNewClearer_dropsNilFlushers(t *testing.T) {
	t.Parallel()

	var missing cache.Flusher

	c := cache.NewClearer(missing, cache.NewFlusherFunc(cache.NameView, func(context.Context) error { return nil }))

	assert.Equal(t, []string{cache.NameView}, c.Names())
	require.NoError(t, c.Clear(context.Background()))
}
