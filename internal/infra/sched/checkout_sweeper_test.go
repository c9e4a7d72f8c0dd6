//go:build !integration

package sched

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExpirer struct {
	cutoff time.Time
	limit  int
	n      int
	err    error
	calls  int
}

func (f *fakeExpirer) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	f.calls++
	f.cutoff, f.limit = cutoff, limit
	return f.n, f.err
}

func TestCheckoutSweeper(t *testing.T) {
	log := zerolog.New(io.Discard)
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	t.Run("should expire with the configured ttl and batch", func(t *testing.T) {
		f := &fakeExpirer{n: 3}
		s := NewCheckoutSweeper(f, "", 2*time.Hour, 50, &log)
		s.now = func() time.Time { return now }

		n, err := s.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, now.Add(-2*time.Hour), f.cutoff)
		assert.Equal(t, 50, f.limit)
	})

	t.Run("should report expirer errors", func(t *testing.T) {
		f := &fakeExpirer{err: errors.New("db down")}
		_, err := NewCheckoutSweeper(f, "", 0, 0, &log).RunOnce(context.Background())
		assert.Error(t, err)
		assert.Equal(t, 200, f.limit)
	})

	t.Run("should refuse a bad schedule", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		assert.Error(t, NewCheckoutSweeper(&fakeExpirer{}, "not a spec", 0, 0, &log).Start(ctx))
		assert.NoError(t, NewCheckoutSweeper(&fakeExpirer{}, "@every 1h", 0, 0, &log).Start(ctx))
	})
}
