package connectivity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarNotifiesOnTransitionOnly(t *testing.T) {
	v := NewVar(false)
	var seen []bool
	stop := v.Watch(func(online bool) { seen = append(seen, online) })

	v.Set(false)
	v.Set(true)
	v.Set(true)
	v.Set(false)

	assert.Equal(t, []bool{true, false}, seen)

	stop()
	stop()
	v.Set(true)
	assert.Len(t, seen, 2, "stopped watcher receives nothing")
	assert.Equal(t, 0, v.Watchers())
}

func TestVarWatcherMaySetFromCallback(t *testing.T) {
	v := NewVar(false)
	other := NewVar(false)
	v.Watch(func(online bool) { other.Set(online) })

	v.Set(true)
	assert.True(t, other.Online())
}

func TestAlways(t *testing.T) {
	assert.True(t, Always(true).Online())
	assert.False(t, Always(false).Online())
	Always(true).Watch(func(bool) { t.Fatal("never called") })()
}

func TestProbeCheck(t *testing.T) {
	var fail atomic.Bool
	p := NewProbe(func(context.Context) error {
		if fail.Load() {
			return errors.New("connection refused")
		}
		return nil
	}, time.Second, nil)

	assert.False(t, p.Online(), "offline until first check")
	assert.True(t, p.Check(context.Background()))
	assert.True(t, p.Online())

	fail.Store(true)
	assert.False(t, p.Check(context.Background()))
	assert.False(t, p.Online())
}

func TestProbeRunStopsOfflineOnCancel(t *testing.T) {
	p := NewProbe(func(context.Context) error { return nil }, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, p.Online, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, p.Online())
}

func TestProbeDefaultInterval(t *testing.T) {
	p := NewProbe(func(context.Context) error { return nil }, 0, nil)
	assert.Equal(t, DefaultProbeInterval, p.interval)
}
