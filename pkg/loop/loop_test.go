package loop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestEvery(t *testing.T) {
	l := New(epoch)
	fired := 0
	h := l.Every(100*time.Millisecond, func(time.Time) { fired++ })

	l.Advance(50 * time.Millisecond)
	assert.Equal(t, 0, fired)
	l.Advance(50 * time.Millisecond)
	assert.Equal(t, 1, fired)
	l.Advance(250 * time.Millisecond)
	assert.Equal(t, 3, fired)

	h.Stop()
	l.Advance(time.Second)
	assert.Equal(t, 3, fired)
	assert.True(t, h.Stopped())

	tickers, _ := l.Active()
	assert.Zero(t, tickers)
}

func TestEveryCatchUpIsBounded(t *testing.T) {
	l := New(epoch)
	fired := 0
	l.Every(10*time.Millisecond, func(time.Time) { fired++ })

	l.Advance(time.Minute)
	assert.Equal(t, maxCatchUp, fired)

	l.Advance(10 * time.Millisecond)
	assert.Equal(t, maxCatchUp+1, fired)
}

func TestOnFrame(t *testing.T) {
	l := New(epoch)
	var frames []time.Time
	h := l.OnFrame(func(now time.Time) { frames = append(frames, now) })

	l.Advance(16 * time.Millisecond)
	l.Advance(16 * time.Millisecond)
	require.Len(t, frames, 2)
	assert.Equal(t, epoch.Add(32*time.Millisecond), frames[1])

	h.Stop()
	l.Advance(16 * time.Millisecond)
	assert.Len(t, frames, 2)
}

func TestStopInsideFrameSkipsLaterCallbacks(t *testing.T) {
	l := New(epoch)
	calls := 0
	var second *Handle
	l.OnFrame(func(time.Time) { second.Stop() })
	second = l.OnFrame(func(time.Time) { calls++ })

	l.Advance(time.Millisecond)
	assert.Zero(t, calls)
}

func TestPostRunsOnFrame(t *testing.T) {
	l := New(epoch)
	var order []string
	l.Post(func() {
		order = append(order, "first")
		l.Post(func() { order = append(order, "nested") })
	})
	assert.Empty(t, order)

	l.Advance(time.Millisecond)
	assert.Equal(t, []string{"first", "nested"}, order)
}

func TestGoPostsResultBack(t *testing.T) {
	l := New(epoch)
	var onLoop atomic.Bool
	result := ""

	l.Go(func() func() {
		return func() {
			onLoop.Store(true)
			result = "loaded"
		}
	})
	l.Wait()

	assert.True(t, onLoop.Load())
	assert.Equal(t, "loaded", result)
}

func TestRunStopsWithContext(t *testing.T) {
	l := New(time.Now())
	frames := 0
	l.OnFrame(func(time.Time) { frames++ })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := l.Run(ctx, 100)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Positive(t, frames)
}
