// Package loop is the single cooperative event loop the globe runs on. State machines,
// frame callbacks and tickers all execute on the loop goroutine; other goroutines
// hand results back with Post.
package loop

import (
	"context"
	"sync"
	"time"
)

// maxCatchUp bounds how many missed periods a ticker replays in one frame
// before it is re-phased to the current time.
const maxCatchUp = 4

// Loop schedules closures, per-frame callbacks and fixed-period tickers.
// Only Post and Go may be called from other goroutines.
type Loop struct {
	mu     sync.Mutex
	posted []func()

	work sync.WaitGroup

	now     time.Time
	tickers []*Handle
	frames  []*Handle
}

// Handle controls a periodic source. Stop is idempotent.
type Handle struct {
	fn      func(now time.Time)
	period  time.Duration
	next    time.Time
	stopped bool
}

// Stop cancels the source. A stopped handle never fires again, even later in the
// frame it was stopped in.
func (h *Handle) Stop() {
	if h != nil {
		h.stopped = true
	}
}

// Stopped reports whether Stop was called.
func (h *Handle) Stopped() bool { return h.stopped }

// New creates a loop whose clock starts at now.
func New(now time.Time) *Loop {
	return &Loop{now: now}
}

// Now is the time of the current frame.
func (l *Loop) Now() time.Time { return l.now }

// Post queues fn to run on the loop at the start or end of the next frame.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.posted = append(l.posted, fn)
	l.mu.Unlock()
}

// Go runs blocking work off the loop. The closure work returns, if any, is posted
// back and runs on the loop.
func (l *Loop) Go(work func() func()) {
	l.work.Add(1)
	go func() {
		defer l.work.Done()
		if done := work(); done != nil {
			l.Post(done)
		}
	}()
}

// Every fires fn every period, starting one period from now.
func (l *Loop) Every(period time.Duration, fn func(now time.Time)) *Handle {
	if period <= 0 {
		panic("loop: non-positive ticker period")
	}
	h := &Handle{fn: fn, period: period, next: l.now.Add(period)}
	l.tickers = append(l.tickers, h)
	return h
}

// OnFrame calls fn once per frame until stopped.
func (l *Loop) OnFrame(fn func(now time.Time)) *Handle {
	h := &Handle{fn: fn}
	l.frames = append(l.frames, h)
	return h
}

// Frame advances the clock to now and runs one frame: posted closures, due
// tickers, frame callbacks, then anything they posted.
func (l *Loop) Frame(now time.Time) {
	if now.After(l.now) {
		l.now = now
	}
	l.Flush()

	for _, h := range append([]*Handle(nil), l.tickers...) {
		for fired := 0; !h.stopped && !h.next.After(l.now); fired++ {
			if fired == maxCatchUp {
				h.next = l.now.Add(h.period)
				break
			}
			h.next = h.next.Add(h.period)
			h.fn(l.now)
		}
	}

	for _, h := range append([]*Handle(nil), l.frames...) {
		if !h.stopped {
			h.fn(l.now)
		}
	}

	l.Flush()
	l.tickers = compact(l.tickers)
	l.frames = compact(l.frames)
}

// Advance runs a frame d after the current one.
func (l *Loop) Advance(d time.Duration) {
	l.Frame(l.now.Add(d))
}

// Flush runs posted closures until none are left.
func (l *Loop) Flush() {
	for {
		l.mu.Lock()
		posted := l.posted
		l.posted = nil
		l.mu.Unlock()
		if len(posted) == 0 {
			return
		}
		for _, fn := range posted {
			fn()
		}
	}
}

// Wait blocks until all work started with Go has finished, then flushes the
// closures it posted.
func (l *Loop) Wait() {
	l.work.Wait()
	l.Flush()
}

// Active returns the number of live tickers and frame callbacks.
func (l *Loop) Active() (tickers, frames int) {
	for _, h := range l.tickers {
		if !h.stopped {
			tickers++
		}
	}
	for _, h := range l.frames {
		if !h.stopped {
			frames++
		}
	}
	return tickers, frames
}

// Run drives the loop from the wall clock at fps frames per second until ctx is done.
func (l *Loop) Run(ctx context.Context, fps int) error {
	if fps <= 0 {
		fps = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			l.Frame(now)
		}
	}
}

func compact(handles []*Handle) []*Handle {
	live := handles[:0]
	for _, h := range handles {
		if !h.stopped {
			live = append(live, h)
		}
	}
	for i := len(live); i < len(handles); i++ {
		handles[i] = nil
	}
	return live
}
