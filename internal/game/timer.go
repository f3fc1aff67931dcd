package game

import (
	"sync"
	"time"
)

// TurnTimer is a restartable one-shot countdown. Each Start supersedes the
// previous one; a superseded or stopped countdown never fires, even if its
// underlying timer already expired.
type TurnTimer struct {
	mu  sync.Mutex
	gen uint64
	t   *time.Timer
}

// Start schedules fire after d, cancelling any pending countdown.
func (tt *TurnTimer) Start(d time.Duration, fire func()) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	if tt.t != nil {
		tt.t.Stop()
	}
	tt.gen++
	gen := tt.gen
	tt.t = time.AfterFunc(d, func() {
		tt.mu.Lock()
		if tt.gen != gen {
			tt.mu.Unlock()
			return
		}
		tt.gen++
		tt.t = nil
		tt.mu.Unlock()
		fire()
	})
}

// Stop cancels the pending countdown, if any.
func (tt *TurnTimer) Stop() {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.gen++
	if tt.t != nil {
		tt.t.Stop()
		tt.t = nil
	}
}

// Pending reports whether a countdown is scheduled.
func (tt *TurnTimer) Pending() bool {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return tt.t != nil
}
