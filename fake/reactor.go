// Package fake
// Author: momentics <momentics@gmail.com>
//
// Reactor is a deterministic, platform-independent stand-in for
// reactor.Reactor: Run drains a channel of closures instead of polling
// real file descriptors, so loop.EventLoop's wiring can be exercised
// without epoll/IOCP or a real socket.

package fake

import (
	"sync"
	"time"

	rx "github.com/momentics/liftcore/reactor"
)

// Reactor is a fake reactor.Reactor. Wake and timer expiry are satisfied
// by scheduling a closure onto an internal channel that Run's single
// goroutine drains in order, the same single-threaded-callback guarantee
// the real backends provide. Watch schedules nothing.
type Reactor struct {
	mu       sync.Mutex
	wakeupFn func()
	jobs     chan func()
	stopped  chan struct{}
	timer    *time.Timer
	timerCb  rx.TimerCallback

	wakeupClosed bool
	timerClosed  bool
}

// NewReactor constructs a fake Reactor.
func NewReactor() *Reactor {
	return &Reactor{
		jobs:    make(chan func(), 256),
		stopped: make(chan struct{}),
	}
}

func (r *Reactor) SetWakeupFunc(fn func()) { r.wakeupFn = fn }

func (r *Reactor) Run(onReady func()) error {
	if onReady != nil {
		onReady()
	}
	for {
		select {
		case job := <-r.jobs:
			job()
		case <-r.stopped:
			return nil
		}
	}
}

func (r *Reactor) StopLoop() {
	select {
	case <-r.stopped:
	default:
		close(r.stopped)
	}
}

func (r *Reactor) Wake() error {
	select {
	case r.jobs <- func() {
		if r.wakeupFn != nil {
			r.wakeupFn()
		}
	}:
	default:
	}
	return nil
}

func (r *Reactor) ArmTimer(d time.Duration, cb rx.TimerCallback) error {
	r.mu.Lock()
	r.timerCb = cb
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(d, func() {
		r.jobs <- func() {
			r.mu.Lock()
			fired := r.timerCb
			r.mu.Unlock()
			if fired != nil {
				fired()
			}
		}
	})
	r.mu.Unlock()
	return nil
}

func (r *Reactor) StopTimer() error {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.mu.Unlock()
	return nil
}

// Watch returns a SocketContext whose interest changes are no-ops and whose
// close acknowledges immediately; neither touches an fd, and no readiness
// callback is ever delivered.
func (r *Reactor) Watch(fd uintptr, interest rx.FDEventType, cb rx.FDCallback) (*rx.SocketContext, error) {
	return rx.NewSocketContext(fd,
		func(uintptr, rx.FDEventType) error { return nil },
		func(fd uintptr, onClosed func()) error {
			if onClosed != nil {
				onClosed()
			}
			return nil
		},
	), nil
}

func (r *Reactor) CloseWakeupAndTimer(onWakeupClosed, onTimerClosed func()) {
	r.mu.Lock()
	r.wakeupClosed = true
	r.timerClosed = true
	r.mu.Unlock()
	if onWakeupClosed != nil {
		onWakeupClosed()
	}
	if onTimerClosed != nil {
		onTimerClosed()
	}
}

func (r *Reactor) Close() error { return nil }

var _ rx.Reactor = (*Reactor)(nil)
