// Package fake
// Author: momentics <momentics@gmail.com>
//
// Engine is a deterministic, single-goroutine stand-in for engine.Engine:
// instead of dialing real sockets it completes every handle immediately
// inside AddHandle, which is enough for exercising
// loop.EventLoop's wiring without a network.

package fake

import (
	"sync"

	"github.com/momentics/liftcore/engine"
)

// Engine is a fake engine.Engine. Outcome, if set, is returned for every
// AddHandle; otherwise every handle completes with Status{Code: 200}.
type Engine struct {
	mu      sync.Mutex
	closed  bool
	done    []engine.Message
	Outcome func(h *engine.Handle) engine.Status
	timerFn engine.TimerFunction

	AddHandleCalls int
}

// NewEngine constructs a fake Engine.
func NewEngine() *Engine { return &Engine{} }

func (e *Engine) SetSocketFunction(engine.SocketFunction) {}

func (e *Engine) SetTimerFunction(fn engine.TimerFunction) { e.timerFn = fn }

// AddHandle immediately resolves h and queues its completion for the
// next Drain, mirroring a transfer that finishes synchronously -- a
// DNS miss or an immediate connect error in the real engine. It then
// fires the installed TimerFunction with timeoutMs==-1, exactly like
// multiEngine's recomputeTimer does once the arena is left with no
// other handle alive: no timer is armed and checkActions never runs.
// The queued completion above must still reach the caller through
// onWakeup's own drain, not through this timer call.
func (e *Engine) AddHandle(h *engine.Handle) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return engine.ErrEngineClosed
	}
	e.AddHandleCalls++

	st := engine.Status{Code: 200}
	if e.Outcome != nil {
		st = e.Outcome(h)
	}
	e.done = append(e.done, engine.Message{ID: h.ID, Status: st, UserData: h.UserData})
	fn := e.timerFn
	e.mu.Unlock()

	if fn != nil {
		fn(-1)
	}
	return nil
}

func (e *Engine) RemoveHandle(id engine.HandleID) (*engine.Handle, error) {
	return nil, engine.ErrUnknownHandle
}

func (e *Engine) SocketAction(fd uintptr, mask engine.ReadyMask) (int, error) {
	return 0, nil
}

// Drain returns and clears queued completions.
func (e *Engine) Drain() []engine.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.done
	e.done = nil
	return out
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

var _ engine.Engine = (*Engine)(nil)
