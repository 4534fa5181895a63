// File: loop/loop.go
// Author: momentics <momentics@gmail.com>
//
// EventLoop is L (§3) and C5: the background worker binding one engine
// and one reactor, accepting requests from any goroutine via Submit and
// delivering completions through a single callback, never invoked
// concurrently with itself.

package loop

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/momentics/liftcore/engine"
	"github.com/momentics/liftcore/reactor"
	"github.com/momentics/liftcore/request"
)

// EventLoop is the public core described by spec.md §6's operation
// table: New, Submit, ActiveCount, IsRunning, Stop.
type EventLoop struct {
	eng engine.Engine
	rx  reactor.Reactor
	cb  func(*request.Request)

	q *pendingQueue

	running     atomic.Bool
	activeCount atomic.Uint64

	stopOnce sync.Once
	stopMu   sync.Mutex
	stopCond *sync.Cond

	wakeupClosed bool
	timerClosed  bool

	doneCh chan struct{}
}

// New constructs an EventLoop around eng and rx, installs the
// engine<->reactor bridge callbacks, spawns the background worker, and
// blocks the caller until the worker is observed running -- per spec.md
// §4.5, "the caller may submit immediately after return".
func New(eng engine.Engine, rx reactor.Reactor, cb func(*request.Request)) (*EventLoop, error) {
	if eng == nil || rx == nil {
		return nil, fmt.Errorf("loop: engine and reactor must both be non-nil")
	}
	if cb == nil {
		cb = func(*request.Request) {}
	}

	l := &EventLoop{
		eng:    eng,
		rx:     rx,
		cb:     cb,
		q:      newPendingQueue(),
		doneCh: make(chan struct{}),
	}
	l.stopCond = sync.NewCond(&l.stopMu)

	eng.SetSocketFunction(l.onSocketAction)
	eng.SetTimerFunction(l.onTimerAction)
	rx.SetWakeupFunc(l.onWakeup)

	readyCh := make(chan struct{})
	go l.run(readyCh)
	<-readyCh

	return l, nil
}

func (l *EventLoop) run(readyCh chan struct{}) {
	defer close(l.doneCh)

	err := l.rx.Run(func() {
		l.running.Store(true)
		close(readyCh)
	})
	l.running.Store(false)
	if err != nil {
		log.Printf("[loop] reactor run exited: %v", err)
	}

	// Engine cleanup first, then reactor cleanup (spec.md §4.5 destructor
	// order): the reactor's own close callbacks can still reach into
	// engine-owned socket contexts, so the engine must outlive them.
	if err := l.eng.Close(); err != nil {
		log.Printf("[loop] engine close: %v", err)
	}
	if err := l.rx.Close(); err != nil {
		log.Printf("[loop] reactor close: %v", err)
	}
}

// onWakeup implements the C5 wakeup callback: drain Q, hand every request
// to the engine, and fold the drained count into active_count.
//
// AddHandle can finish a handle synchronously -- a DNS miss, an immediate
// connect error, an IPv6-only host against an IPv4-only dialer -- by
// queuing a completion and returning nil rather than an error. When that
// happens with no other handle left alive, the engine's next
// TimerFunction call is timeoutMs<0 ("no timer needed"), which never
// reaches checkActions. dispatchCompletions must therefore be called
// unconditionally after every drain, not only when a timer or fd event
// later fires, or a synchronous failure's completion is never delivered
// and its caller blocks in Do forever.
func (l *EventLoop) onWakeup() {
	drained := l.q.drain()
	if len(drained) == 0 {
		return
	}
	for _, r := range drained {
		if err := l.eng.AddHandle(r.Handle()); err != nil {
			r.SetStatus(engine.Status{Err: fmt.Errorf("loop: add handle: %w", err)})
			l.cb(r)
			continue
		}
	}
	l.activeCount.Add(uint64(len(drained)))
	l.dispatchCompletions()
}

// Submit pre-prepares r on the calling goroutine (so no blocking I/O ever
// happens on the worker), pushes it to the pending queue, and wakes the
// worker. A pre-prepare failure is returned synchronously and r never
// enters the queue (spec.md §7, error kind 3).
func (l *EventLoop) Submit(r *request.Request) error {
	if err := r.PrepareForPerform(); err != nil {
		return fmt.Errorf("loop: submit: %w", err)
	}
	l.q.push(r)
	if err := l.rx.Wake(); err != nil {
		return fmt.Errorf("loop: submit: wake: %w", err)
	}
	return nil
}

// ActiveCount returns a snapshot of (handles owned by the engine) +
// (queue depth at the last drain).
func (l *EventLoop) ActiveCount() uint64 { return l.activeCount.Load() }

// IsRunning reports whether the worker is between New's return and a
// completed Stop.
func (l *EventLoop) IsRunning() bool { return l.running.Load() }

// Stop runs the shutdown handshake (spec.md §4.7) and blocks until the
// worker has joined. Idempotent and safe to call from within the
// completion callback.
func (l *EventLoop) Stop() {
	l.stopOnce.Do(func() {
		_ = l.rx.StopTimer()

		l.rx.CloseWakeupAndTimer(
			func() {
				l.stopMu.Lock()
				l.wakeupClosed = true
				l.stopCond.Broadcast()
				l.stopMu.Unlock()
			},
			func() {
				l.stopMu.Lock()
				l.timerClosed = true
				l.stopCond.Broadcast()
				l.stopMu.Unlock()
			},
		)

		// Request loop exit before firing the final wakeup (rather than
		// after, as spec.md's step order literally reads): the worker
		// rechecks the exit flag every time it returns from a blocking
		// wait, so setting it first guarantees the wakeup this call is
		// about to fire is the wait that actually breaks the loop, even
		// if other sockets are still registered and would otherwise keep
		// it blocked indefinitely. The observable contract -- block until
		// both *_closed flags are true, then the worker exits and joins
		// -- is unchanged.
		l.rx.StopLoop()
		if err := l.rx.Wake(); err != nil {
			log.Printf("[loop] stop: wake: %v", err)
		}

		l.stopMu.Lock()
		for !(l.wakeupClosed && l.timerClosed) {
			l.stopCond.Wait()
		}
		l.stopMu.Unlock()

		<-l.doneCh
	})
}
