// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral reactor contract (C4) and the socket context it hands
// out to watchers (C1). Concrete backends live in epoll_reactor.go (Linux),
// reactor_windows.go (Windows), and reactor_stub.go (everywhere else).

package reactor

import (
	"errors"
	"sync/atomic"
	"time"
)

// FDEventType is a bitmask of socket readiness conditions, translated from
// whatever the platform poll primitive reports.
type FDEventType uint8

const (
	EventRead FDEventType = 1 << iota
	EventWrite
	EventError
)

func (e FDEventType) String() string {
	s := ""
	if e&EventRead != 0 {
		s += "R"
	}
	if e&EventWrite != 0 {
		s += "W"
	}
	if e&EventError != 0 {
		s += "E"
	}
	if s == "" {
		return "-"
	}
	return s
}

// FDCallback is invoked on the loop thread whenever a watched fd becomes
// ready. It never runs concurrently with another reactor callback.
type FDCallback func(fd uintptr, events FDEventType)

// TimerCallback is invoked on the loop thread when the shared one-shot
// timer expires.
type TimerCallback func()

var (
	ErrSocketContextClosed = errors.New("reactor: socket context is closing or closed")
	ErrReactorClosed       = errors.New("reactor: reactor is closed")
	ErrUnsupportedPlatform = errors.New("reactor: this platform is not supported")
)

// Reactor is the C4 collaborator contract: it owns the poll loop, the
// wakeup primitive, and the single shared timer, and hands out socket
// contexts (C1) for individual fds on request.
type Reactor interface {
	// Run blocks, serially dispatching fd/timer/wakeup callbacks, until
	// StopLoop is observed. onReady, if non-nil, is invoked exactly once,
	// synchronously, immediately before the first blocking wait — callers
	// use it to publish a "running" signal to whoever spawned the worker.
	Run(onReady func()) error

	// StopLoop requests the loop exit at its next idle turn. Does not by
	// itself unblock a pending wait; pair with Wake.
	StopLoop()

	// SetWakeupFunc installs the callback invoked on the loop thread each
	// time Wake is observed. Must be called before Run.
	SetWakeupFunc(fn func())

	// Wake asynchronously schedules one pass of the wakeup callback. Safe
	// to call from any thread, including before Run or after Close.
	Wake() error

	// ArmTimer (re)arms the shared one-shot timer, replacing any previous
	// arming. Loop-thread only.
	ArmTimer(d time.Duration, cb TimerCallback) error

	// StopTimer disarms the shared timer without invoking cb. Safe from
	// any thread; the shutdown handshake calls it off the loop thread.
	StopTimer() error

	// Watch registers fd for the given interest and returns its
	// SocketContext. Loop-thread only.
	Watch(fd uintptr, interest FDEventType, cb FDCallback) (*SocketContext, error)

	// CloseWakeupAndTimer tears down the wakeup and timer primitives as
	// part of the shutdown handshake (§4.7 step 2), invoking each callback
	// once the reactor has acknowledged that handle's closure.
	CloseWakeupAndTimer(onWakeupClosed, onTimerClosed func())

	// Close releases the underlying poll descriptor. Call only after Run
	// has returned.
	Close() error
}

// socketBackend is implemented by each platform Reactor and lets a
// SocketContext reach back into it without a public modify/close API.
type socketBackend interface {
	modifyInterest(fd uintptr, interest FDEventType) error
	closeFD(fd uintptr, onClosed func()) error
}

// funcBackend adapts two plain closures to socketBackend, letting
// NewSocketContext hand out real SocketContexts to backends (such as test
// doubles in other packages) that can't implement socketBackend's
// unexported methods directly.
type funcBackend struct {
	modify func(fd uintptr, interest FDEventType) error
	close  func(fd uintptr, onClosed func()) error
}

func (f *funcBackend) modifyInterest(fd uintptr, interest FDEventType) error {
	return f.modify(fd, interest)
}

func (f *funcBackend) closeFD(fd uintptr, onClosed func()) error {
	return f.close(fd, onClosed)
}

// NewSocketContext builds a SocketContext backed by the given
// modify/close closures. Intended for test doubles that need to hand out
// real *SocketContext values without reimplementing a whole Reactor
// backend.
func NewSocketContext(fd uintptr, modifyInterest func(uintptr, FDEventType) error, closeFD func(uintptr, func()) error) *SocketContext {
	return &SocketContext{fd: fd, rx: &funcBackend{modify: modifyInterest, close: closeFD}}
}

type contextState int32

const (
	ctxActive contextState = iota
	ctxClosing
	ctxClosed
)

func (s contextState) String() string {
	switch s {
	case ctxActive:
		return "active"
	case ctxClosing:
		return "closing"
	case ctxClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SocketContext is the per-socket binding between an engine-owned fd and
// the reactor's poll primitive (C1). It exists iff the engine has asked
// the reactor to watch the fd and has not yet asked it to stop.
type SocketContext struct {
	fd    uintptr
	state int32 // contextState, accessed atomically
	rx    socketBackend
	owner atomic.Value // any, set by the owning loop for diagnostics
}

// FD returns the watched file descriptor.
func (s *SocketContext) FD() uintptr { return s.fd }

// State reports the current position in the two-step close state machine.
func (s *SocketContext) State() contextState {
	return contextState(atomic.LoadInt32(&s.state))
}

// SetOwner stashes an opaque back-pointer for the owning loop's own
// bookkeeping (diagnostics only; the reactor never inspects it).
func (s *SocketContext) SetOwner(v any) { s.owner.Store(v) }

// Owner returns the value last passed to SetOwner, or nil.
func (s *SocketContext) Owner() any { return s.owner.Load() }

// StartRead registers read interest, replacing any previous interest.
func (s *SocketContext) StartRead() error {
	return s.setInterest(EventRead)
}

// StartWrite registers write interest, replacing any previous interest.
func (s *SocketContext) StartWrite() error {
	return s.setInterest(EventWrite)
}

// StartReadWrite registers combined read+write interest in one call, so
// callers needing both (e.g. a socket that is both readable and writable
// at once) don't lose one to the other's "replaces any previous interest"
// semantics by issuing StartRead then StartWrite separately.
func (s *SocketContext) StartReadWrite() error {
	return s.setInterest(EventRead | EventWrite)
}

func (s *SocketContext) setInterest(ev FDEventType) error {
	if s.State() != ctxActive {
		return ErrSocketContextClosed
	}
	return s.rx.modifyInterest(s.fd, ev)
}

// Close begins the two-step close: polling stops immediately, but the
// context is not freed until the reactor acknowledges the close via
// onDone. Calling Close more than once returns ErrSocketContextClosed on
// the second call.
func (s *SocketContext) Close(onDone func()) error {
	if !atomic.CompareAndSwapInt32(&s.state, int32(ctxActive), int32(ctxClosing)) {
		return ErrSocketContextClosed
	}
	return s.rx.closeFD(s.fd, func() {
		atomic.StoreInt32(&s.state, int32(ctxClosed))
		if onDone != nil {
			onDone()
		}
	})
}
