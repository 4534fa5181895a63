//go:build windows
// +build windows

// File: reactor/reactor_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows reactor backend built on an I/O completion port. Socket
// readiness still arrives as completion packets (the engine is expected to
// post overlapped reads/writes keyed by fd); the wakeup primitive and the
// shared timer are both implemented by posting synthetic completion
// packets with reserved keys, since IOCP has no native eventfd/timerfd
// analogue.

package reactor

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/liftcore/affinity"
	"golang.org/x/sys/windows"
)

const (
	wakeupKey uintptr = ^uintptr(0)     // reserved completion key for Wake
	timerKey  uintptr = ^uintptr(0) - 1 // reserved completion key for the shared timer
)

type iocpReactor struct {
	iocp windows.Handle

	mu      sync.Mutex
	sockets map[uintptr]FDCallback

	wakeupFunc func()
	timerCB    TimerCallback
	timer      *time.Timer

	pendingCloses []func()
	stopRequested int32
	closed        int32

	numaNode int
}

// NewReactor constructs the Windows IOCP-backed Reactor. numaNode, if >= 0,
// is the NUMA node Run pins its calling goroutine's underlying OS thread
// to; -1 leaves the thread unpinned.
func NewReactor(numaNode int) (Reactor, error) {
	port, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("reactor: CreateIoCompletionPort: %w", err)
	}
	return &iocpReactor{
		iocp:     port,
		sockets:  make(map[uintptr]FDCallback),
		numaNode: numaNode,
	}, nil
}

// Watch implements Reactor. interest is accepted for symmetry with the
// epoll backend; IOCP readiness is overlapped-I/O driven, so the caller's
// own dial/read/write code is expected to post overlapped operations on
// fd directly and let their completion arrive keyed by fd.
func (r *iocpReactor) Watch(fd uintptr, interest FDEventType, cb FDCallback) (*SocketContext, error) {
	h := windows.Handle(fd)
	if _, err := windows.CreateIoCompletionPort(h, r.iocp, fd, 0); err != nil {
		return nil, fmt.Errorf("reactor: associate fd %d: %w", fd, err)
	}
	r.mu.Lock()
	r.sockets[fd] = cb
	r.mu.Unlock()
	return &SocketContext{fd: fd, rx: r}, nil
}

func (r *iocpReactor) modifyInterest(fd uintptr, interest FDEventType) error {
	// IOCP has no interest mask to modify; overlapped ops already in
	// flight determine what completes next. Nothing to do.
	return nil
}

func (r *iocpReactor) closeFD(fd uintptr, onClosed func()) error {
	r.mu.Lock()
	delete(r.sockets, fd)
	r.pendingCloses = append(r.pendingCloses, onClosed)
	r.mu.Unlock()
	return nil
}

func (r *iocpReactor) CloseWakeupAndTimer(onWakeupClosed, onTimerClosed func()) {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.pendingCloses = append(r.pendingCloses, onWakeupClosed, onTimerClosed)
	r.mu.Unlock()
}

func (r *iocpReactor) SetWakeupFunc(fn func()) { r.wakeupFunc = fn }

// Wake implements Reactor by posting a zero-byte completion with the
// reserved wakeup key. PostQueuedCompletionStatus is documented safe to
// call from any thread.
func (r *iocpReactor) Wake() error {
	if atomic.LoadInt32(&r.closed) == 1 {
		return ErrReactorClosed
	}
	if err := windows.PostQueuedCompletionStatus(r.iocp, 0, wakeupKey, nil); err != nil {
		return fmt.Errorf("reactor: PostQueuedCompletionStatus(wake): %w", err)
	}
	return nil
}

func (r *iocpReactor) ArmTimer(d time.Duration, cb TimerCallback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timerCB = cb
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(d, func() {
		_ = windows.PostQueuedCompletionStatus(r.iocp, 0, timerKey, nil)
	})
	return nil
}

func (r *iocpReactor) StopTimer() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	return nil
}

func (r *iocpReactor) StopLoop() {
	atomic.StoreInt32(&r.stopRequested, 1)
}

func (r *iocpReactor) Run(onReady func()) error {
	if r.numaNode >= 0 {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := affinity.PinCurrentThread(r.numaNode, affinity.PreferredCPUID(r.numaNode)); err != nil {
			log.Printf("[reactor] pin worker to numa node %d failed: %v", r.numaNode, err)
		}
	}
	if onReady != nil {
		onReady()
	}
	var bytes uint32
	var key uintptr
	var overlapped *windows.Overlapped
	for atomic.LoadInt32(&r.stopRequested) == 0 {
		err := windows.GetQueuedCompletionStatus(r.iocp, &bytes, &key, &overlapped, windows.INFINITE)
		if err != nil {
			return fmt.Errorf("reactor: GetQueuedCompletionStatus: %w", err)
		}
		r.dispatch(key)
		r.drainPendingCloses()
	}
	return nil
}

func (r *iocpReactor) dispatch(key uintptr) {
	defer func() { _ = recover() }()
	switch key {
	case wakeupKey:
		if r.wakeupFunc != nil {
			r.wakeupFunc()
		}
	case timerKey:
		if r.timerCB != nil {
			r.timerCB()
		}
	default:
		r.mu.Lock()
		cb, ok := r.sockets[key]
		r.mu.Unlock()
		if ok && cb != nil {
			cb(key, EventRead|EventWrite)
		}
	}
}

func (r *iocpReactor) drainPendingCloses() {
	r.mu.Lock()
	pending := r.pendingCloses
	r.pendingCloses = nil
	r.mu.Unlock()
	for _, fn := range pending {
		if fn == nil {
			continue
		}
		func() {
			defer func() { _ = recover() }()
			fn()
		}()
	}
}

func (r *iocpReactor) Close() error {
	if !atomic.CompareAndSwapInt32(&r.closed, 0, 1) {
		return nil
	}
	return windows.CloseHandle(r.iocp)
}
