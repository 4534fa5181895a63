//go:build linux
// +build linux

// File: reactor/epoll_reactor.go
// Author: momentics <momentics@gmail.com>
//
// Linux reactor backend: epoll(7) for socket readiness, eventfd(2) for the
// cross-thread wakeup primitive, timerfd_create(2) for the shared
// single-shot timer. All three are multiplexed on one epoll instance so
// Run blocks in a single EpollWait.

package reactor

import (
	"encoding/binary"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/liftcore/affinity"
	"golang.org/x/sys/unix"
)

type fdKind int

const (
	kindSocket fdKind = iota
	kindWakeup
	kindTimer
)

type fdEntry struct {
	kind fdKind
	cb   FDCallback
}

// epollReactor implements Reactor on Linux.
type epollReactor struct {
	epfd       int
	wakeupFD   int
	timerFD    int
	wakeupFunc func()
	timerCB    TimerCallback

	mu      sync.Mutex // guards entries; entries itself only mutated on loop thread
	entries map[uintptr]*fdEntry

	pendingCloses []func()
	stopRequested int32
	closed        int32

	numaNode int
}

// NewReactor constructs the Linux epoll-backed Reactor, pre-registering the
// wakeup eventfd and the timerfd so Run can multiplex all three sources.
// numaNode, if >= 0, is the NUMA node Run pins its calling goroutine's
// underlying OS thread to (the affinity package's "pin the background
// worker" contract); -1 leaves the thread unpinned.
func NewReactor(numaNode int) (Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	wakeupFD, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("reactor: eventfd: %w", err)
	}
	timerFD, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		unix.Close(wakeupFD)
		return nil, fmt.Errorf("reactor: timerfd_create: %w", err)
	}

	r := &epollReactor{
		epfd:     epfd,
		wakeupFD: wakeupFD,
		timerFD:  timerFD,
		entries:  make(map[uintptr]*fdEntry),
		numaNode: numaNode,
	}

	if err := r.epollAdd(uintptr(wakeupFD), unix.EPOLLIN); err != nil {
		r.Close()
		return nil, err
	}
	r.entries[uintptr(wakeupFD)] = &fdEntry{kind: kindWakeup}

	if err := r.epollAdd(uintptr(timerFD), unix.EPOLLIN); err != nil {
		r.Close()
		return nil, err
	}
	r.entries[uintptr(timerFD)] = &fdEntry{kind: kindTimer}

	return r, nil
}

func (r *epollReactor) epollAdd(fd uintptr, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, int(fd), &ev); err != nil {
		return fmt.Errorf("reactor: epoll_ctl add fd %d: %w", fd, err)
	}
	return nil
}

func epollEventsFor(interest FDEventType) uint32 {
	var ev uint32
	if interest&EventRead != 0 {
		ev |= unix.EPOLLIN
	}
	if interest&EventWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

// Watch implements Reactor.
func (r *epollReactor) Watch(fd uintptr, interest FDEventType, cb FDCallback) (*SocketContext, error) {
	if err := r.epollAdd(fd, epollEventsFor(interest)); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.entries[fd] = &fdEntry{kind: kindSocket, cb: cb}
	r.mu.Unlock()
	return &SocketContext{fd: fd, rx: r}, nil
}

// modifyInterest implements socketBackend; replaces interest wholesale, per
// the Socket Context contract ("replaces any previous interest").
func (r *epollReactor) modifyInterest(fd uintptr, interest FDEventType) error {
	ev := unix.EpollEvent{Events: epollEventsFor(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, int(fd), &ev); err != nil {
		return fmt.Errorf("reactor: epoll_ctl mod fd %d: %w", fd, err)
	}
	return nil
}

// closeFD implements socketBackend: stop watching now, defer the
// acknowledgment to after the current dispatch batch so a callback for fd
// already queued in this EpollWait result cannot race the free.
func (r *epollReactor) closeFD(fd uintptr, onClosed func()) error {
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)
	r.mu.Lock()
	delete(r.entries, fd)
	r.pendingCloses = append(r.pendingCloses, onClosed)
	r.mu.Unlock()
	return nil
}

// CloseWakeupAndTimer implements Reactor. The actual unregister-and-close
// of both fds is deferred exactly like closeFD: if it ran synchronously
// here, the wakeupFD would already be gone from the epoll set by the time
// the shutdown handshake's "fire wakeup once more" step (spec.md §4.7
// step 3) tries to use it to unblock a pending EpollWait, and the close
// acknowledgment would never fire. Deferring keeps both fds live in the
// epoll set through one more dispatch pass, so that final wakeup is what
// drives the acknowledgment.
func (r *epollReactor) CloseWakeupAndTimer(onWakeupClosed, onTimerClosed func()) {
	r.mu.Lock()
	r.pendingCloses = append(r.pendingCloses,
		func() {
			_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, r.wakeupFD, nil)
			r.mu.Lock()
			delete(r.entries, uintptr(r.wakeupFD))
			r.mu.Unlock()
			unix.Close(r.wakeupFD)
			if onWakeupClosed != nil {
				onWakeupClosed()
			}
		},
		func() {
			_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, r.timerFD, nil)
			r.mu.Lock()
			delete(r.entries, uintptr(r.timerFD))
			r.mu.Unlock()
			unix.Close(r.timerFD)
			if onTimerClosed != nil {
				onTimerClosed()
			}
		},
	)
	r.mu.Unlock()
}

// SetWakeupFunc implements Reactor.
func (r *epollReactor) SetWakeupFunc(fn func()) { r.wakeupFunc = fn }

// Wake implements Reactor. Safe from any thread: eventfd writes are atomic
// counter increments at the kernel level.
func (r *epollReactor) Wake() error {
	if atomic.LoadInt32(&r.closed) == 1 {
		return ErrReactorClosed
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(r.wakeupFD, buf[:])
	if err != nil && err != unix.EAGAIN {
		return fmt.Errorf("reactor: eventfd write: %w", err)
	}
	return nil
}

// ArmTimer implements Reactor.
func (r *epollReactor) ArmTimer(d time.Duration, cb TimerCallback) error {
	r.timerCB = cb
	spec := &unix.ItimerSpec{
		Value: unix.NsecToTimespec(d.Nanoseconds()),
	}
	if err := unix.TimerfdSettime(r.timerFD, 0, spec, nil); err != nil {
		return fmt.Errorf("reactor: timerfd_settime: %w", err)
	}
	return nil
}

// StopTimer implements Reactor.
func (r *epollReactor) StopTimer() error {
	spec := &unix.ItimerSpec{}
	if err := unix.TimerfdSettime(r.timerFD, 0, spec, nil); err != nil {
		return fmt.Errorf("reactor: timerfd_settime(disarm): %w", err)
	}
	return nil
}

// StopLoop implements Reactor.
func (r *epollReactor) StopLoop() {
	atomic.StoreInt32(&r.stopRequested, 1)
}

// Run implements Reactor.
func (r *epollReactor) Run(onReady func()) error {
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
	var raw [128]unix.EpollEvent
	for atomic.LoadInt32(&r.stopRequested) == 0 {
		n, err := unix.EpollWait(r.epfd, raw[:], -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("reactor: epoll_wait: %w", err)
		}
		for i := 0; i < n; i++ {
			r.dispatch(raw[i])
		}
		r.drainPendingCloses()
	}
	return nil
}

func (r *epollReactor) dispatch(ev unix.EpollEvent) {
	fd := uintptr(ev.Fd)
	r.mu.Lock()
	entry, ok := r.entries[fd]
	r.mu.Unlock()
	if !ok {
		return
	}

	defer func() { _ = recover() }()

	switch entry.kind {
	case kindWakeup:
		var buf [8]byte
		_, _ = unix.Read(r.wakeupFD, buf[:])
		if r.wakeupFunc != nil {
			r.wakeupFunc()
		}
	case kindTimer:
		var buf [8]byte
		_, _ = unix.Read(r.timerFD, buf[:])
		if r.timerCB != nil {
			r.timerCB()
		}
	case kindSocket:
		if entry.cb == nil {
			return
		}
		var bits FDEventType
		if ev.Events&unix.EPOLLIN != 0 {
			bits |= EventRead
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			bits |= EventWrite
		}
		if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			bits |= EventError
		}
		entry.cb(fd, bits)
	}
}

func (r *epollReactor) drainPendingCloses() {
	r.mu.Lock()
	pending := r.pendingCloses
	r.pendingCloses = nil
	r.mu.Unlock()
	for _, fn := range pending {
		func() {
			defer func() { _ = recover() }()
			fn()
		}()
	}
}

// Close implements Reactor.
func (r *epollReactor) Close() error {
	if !atomic.CompareAndSwapInt32(&r.closed, 0, 1) {
		return nil
	}
	return unix.Close(r.epfd)
}
