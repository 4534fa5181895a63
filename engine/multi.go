// File: engine/multi.go
// Author: momentics <momentics@gmail.com>
//
// multiEngine is the concrete Engine (C3): it owns the arena of Handles,
// drives each through connecting -> writing -> reading -> done using the
// per-platform netConn primitives, and reports watch/timer requirements
// through the SocketFunction/TimerFunction callbacks installed by the
// loop package. multiEngine itself holds no lock: every method is called
// from the single worker goroutine that owns the event loop (the same
// invariant libcurl's multi handle relies on), so the only synchronization
// that matters lives upstream of this package, in the pending queue.

package engine

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/momentics/liftcore/api"
)

// socketSlot is the engine's per-fd bookkeeping. handle is the engine's
// own lookup (which Handle owns this fd) and is never exposed outward.
// external is the adapter-owned slot a pointer to which is handed out on
// every SocketFunction call, mirroring curl's socketp: only the adapter
// ever writes through that pointer, and the engine never inspects its
// contents, which is why the two must not share a field.
type socketSlot struct {
	handle   *Handle
	external any
}

type multiEngine struct {
	arena    *arena
	socketFn SocketFunction
	timerFn  TimerFunction
	sockets  map[uintptr]*socketSlot

	completions []Message

	bufPool api.BufferPool
	closed  bool
}

// New constructs an Engine. bufPool may be nil, in which case scratch read
// buffers are plain heap allocations instead of pool-sourced ones.
func New(bufPool api.BufferPool) Engine {
	return &multiEngine{
		arena:   newArena(),
		sockets: make(map[uintptr]*socketSlot),
		bufPool: bufPool,
	}
}

func (e *multiEngine) SetSocketFunction(fn SocketFunction) { e.socketFn = fn }
func (e *multiEngine) SetTimerFunction(fn TimerFunction)   { e.timerFn = fn }

func (e *multiEngine) AddHandle(h *Handle) error {
	if e.closed {
		return ErrEngineClosed
	}
	e.arena.alloc(h)
	if h.Timeout > 0 {
		h.deadline = time.Now().Add(h.Timeout)
	}

	addr := hostPort(h.Req)
	conn, err := dial("tcp", addr)
	if err != nil {
		e.finishHandle(h, Status{Err: fmt.Errorf("engine: dial %s: %w", addr, err)})
		e.recomputeTimer()
		return nil
	}
	h.conn = conn
	h.state = stateConnecting

	if conn.FD() != 0 {
		e.watchHandle(h, PollOut)
	}
	e.recomputeTimer()
	return nil
}

func hostPort(req *http.Request) string {
	host := req.URL.Host
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	if req.URL.Scheme == "https" {
		return net.JoinHostPort(host, "443")
	}
	return net.JoinHostPort(host, "80")
}

func (e *multiEngine) RemoveHandle(id HandleID) (*Handle, error) {
	h, ok := e.arena.remove(id)
	if !ok {
		return nil, ErrUnknownHandle
	}
	e.unwatchHandle(h)
	if h.conn != nil {
		_ = h.conn.Close()
	}
	return h, nil
}

// SocketAction drives one fd/ready-mask pair forward, or re-checks every
// pending handle when fd==0 (the timeout pseudo-action, analogous to
// curl_multi_socket_action(multi, CURL_SOCKET_TIMEOUT, 0, ...)).
func (e *multiEngine) SocketAction(fd uintptr, mask ReadyMask) (int, error) {
	if e.closed {
		return 0, ErrEngineClosed
	}
	if fd == 0 {
		e.checkAllPending()
	} else if slot, ok := e.sockets[fd]; ok && slot.handle != nil {
		e.driveHandle(slot.handle, mask)
	}
	e.recomputeTimer()
	return len(e.arena.handles), nil
}

// checkAllPending advances handles whose progress depends on wall-clock
// time rather than fd readiness: a still-dialing Windows handle whose fd
// was not yet known when AddHandle ran, and any handle past its deadline.
func (e *multiEngine) checkAllPending() {
	now := time.Now()
	for _, h := range e.arena.all() {
		if !h.deadline.IsZero() && now.After(h.deadline) {
			e.finishHandle(h, Status{Err: fmt.Errorf("engine: request timed out")})
			continue
		}
		if h.state == stateConnecting && h.conn != nil && h.conn.FD() == 0 {
			// fd not known yet (windowsConn's background dial goroutine
			// hasn't completed); nothing to watch yet, just wait for the
			// next timer tick or completion.
			continue
		}
		if h.state == stateConnecting && h.conn != nil {
			if _, watched := e.sockets[h.conn.FD()]; !watched {
				e.watchHandle(h, PollOut)
			}
		}
	}
}

func (e *multiEngine) driveHandle(h *Handle, mask ReadyMask) {
	if h.state == stateDone {
		return
	}
	switch h.state {
	case stateConnecting:
		done, err := h.conn.TryConnect()
		if err != nil {
			e.finishHandle(h, Status{Err: fmt.Errorf("engine: connect: %w", err)})
			return
		}
		if !done {
			return
		}
		buf := &bytes.Buffer{}
		if err := h.Req.Write(buf); err != nil {
			e.finishHandle(h, Status{Err: fmt.Errorf("engine: serialize request: %w", err)})
			return
		}
		h.reqBytes = buf.Bytes()
		h.state = stateWriting
		e.watchHandle(h, PollOut)
		e.driveHandle(h, ReadyOut)

	case stateWriting:
		e.pumpWrite(h)

	case stateReading:
		e.pumpRead(h)
	}
}

func (e *multiEngine) pumpWrite(h *Handle) {
	for h.written < len(h.reqBytes) {
		n, err := h.conn.Write(h.reqBytes[h.written:])
		if err == ErrWouldBlock {
			return
		}
		if err != nil {
			e.finishHandle(h, Status{Err: fmt.Errorf("engine: write: %w", err)})
			return
		}
		h.written += n
	}
	h.state = stateReading
	h.accum = &bytes.Buffer{}
	e.watchHandle(h, PollIn)
}

func (e *multiEngine) pumpRead(h *Handle) {
	var scratch []byte
	var pooled api.Buffer
	if e.bufPool != nil {
		pooled = e.bufPool.Get(16*1024, -1)
		scratch = pooled.Bytes()
		defer e.bufPool.Put(pooled)
	} else {
		scratch = make([]byte, 16*1024)
	}

	eof := false
	for {
		n, err := h.conn.Read(scratch)
		if n > 0 {
			h.accum.Write(scratch[:n])
		}
		if err == ErrWouldBlock {
			break
		}
		if err != nil {
			eof = true // io.EOF or a hard read error: no more bytes coming
			break
		}
		if n == 0 {
			break
		}
	}

	if h.tryParseResponse() {
		e.finishHandle(h, Status{Code: h.resp.StatusCode})
		return
	}
	if eof {
		e.finishHandle(h, Status{Err: fmt.Errorf("engine: connection closed before response completed")})
	}
}

func (e *multiEngine) watchHandle(h *Handle, action SocketAction) {
	if h.conn == nil {
		return
	}
	fd := h.conn.FD()
	if fd == 0 {
		return
	}
	slot, ok := e.sockets[fd]
	if !ok {
		slot = &socketSlot{handle: h}
		e.sockets[fd] = slot
	}
	if e.socketFn != nil {
		e.socketFn(fd, action, &slot.external)
	}
}

func (e *multiEngine) unwatchHandle(h *Handle) {
	if h.conn == nil {
		return
	}
	fd := h.conn.FD()
	if fd == 0 {
		return
	}
	slot, ok := e.sockets[fd]
	if !ok {
		return
	}
	if e.socketFn != nil {
		e.socketFn(fd, PollRemove, &slot.external)
	}
	delete(e.sockets, fd)
}

func (e *multiEngine) finishHandle(h *Handle, st Status) {
	h.state = stateDone
	e.unwatchHandle(h)
	if h.conn != nil {
		_ = h.conn.Close()
	}
	e.arena.remove(h.ID)
	e.completions = append(e.completions, Message{ID: h.ID, Status: st, Response: h.resp, UserData: h.UserData})
}

// recomputeTimer mirrors curl_multi's CURLMOPT_TIMERFUNCTION contract: it
// fires whenever the engine's minimum deadline across every handle may
// have changed, telling the loop when to next call SocketAction(0, 0).
func (e *multiEngine) recomputeTimer() {
	if e.timerFn == nil {
		return
	}
	var soonest time.Time
	needRetry := false
	for _, h := range e.arena.all() {
		if h.state == stateConnecting && h.conn != nil && h.conn.FD() == 0 {
			needRetry = true
		}
		if !h.deadline.IsZero() && (soonest.IsZero() || h.deadline.Before(soonest)) {
			soonest = h.deadline
		}
	}
	switch {
	case needRetry:
		e.timerFn(1)
	case !soonest.IsZero():
		d := time.Until(soonest)
		if d < 0 {
			d = 0
		}
		e.timerFn(d.Milliseconds())
	default:
		e.timerFn(-1)
	}
}

func (e *multiEngine) Drain() []Message {
	out := e.completions
	e.completions = nil
	return out
}

func (e *multiEngine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	for _, h := range e.arena.all() {
		e.unwatchHandle(h)
		if h.conn != nil {
			_ = h.conn.Close()
		}
	}
	e.arena.handles = make(map[HandleID]*Handle)
	return nil
}
