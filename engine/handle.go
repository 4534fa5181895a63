// File: engine/handle.go
// Author: momentics <momentics@gmail.com>
//
// Handle is H (§3): the engine-owned, address-stable representation of one
// in-flight exchange. It is allocated in an arena keyed by HandleID, and
// completion Messages identify it by that id; the engine's per-fd slot
// (socketSlot) points at the Handle directly.

package engine

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"time"
)

type handleState int

const (
	stateConnecting handleState = iota
	stateWriting
	stateReading
	stateDone
)

// Handle is one in-flight HTTP/1.1 exchange. Fields below state are owned
// exclusively by the engine's worker goroutine once AddHandle returns.
type Handle struct {
	ID HandleID

	Req     *http.Request
	Timeout time.Duration

	// UserData is the back-pointer slot R stashes its own bookkeeping in
	// (§3's "carries a back-pointer slot"); the engine never interprets it,
	// it only copies it into the completion Message.
	UserData any

	state    handleState
	conn     netConn
	deadline time.Time

	reqBytes []byte
	written  int

	// accum holds every byte read so far for this exchange. Response
	// parsing is retried against the full accumulation on each readable
	// event rather than incrementally, trading O(n^2) re-parse cost for a
	// response.Body that is always backed by a complete, static byte
	// slice once ReadResponse and body draining both succeed.
	accum *bytes.Buffer
	resp  *http.Response
}

// Deadline returns the absolute time this handle must complete by.
func (h *Handle) Deadline() time.Time { return h.deadline }

// tryParseResponse attempts to parse a complete HTTP/1.1 response (status
// line, headers, and fully-drained body) out of everything accumulated so
// far. complete is false if more bytes are still needed.
func (h *Handle) tryParseResponse() (complete bool) {
	r := bufio.NewReader(bytes.NewReader(h.accum.Bytes()))
	resp, err := http.ReadResponse(r, h.Req)
	if err != nil {
		return false
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	h.resp = resp
	return true
}

// arena maps HandleID to *Handle. Touched only by the engine's own
// goroutine (invariant: "Engine: touched only from the worker thread"),
// so it needs no locking.
type arena struct {
	next    uint64
	handles map[HandleID]*Handle
}

func newArena() *arena {
	return &arena{handles: make(map[HandleID]*Handle)}
}

func (a *arena) alloc(h *Handle) HandleID {
	a.next++
	id := HandleID(a.next)
	h.ID = id
	a.handles[id] = h
	return id
}

func (a *arena) remove(id HandleID) (*Handle, bool) {
	h, ok := a.handles[id]
	if ok {
		delete(a.handles, id)
	}
	return h, ok
}

func (a *arena) all() []*Handle {
	out := make([]*Handle, 0, len(a.handles))
	for _, h := range a.handles {
		out = append(out, h)
	}
	return out
}
