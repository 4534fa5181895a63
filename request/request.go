// Package request
// Author: momentics <momentics@gmail.com>
//
// Request is R (§3): the caller-visible holder that exclusively owns one
// engine.Handle while it is outside the engine. Field layout follows
// gogama-httpx's request.Plan/Execution split (Method/URL/Header/Body on
// the way in, Response/Err on the way out) rather than embedding the
// standard library's server-oriented *http.Request fields directly.
package request

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/momentics/liftcore/engine"
)

// Request is one logical HTTP exchange, from submission through
// completion. A Request is owned by exactly one of {caller, loop/engine}
// at any instant; PrepareForPerform and the loop's engine_add handoff are
// the only points that move ownership.
type Request struct {
	Method  string
	URL     string
	Header  http.Header
	Body    []byte
	Timeout time.Duration

	// Request is the built *http.Request, populated by PrepareForPerform.
	Request *http.Request

	// Response and Err are populated by the completion dispatcher before
	// the user callback runs. Exactly one of them is meaningful: Err nil
	// means Response is the successful result.
	Response   *http.Response
	StatusCode int
	Err        error

	handle *engine.Handle
}

// New constructs a Request for method/url. body may be nil.
func New(method, url string, body []byte) *Request {
	return &Request{Method: method, URL: url, Header: make(http.Header), Body: body}
}

// PrepareForPerform builds the underlying *http.Request synchronously on
// the submitter's thread. It must not perform any I/O: per spec.md §6,
// submission-time pre-prepare failure is surfaced to the caller and the
// request never enters the pending queue.
func (r *Request) PrepareForPerform() error {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if len(r.Body) > 0 {
		bodyReader = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequest(method, r.URL, bodyReader)
	if err != nil {
		return fmt.Errorf("request: prepare: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	r.Request = req

	r.handle = &engine.Handle{
		Req:      req,
		Timeout:  r.Timeout,
		UserData: r,
	}
	return nil
}

// Handle returns the engine.Handle built by PrepareForPerform, for the
// loop to hand to engine.AddHandle. PrepareForPerform must have succeeded
// first.
func (r *Request) Handle() *engine.Handle { return r.handle }

// SetStatus applies the engine's per-transfer outcome. Response must be
// assigned by the caller (the completion dispatcher) before or after this
// call; SetStatus only carries the status code/error half of the result,
// matching the request.Value collaborator contract of spec.md §6.
func (r *Request) SetStatus(st engine.Status) {
	r.StatusCode = st.Code
	r.Err = st.Err
}

// Reset clears a Request back to an empty state so request.Pool can
// recycle it.
func (r *Request) Reset() {
	r.Method = ""
	r.URL = ""
	r.Header = make(http.Header)
	r.Body = nil
	r.Timeout = 0
	r.Request = nil
	r.Response = nil
	r.StatusCode = 0
	r.Err = nil
	r.handle = nil
}
