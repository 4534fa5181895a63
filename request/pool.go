// File: request/pool.go
// Author: momentics <momentics@gmail.com>
//
// Pool recycles completed Requests, mirroring the "lift" original's
// RequestPool (original_source/src/RequestPool.cpp): rather than
// freeing/reallocating a RequestHandle per call, the original keeps a
// free list and hands recycled handles back out. sync.Pool is the direct
// Go idiom for that same "reuse instead of reallocate" discipline.
package request

import (
	"net/http"

	"github.com/momentics/liftcore/pool"
)

// Pool recycles *Request values. Get returns a ready-to-fill Request;
// Put resets and returns one to the pool once its completion callback
// has finished with it. Built on pool.SyncPool, the pool package's
// generic sync.Pool wrapper.
type Pool struct {
	pool *pool.SyncPool[*Request]
}

// NewPool constructs an empty Pool.
func NewPool() *Pool {
	return &Pool{pool: pool.NewSyncPool(func() *Request {
		return &Request{Header: make(http.Header)}
	})}
}

// Get returns a recycled or freshly allocated Request for method/url.
func (p *Pool) Get(method, url string, body []byte) *Request {
	r := p.pool.Get()
	r.Method = method
	r.URL = url
	r.Body = body
	return r
}

// Put resets r and returns it to the pool. r must not be used afterward.
func (p *Pool) Put(r *Request) {
	r.Reset()
	p.pool.Put(r)
}
