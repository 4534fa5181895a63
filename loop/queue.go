// File: loop/queue.go
// Author: momentics <momentics@gmail.com>
//
// pendingQueue is Q (§3, §4.2): a mutex-guarded FIFO of *request.Request
// awaiting entry to the engine. github.com/eapache/queue's growable ring
// buffer is exactly the "append under lock / swap out on drain" shape
// spec.md describes, and was already present unused in the teacher's
// go.mod.

package loop

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/momentics/liftcore/request"
)

type pendingQueue struct {
	mu sync.Mutex
	q  *queue.Queue
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{q: queue.New()}
}

// push appends r. Safe from any thread.
func (p *pendingQueue) push(r *request.Request) {
	p.mu.Lock()
	p.q.Add(r)
	p.mu.Unlock()
}

// drain swaps out and returns everything currently queued, in FIFO order.
// Loop-thread only.
func (p *pendingQueue) drain() []*request.Request {
	p.mu.Lock()
	n := p.q.Length()
	if n == 0 {
		p.mu.Unlock()
		return nil
	}
	out := make([]*request.Request, n)
	for i := 0; i < n; i++ {
		out[i] = p.q.Remove().(*request.Request)
	}
	p.mu.Unlock()
	return out
}

// length reports the current queue depth, for observability.
func (p *pendingQueue) length() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.q.Length()
}
