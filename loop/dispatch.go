// File: loop/dispatch.go
// Author: momentics <momentics@gmail.com>
//
// Completion Dispatcher (C6): for each engine.Message, recover the
// request.Request back-pointer, apply the outcome, and invoke the user
// callback exactly once. engine.Message.UserData already carries the
// back-pointer (stashed into engine.Handle.UserData by request.Request's
// PrepareForPerform), so steps 1-2 of spec.md §4.6 ("recover the
// back-pointer", "remove H from the engine") are already satisfied by the
// time a Message reaches Drain: multiEngine removes the handle from its
// arena at the moment it decides the transfer is DONE, not when Drain is
// later called.

package loop

import (
	"log"

	"github.com/momentics/liftcore/request"
)

func (l *EventLoop) dispatchCompletions() {
	for _, msg := range l.eng.Drain() {
		r, ok := msg.UserData.(*request.Request)
		if !ok || r == nil {
			log.Printf("[loop] completion for handle %d carries no request back-pointer", msg.ID)
			continue
		}
		r.Response = msg.Response
		r.SetStatus(msg.Status)
		// spec.md §4.6 orders the decrement after the callback: a
		// completion callback may still observe active_count including
		// its own handle.
		l.cb(r)
		l.activeCount.Add(^uint64(0)) // atomic -1
	}
}
