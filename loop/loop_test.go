package loop_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/momentics/liftcore/engine"
	"github.com/momentics/liftcore/fake"
	"github.com/momentics/liftcore/loop"
	"github.com/momentics/liftcore/request"
)

func newTestLoop(t *testing.T, cb func(*request.Request)) (*loop.EventLoop, *fake.Engine) {
	t.Helper()
	eng := fake.NewEngine()
	rx := fake.NewReactor()
	l, err := loop.New(eng, rx, cb)
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	return l, eng
}

func TestSubmitDeliversCompletion(t *testing.T) {
	done := make(chan *request.Request, 1)
	l, eng := newTestLoop(t, func(r *request.Request) { done <- r })
	defer l.Stop()

	eng.Outcome = func(h *engine.Handle) engine.Status {
		return engine.Status{Code: http.StatusOK}
	}

	r := request.New(http.MethodGet, "http://example.invalid/", nil)
	if err := l.Submit(r); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case got := <-done:
		if got != r {
			t.Fatalf("callback got a different *Request")
		}
		if got.StatusCode != http.StatusOK {
			t.Fatalf("StatusCode = %d, want 200", got.StatusCode)
		}
	case <-time.After(time.Second):
		t.Fatal("completion callback never fired")
	}

	if eng.AddHandleCalls != 1 {
		t.Fatalf("AddHandleCalls = %d, want 1", eng.AddHandleCalls)
	}
}

// TestSynchronousFailureStillDispatches covers a handle that finishes
// inside AddHandle itself -- a DNS miss or an immediate connect error in
// the real engine -- with no other handle alive. The engine's next
// TimerFunction call carries timeoutMs==-1 ("no timer needed"), which
// never reaches checkActions on its own. Without onWakeup draining
// completions itself after the AddHandle loop, this would hang forever
// waiting on done.
func TestSynchronousFailureStillDispatches(t *testing.T) {
	done := make(chan *request.Request, 1)
	l, eng := newTestLoop(t, func(r *request.Request) { done <- r })
	defer l.Stop()

	wantErr := errors.New("dial tcp: lookup example.invalid: no such host")
	eng.Outcome = func(h *engine.Handle) engine.Status {
		return engine.Status{Err: wantErr}
	}

	r := request.New(http.MethodGet, "http://example.invalid/", nil)
	if err := l.Submit(r); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case got := <-done:
		if got.Err != wantErr {
			t.Fatalf("Err = %v, want %v", got.Err, wantErr)
		}
	case <-time.After(time.Second):
		t.Fatal("completion callback never fired for a synchronous engine failure")
	}
}

func TestSubmitPreparesOnCallerGoroutine(t *testing.T) {
	l, _ := newTestLoop(t, func(*request.Request) {})
	defer l.Stop()

	r := request.New(http.MethodGet, "://not-a-url", nil)
	if err := l.Submit(r); err == nil {
		t.Fatal("expected Submit to reject an unparseable URL before enqueuing")
	}
}

func TestStopIsIdempotentAndJoins(t *testing.T) {
	l, _ := newTestLoop(t, func(*request.Request) {})
	done := make(chan struct{})
	go func() {
		l.Stop()
		l.Stop() // second call must not block or panic
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	if l.IsRunning() {
		t.Fatal("IsRunning true after Stop")
	}
}

func TestIsRunningAfterNew(t *testing.T) {
	l, _ := newTestLoop(t, func(*request.Request) {})
	defer l.Stop()
	if !l.IsRunning() {
		t.Fatal("IsRunning false immediately after New")
	}
}
