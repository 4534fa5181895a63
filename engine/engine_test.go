package engine_test

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/momentics/liftcore/engine"
)

// startEchoServer runs a single-connection HTTP/1.1 server that replies
// 200 OK with a fixed body to every request, then closes.
func startEchoServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = http.ReadRequest(bufio.NewReader(conn))
		fmt.Fprint(conn, "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok")
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func newTestHandle(method, url string) *engine.Handle {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		panic(err)
	}
	return &engine.Handle{ID: 0, Req: req, Timeout: 2 * time.Second}
}

// driveUntilDone repeatedly pokes the engine the way the loop's onFDReady/
// onTimerFired would: SocketAction(0,0) for the timeout sweep, plus
// SocketAction(fd, ...) for every fd the engine has asked to watch (tracked
// via watchedFDs, since nothing here actually polls real readiness —
// driveHandle's per-state switch doesn't gate on the mask's bits).
func driveUntilDone(t *testing.T, e engine.Engine, watchedFDs *[]uintptr, timeout time.Duration) []engine.Message {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := e.SocketAction(0, 0); err != nil {
			t.Fatalf("SocketAction: %v", err)
		}
		for _, fd := range *watchedFDs {
			if _, err := e.SocketAction(fd, engine.ReadyIn|engine.ReadyOut); err != nil {
				t.Fatalf("SocketAction(%d): %v", fd, err)
			}
		}
		if msgs := e.Drain(); len(msgs) > 0 {
			return msgs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("engine never completed the handle")
	return nil
}

func TestAddHandleCompletesSuccessfully(t *testing.T) {
	addr := startEchoServer(t)
	e := engine.New(nil)
	defer e.Close()

	var watched []uintptr
	e.SetSocketFunction(func(fd uintptr, action engine.SocketAction, socketData *any) {
		if action != engine.PollRemove {
			watched = append(watched, fd)
		}
	})
	e.SetTimerFunction(func(timeoutMs int64) {})

	h := newTestHandle(http.MethodGet, "http://"+addr+"/")
	if err := e.AddHandle(h); err != nil {
		t.Fatalf("AddHandle: %v", err)
	}

	msgs := driveUntilDone(t, e, &watched, 2*time.Second)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].Status.Err != nil {
		t.Fatalf("unexpected error status: %v", msgs[0].Status.Err)
	}
	if msgs[0].Status.Code != http.StatusOK {
		t.Fatalf("Code = %d, want 200", msgs[0].Status.Code)
	}
}

func TestAddHandleConnectFailureCompletesWithError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close() // nothing listens here now; the non-blocking connect refuses

	e := engine.New(nil)
	defer e.Close()

	var watched []uintptr
	e.SetSocketFunction(func(fd uintptr, action engine.SocketAction, socketData *any) {
		if action != engine.PollRemove {
			watched = append(watched, fd)
		}
	})
	e.SetTimerFunction(func(timeoutMs int64) {})

	h := newTestHandle(http.MethodGet, "http://"+addr+"/")
	if err := e.AddHandle(h); err != nil {
		t.Fatalf("AddHandle: %v", err)
	}

	msgs := driveUntilDone(t, e, &watched, 2*time.Second)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].Status.Err == nil {
		t.Fatal("expected a connect error, got nil")
	}
}

func TestRemoveHandleUnknownID(t *testing.T) {
	e := engine.New(nil)
	defer e.Close()
	if _, err := e.RemoveHandle(engine.HandleID(999)); err != engine.ErrUnknownHandle {
		t.Fatalf("RemoveHandle(unknown) = %v, want ErrUnknownHandle", err)
	}
}

func TestSocketActionAfterCloseErrors(t *testing.T) {
	e := engine.New(nil)
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := e.SocketAction(0, 0); err != engine.ErrEngineClosed {
		t.Fatalf("SocketAction after Close = %v, want ErrEngineClosed", err)
	}
}
