package client

import (
	"net/http"
	"testing"
	"time"

	"github.com/momentics/liftcore/adapters"
	"github.com/momentics/liftcore/engine"
	"github.com/momentics/liftcore/fake"
	"github.com/momentics/liftcore/pool"
	"github.com/momentics/liftcore/request"
)

// newTestClient wires a Client around fake.Engine/fake.Reactor so Do/Get/Post
// can be exercised without a real epoll instance or network access.
func newTestClient(t *testing.T) (*Client, *fake.Engine) {
	t.Helper()
	cfg := DefaultConfig()
	c := &Client{
		config:   cfg,
		pool:     nil,
		control:  adapters.NewControlAdapter(),
		affinity: adapters.NewAffinityAdapter(),
		bufPool:  pool.DefaultPool(cfg.NUMANode),
		pending:  make(map[*request.Request]chan struct{}),
	}
	eng := fake.NewEngine()
	rx := fake.NewReactor()
	got, err := newClient(c, eng, rx)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}
	return got, eng
}

func TestClientGetDelivers(t *testing.T) {
	c, eng := newTestClient(t)
	defer c.Close()

	eng.Outcome = func(h *engine.Handle) engine.Status {
		return engine.Status{Code: http.StatusOK}
	}

	resp, err := c.Get("http://example.invalid/")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	_ = resp
	if eng.AddHandleCalls != 1 {
		t.Fatalf("AddHandleCalls = %d, want 1", eng.AddHandleCalls)
	}
}

func TestClientCloseIsIdempotent(t *testing.T) {
	c, _ := newTestClient(t)
	if err := c.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestClientCloseRespectsShutdownTimeout(t *testing.T) {
	c, _ := newTestClient(t)
	c.config.ShutdownTimeout = time.Second
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
