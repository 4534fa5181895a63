// Package client is the public facade: it wires a concrete engine and
// reactor behind loop.EventLoop and exposes Get/Post/Do convenience
// builders, the way the teacher's facade package wraps HioloadWS behind
// Config + New rather than asking callers to assemble transport, poller,
// and executor by hand.
//
// Author: momentics <momentics@gmail.com>
package client

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/momentics/liftcore/adapters"
	"github.com/momentics/liftcore/api"
	"github.com/momentics/liftcore/engine"
	"github.com/momentics/liftcore/internal/normalize"
	"github.com/momentics/liftcore/loop"
	"github.com/momentics/liftcore/pool"
	"github.com/momentics/liftcore/reactor"
	"github.com/momentics/liftcore/request"
)

// Config holds parameters immutable for a Client's lifetime. Mirrors the
// teacher facade's Config/DefaultConfig split: sane defaults for the
// common case, every knob still overridable.
type Config struct {
	// NUMANode selects the buffer pool and, if CPUAffinity is set, the
	// CPU the background worker goroutine pins to. -1 means "no
	// preference".
	NUMANode int

	// CPUAffinity pins the loop's background worker to NUMANode.
	CPUAffinity bool

	// DefaultTimeout applies to requests built via Get/Post that don't
	// set their own Request.Timeout.
	DefaultTimeout time.Duration

	// EnableMetrics/EnableDebug: when either is set, New records
	// numa_node, default_timeout and shutdown_timeout in Control's config.
	// Control's metrics and debug registries are exposed either way.
	EnableMetrics bool
	EnableDebug   bool

	// ShutdownTimeout bounds how long Close waits for the worker to
	// join before giving up and returning anyway. Zero means wait
	// forever, matching loop.EventLoop.Stop's own contract.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sane defaults for typical use.
func DefaultConfig() *Config {
	return &Config{
		NUMANode:        -1,
		CPUAffinity:     false,
		DefaultTimeout:  30 * time.Second,
		EnableMetrics:   true,
		EnableDebug:     true,
		ShutdownTimeout: 0,
	}
}

// Client is the facade over loop.EventLoop: one background worker, one
// engine, one reactor, reachable through blocking Get/Post/Do calls built
// on top of the core's async Submit/callback contract.
type Client struct {
	config  *Config
	loop    *loop.EventLoop
	pool    *request.Pool
	control api.Control
	bufPool api.BufferPool

	affinity api.Affinity

	mu      sync.Mutex
	pending map[*request.Request]chan struct{}
}

// New constructs a Client: builds the platform reactor and the transfer
// engine, wires them behind a loop.EventLoop, and returns once the
// background worker is running. Matches spec.md §7's contract that fatal
// construction errors are synchronous and no goroutine is left behind on
// failure.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	c := &Client{
		config:   cfg,
		pool:     request.NewPool(),
		control:  adapters.NewControlAdapter(),
		affinity: adapters.NewAffinityAdapter(),
		bufPool:  pool.DefaultPool(cfg.NUMANode),
		pending:  make(map[*request.Request]chan struct{}),
	}

	numaForReactor := -1
	if cfg.CPUAffinity {
		// NUMANode == -1 means "no preference"; resolve it to the
		// thread's current node rather than disabling pinning outright.
		numaForReactor = normalize.NUMANodeAuto(cfg.NUMANode)
	}
	rx, err := reactor.NewReactor(numaForReactor)
	if err != nil {
		return nil, fmt.Errorf("client: reactor init: %w", err)
	}

	eng := engine.New(c.bufPool)

	return newClient(c, eng, rx)
}

// newClient finishes wiring c around an already-constructed engine and
// reactor. Split out from New so tests can substitute fake.Engine/
// fake.Reactor without a real epoll instance or network.
func newClient(c *Client, eng engine.Engine, rx reactor.Reactor) (*Client, error) {
	l, err := loop.New(eng, rx, c.onComplete)
	if err != nil {
		_ = rx.Close()
		return nil, fmt.Errorf("client: loop init: %w", err)
	}
	c.loop = l

	if c.config.EnableMetrics || c.config.EnableDebug {
		if err := c.control.SetConfig(map[string]any{
			"numa_node":        c.config.NUMANode,
			"default_timeout":  c.config.DefaultTimeout,
			"shutdown_timeout": c.config.ShutdownTimeout,
		}); err != nil {
			log.Printf("[client] SetConfig: %v", err)
		}
	}

	return c, nil
}

// onComplete is the single callback loop.New installs; it is never
// called concurrently with itself (per loop.EventLoop's contract), so the
// map lookup below needs only c.mu to guard against racing Do calls on
// other goroutines.
func (c *Client) onComplete(r *request.Request) {
	c.mu.Lock()
	done, ok := c.pending[r]
	if ok {
		delete(c.pending, r)
	}
	c.mu.Unlock()
	if ok {
		close(done)
	} else {
		log.Printf("[client] completion for untracked request %p", r)
	}
}

// Do submits r and blocks until it completes, returning the same
// (*http.Response, error) pair it leaves on r.Response/r.Err.
func (c *Client) Do(r *request.Request) (*http.Response, error) {
	if r.Timeout == 0 {
		r.Timeout = c.config.DefaultTimeout
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.pending[r] = done
	c.mu.Unlock()

	if err := c.loop.Submit(r); err != nil {
		c.mu.Lock()
		delete(c.pending, r)
		c.mu.Unlock()
		return nil, err
	}

	<-done
	return r.Response, r.Err
}

// Get performs a blocking GET against url.
func (c *Client) Get(url string) (*http.Response, error) {
	return c.Do(request.New(http.MethodGet, url, nil))
}

// Post performs a blocking POST of body against url.
func (c *Client) Post(url string, body []byte) (*http.Response, error) {
	return c.Do(request.New(http.MethodPost, url, body))
}

// ActiveCount reports the number of in-flight requests.
func (c *Client) ActiveCount() uint64 { return c.loop.ActiveCount() }

// RequestPool exposes the Client's recycled Request pool for callers
// issuing many sequential requests who want to avoid a fresh allocation
// per call; Get/Post intentionally bypass it since each is a one-shot
// convenience call with nothing left to give back.
func (c *Client) RequestPool() *request.Pool { return c.pool }

// Control exposes the client's dynamic config/metrics/debug surface.
func (c *Client) Control() api.Control { return c.control }

// Affinity exposes CPU/NUMA introspection for the process this Client
// runs in; the background worker's own pinning (when CPUAffinity is set)
// happens inside the reactor's Run and is independent of this handle.
func (c *Client) Affinity() api.Affinity { return c.affinity }

// Close runs the shutdown handshake and releases every resource the
// Client owns. Safe to call more than once.
func (c *Client) Close() error {
	if c.config.ShutdownTimeout <= 0 {
		c.loop.Stop()
		return nil
	}

	done := make(chan struct{})
	go func() {
		c.loop.Stop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(c.config.ShutdownTimeout):
		return fmt.Errorf("client: close: shutdown did not complete within %s", c.config.ShutdownTimeout)
	}
}

// Shutdown implements api.GracefulShutdown by delegating to Close.
func (c *Client) Shutdown() error { return c.Close() }

var _ api.GracefulShutdown = (*Client)(nil)
