//go:build windows
// +build windows

// File: engine/conn_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows fallback transport: dial, read and write go through the
// standard net package (whose own IOCP-backed runtime poller does the
// actual non-blocking work) rather than raw overlapped syscalls. FD
// extraction via SyscallConn exists only so the reactor can still
// associate the handle for diagnostics/symmetry with the Linux path; the
// real readiness multiplexing for Windows handles happens inside the Go
// runtime, not this package's reactor.

package engine

import (
	"errors"
	"net"
	"os"
	"syscall"
	"time"
)

type windowsConn struct {
	conn        net.Conn
	rawFD       uintptr
	connectDone chan error
}

func dial(network, addr string) (netConn, error) {
	wc := &windowsConn{connectDone: make(chan error, 1)}
	go func() {
		c, err := net.DialTimeout(network, addr, 30*time.Second)
		if err != nil {
			wc.connectDone <- err
			return
		}
		wc.conn = c
		if sc, ok := c.(syscall.Conn); ok {
			if raw, err := sc.SyscallConn(); err == nil {
				_ = raw.Control(func(fd uintptr) { wc.rawFD = fd })
			}
		}
		wc.connectDone <- nil
	}()
	return wc, nil
}

func (c *windowsConn) FD() uintptr { return c.rawFD }

func (c *windowsConn) TryConnect() (bool, error) {
	select {
	case err := <-c.connectDone:
		if err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, nil
	}
}

func (c *windowsConn) Write(b []byte) (int, error) {
	if c.conn == nil {
		return 0, ErrWouldBlock
	}
	_ = c.conn.SetWriteDeadline(time.Now())
	n, err := c.conn.Write(b)
	if isTimeout(err) {
		return n, ErrWouldBlock
	}
	return n, err
}

func (c *windowsConn) Read(b []byte) (int, error) {
	if c.conn == nil {
		return 0, ErrWouldBlock
	}
	_ = c.conn.SetReadDeadline(time.Now())
	n, err := c.conn.Read(b)
	if isTimeout(err) {
		return n, ErrWouldBlock
	}
	return n, err
}

func (c *windowsConn) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}
