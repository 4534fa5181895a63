//go:build linux
// +build linux

// File: engine/conn_linux.go
// Author: momentics <momentics@gmail.com>
//
// Non-blocking TCP dial/read/write via raw sockets, adapted from the
// teacher's internal/transport/transport_linux.go zero-copy batch I/O
// pattern (there: SendmsgBuffers/RecvmsgBuffers over a connected
// SOCK_NONBLOCK socket; here: a single in-flight HTTP/1.1 request/response
// exchange per handle, each on its own non-blocking fd).

package engine

import (
	"fmt"
	"io"
	"net"

	"golang.org/x/sys/unix"
)

type linuxConn struct {
	fd int
}

// dial creates a non-blocking TCP socket and starts an asynchronous
// connect to addr ("host:port"). The caller must poll TryConnect (via
// POLL_OUT readiness) until it reports done.
func dial(network, addr string) (netConn, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("engine: split host/port %q: %w", addr, err)
	}
	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		return nil, fmt.Errorf("engine: resolve %q: %w", host, err)
	}
	port, err := net.LookupPort(network, portStr)
	if err != nil {
		return nil, fmt.Errorf("engine: resolve port %q: %w", portStr, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("engine: socket: %w", err)
	}
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

	var sa unix.SockaddrInet4
	ip4 := ips[0].To4()
	if ip4 == nil {
		unix.Close(fd)
		return nil, fmt.Errorf("engine: %s does not resolve to IPv4", host)
	}
	copy(sa.Addr[:], ip4)
	sa.Port = port

	if err := unix.Connect(fd, &sa); err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return nil, fmt.Errorf("engine: connect: %w", err)
	}
	return &linuxConn{fd: fd}, nil
}

func (c *linuxConn) FD() uintptr { return uintptr(c.fd) }

func (c *linuxConn) TryConnect() (bool, error) {
	errno, err := unix.GetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return false, fmt.Errorf("engine: getsockopt SO_ERROR: %w", err)
	}
	switch errno {
	case 0:
		return true, nil
	case int(unix.EINPROGRESS), int(unix.EALREADY):
		return false, nil
	default:
		return false, fmt.Errorf("engine: connect failed: %w", unix.Errno(errno))
	}
}

func (c *linuxConn) Write(b []byte) (int, error) {
	n, err := unix.Write(c.fd, b)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, ErrWouldBlock
	}
	if err != nil {
		return 0, fmt.Errorf("engine: write: %w", err)
	}
	return n, nil
}

func (c *linuxConn) Read(b []byte) (int, error) {
	n, err := unix.Read(c.fd, b)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, ErrWouldBlock
	}
	if err != nil {
		return 0, fmt.Errorf("engine: read: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (c *linuxConn) Close() error {
	return unix.Close(c.fd)
}
