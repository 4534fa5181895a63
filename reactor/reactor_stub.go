//go:build !linux && !windows
// +build !linux,!windows

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub backend for platforms with neither epoll nor IOCP.

package reactor

// NewReactor returns ErrUnsupportedPlatform; no Reactor is available here.
func NewReactor(numaNode int) (Reactor, error) {
	return nil, ErrUnsupportedPlatform
}
