// File: engine/conn.go
// Author: momentics <momentics@gmail.com>
//
// netConn is the minimal non-blocking socket contract multi.go drives.
// Platform files (conn_linux.go, conn_windows.go, conn_other.go) provide
// dial and the read/write/connect-completion primitives; multi.go never
// touches a raw fd directly.

package engine

import "errors"

// ErrWouldBlock is returned by netConn methods when the operation cannot
// complete without blocking; the caller should wait for the fd to become
// ready and retry.
var ErrWouldBlock = errors.New("engine: operation would block")

type netConn interface {
	// FD returns the raw descriptor the reactor should watch.
	FD() uintptr

	// TryConnect polls for connect completion. Returns (true, nil) once
	// connected, (false, nil) while still in progress, or a non-nil err
	// on a definite connect failure.
	TryConnect() (done bool, err error)

	// Write writes as much of b as the socket currently accepts.
	// Returns ErrWouldBlock (with n==0) if the socket is not writable.
	Write(b []byte) (n int, err error)

	// Read reads into b. Returns ErrWouldBlock (with n==0) if the socket
	// is not readable; returns (0, io.EOF) on orderly close.
	Read(b []byte) (n int, err error)

	Close() error
}
