// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the core poll-mode event reactor abstraction
// (C4) and the per-socket binding it manages on the engine's behalf (C1):
// epoll on Linux, IOCP on Windows, a stub elsewhere. Wake, StopLoop,
// StopTimer and CloseWakeupAndTimer may be called from any goroutine (the
// loop's shutdown handshake does so); every other method is
// loop-thread-only, apart from reading a SocketContext's State.
package reactor
