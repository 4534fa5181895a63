// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package engine implements the transfer engine collaborator (C3): a
// multi-socket HTTP/1.1 driver that owns many concurrent request handles,
// tells its owner which fds to watch via a socket function, and tells it
// when to arm a shared timer via a timer function — the same two-callback
// contract libcurl's multi interface exposes to an embedder's event loop.
package engine
