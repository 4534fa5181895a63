// Package loop
// Author: momentics <momentics@gmail.com>
//
// loop implements the pending queue (C2), the event loop (C5), the
// transfer-engine <-> reactor bridge (the engine-facing half of C3), and
// the completion dispatcher (C6). It is the only package that translates
// between engine and reactor, by design: engine.SocketAction/ReadyMask and
// reactor.FDEventType deliberately don't know about each other, and this
// package is where that translation happens, mirroring the original C++
// EventLoop class owning both the CURLM* and the uv_loop_t*.
package loop
