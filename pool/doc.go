// Package pool
// Author: momentics <momentics@gmail.com>
//
// High-performance buffer and memory pooling layer.
// Implements NUMA-aware, zero-copy buffer pooling.
// All primitives are cross-platform (Linux/Windows) and designed for low-latency, high-throughput workloads.
// See bufferpool.go and numapool.go for implementation details.
package pool
