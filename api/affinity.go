// Package api
// Author: momentics@gmail.com
//
// CPU/NUMA affinity, thread pinning and topology definitions.

package api

// Affinity controls execution on particular CPUs/NUMA nodes.
type Affinity interface {
    // Pin locks the current goroutine to a CPU or NUMA node.
    Pin(cpuID int, numaID int) error
    // Unpin removes affinity.
    Unpin() error
    // Get returns current CPU and NUMA node.
    Get() (cpuID int, numaID int, err error)
    // Scope reports the binding scope this Affinity operates at.
    Scope() AffinityScope
    // ImmutableDescriptor snapshots the current binding state.
    ImmutableDescriptor() AffinityDescriptor
}

// AffinityScope names the granularity a binding applies at.
type AffinityScope int

const (
    ScopeProcess AffinityScope = iota
    ScopeThread
    ScopeGoroutine
)

// AffinityDescriptor is a point-in-time snapshot of an Affinity's binding.
type AffinityDescriptor struct {
    CPUID  int
    NUMAID int
    Scope  AffinityScope
    Pinned bool
}
