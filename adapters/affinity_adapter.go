// File: adapters/affinity_adapter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
// Description:
//   Adapter implementing the api.Affinity interface, delegating to
//   the affinity package for CPU and NUMA pinning.
//
// Package adapters provides glue code between the core API contracts
// and the internal implementation.

package adapters

import (
	"github.com/momentics/liftcore/affinity"
	"github.com/momentics/liftcore/api"
)

// AffinityAdapter implements api.Affinity using the affinity package.
// It tracks current CPU and NUMA bindings and manages pin/unpin operations.
type AffinityAdapter struct {
	currentCPU  int
	currentNUMA int
	pinned      bool
	scope       api.AffinityScope
}

// NewAffinityAdapter creates a new AffinityAdapter with default thread scope.
// Default CPU and NUMA IDs are set to -1 (no binding).
func NewAffinityAdapter() api.Affinity {
	return &AffinityAdapter{
		currentCPU:  -1,
		currentNUMA: -1,
		pinned:      false,
		scope:       api.ScopeThread,
	}
}

// Pin assigns the calling entity (thread) to a specific CPU and/or NUMA node.
// cpuID: -1 means any CPU; numaID: -1 means any NUMA node.
func (a *AffinityAdapter) Pin(cpuID int, numaID int) error {
	// If cpuID is unspecified, choose preferred CPU for the given NUMA node
	if cpuID == -1 {
		cpuID = affinity.PreferredCPUID(numaID)
	}
	// If numaID is unspecified, detect current NUMA node
	if numaID == -1 {
		numaID = affinity.CurrentNUMANodeID()
	}

	// Delegate to internal implementation
	if err := affinity.PinCurrentThread(numaID, cpuID); err != nil {
		return err
	}

	// Update state
	a.currentCPU = cpuID
	a.currentNUMA = numaID
	a.pinned = true
	return nil
}

// Unpin delegates to affinity.UnpinCurrentThread and resets the adapter's
// recorded binding to -1. On Linux the thread's CPU mask is left as
// PinCurrentThread set it.
func (a *AffinityAdapter) Unpin() error {
	if err := affinity.UnpinCurrentThread(); err != nil {
		return err
	}
	a.pinned = false
	a.currentCPU = -1
	a.currentNUMA = -1
	return nil
}

// Get returns the currently effective CPU and NUMA IDs for this adapter.
func (a *AffinityAdapter) Get() (cpuID int, numaID int, err error) {
	return a.currentCPU, a.currentNUMA, nil
}

// Scope returns the binding scope (process, thread, or goroutine).
func (a *AffinityAdapter) Scope() api.AffinityScope {
	return a.scope
}

// ImmutableDescriptor returns a snapshot of the current binding state,
// useful for metrics, logging, or diagnostics.
func (a *AffinityAdapter) ImmutableDescriptor() api.AffinityDescriptor {
	return api.AffinityDescriptor{
		CPUID:  a.currentCPU,
		NUMAID: a.currentNUMA,
		Scope:  a.scope,
		Pinned: a.pinned,
	}
}
