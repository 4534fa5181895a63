// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cross-platform CPU and NUMA affinity management for the background
// loop worker thread.

package affinity

import "runtime"

// PinCurrentThread locks the calling goroutine to its OS thread and binds
// that thread to the given NUMA node and CPU core. numaNode<0 skips NUMA
// binding; cpuID<0 skips CPU binding.
func PinCurrentThread(numaNode, cpuID int) error {
	runtime.LockOSThread()
	return platformPinCurrentThread(numaNode, cpuID)
}

// UnpinCurrentThread releases the OS thread lock and clears the affinity
// set by PinCurrentThread where the platform backend supports it: Windows
// resets the CPU mask to all CPUs, Linux with cgo clears the NUMA node
// binding. On Linux a CPU mask set by PinCurrentThread is not reset.
func UnpinCurrentThread() error {
	defer runtime.UnlockOSThread()
	return platformUnpinCurrentThread()
}

// PreferredCPUID returns a suggested CPU core index for the given NUMA
// node, or 0 if numaNode is negative or unknown.
func PreferredCPUID(numaNode int) int {
	if numaNode < 0 {
		return 0
	}
	return platformPreferredCPUID(numaNode)
}

// CurrentNUMANodeID returns the NUMA node of the calling thread, or -1
// if that cannot be determined on this platform.
func CurrentNUMANodeID() int {
	return platformCurrentNUMANodeID()
}

// NumCPUs returns the number of logical CPUs visible to the process.
func NumCPUs() int {
	return runtime.NumCPU()
}

// NUMANodes returns the number of NUMA nodes the platform reports.
func NUMANodes() int {
	return platformNUMANodes()
}
