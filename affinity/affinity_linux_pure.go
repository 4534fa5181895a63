// File: affinity/affinity_linux_pure.go
//go:build linux && !cgo
// +build linux,!cgo
//
// Pure-Go fallback for Linux when CGO is disabled. sched_setaffinity is
// reachable via golang.org/x/sys/unix without cgo; NUMA node binding is
// not, so node placement degrades to a no-op.

package affinity

import "golang.org/x/sys/unix"

func platformPreferredCPUID(numaNode int) int {
	return 0
}

func platformCurrentNUMANodeID() int {
	return -1
}

func platformNUMANodes() int {
	return 1
}

func platformPinCurrentThread(numaNode, cpuID int) error {
	if cpuID < 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	return unix.SchedSetaffinity(0, &set)
}

func platformUnpinCurrentThread() error {
	return nil
}
