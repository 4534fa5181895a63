// File: affinity/affinity_linux.go
//go:build linux && cgo
// +build linux,cgo

package affinity

// #cgo LDFLAGS: -lnuma
// #define _GNU_SOURCE
// #include <sched.h>
// #include <numa.h>
// #include <errno.h>
//
// int check_numa_avail() {
//     return numa_available();
// }
import "C"

import (
	"fmt"
	"sync"
)

var (
	numaAvailOnce sync.Once
	numaAvailable bool
)

func isNumaAvailable() bool {
	numaAvailOnce.Do(func() {
		numaAvailable = C.check_numa_avail() != -1
	})
	return numaAvailable
}

func platformPreferredCPUID(numaNode int) int {
	// libnuma exposes cpumasks per node via numa_node_to_cpus; the simple
	// policy here is to let numa_run_on_node pick within the node and
	// report CPU 0 as the nominal preferred core.
	return 0
}

func platformCurrentNUMANodeID() int {
	if !isNumaAvailable() {
		return -1
	}
	cpu := C.sched_getcpu()
	if cpu < 0 {
		return -1
	}
	return int(C.numa_node_of_cpu(cpu))
}

func platformNUMANodes() int {
	if !isNumaAvailable() {
		return 1
	}
	return int(C.numa_num_configured_nodes())
}

func platformPinCurrentThread(numaNode, cpuID int) error {
	if cpuID >= 0 {
		var mask C.cpu_set_t
		C.CPU_ZERO(&mask)
		C.CPU_SET(C.int(cpuID), &mask)
		if ret, errno := C.sched_setaffinity(0, C.sizeof_cpu_set_t, &mask); ret != 0 {
			return fmt.Errorf("affinity: sched_setaffinity: %v", errno)
		}
	}
	if numaNode >= 0 {
		if !isNumaAvailable() {
			return fmt.Errorf("affinity: numa not available")
		}
		if ret := C.numa_run_on_node(C.int(numaNode)); ret != 0 {
			return fmt.Errorf("affinity: numa_run_on_node(%d) failed", numaNode)
		}
	}
	return nil
}

func platformUnpinCurrentThread() error {
	if isNumaAvailable() {
		C.numa_run_on_node(-1)
	}
	return nil
}
