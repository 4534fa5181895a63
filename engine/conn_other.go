//go:build !linux && !windows
// +build !linux,!windows

// File: engine/conn_other.go
// Author: momentics <momentics@gmail.com>

package engine

import "fmt"

func dial(network, addr string) (netConn, error) {
	return nil, fmt.Errorf("engine: dial not supported on this platform")
}
