package pool_test

import (
	"testing"

	"github.com/momentics/liftcore/pool"
)

func TestBytePoolFallback(t *testing.T) {
	// useNUMA=false forces the plain-allocation fallback path on every
	// platform, independent of whether libnuma/VirtualAllocExNuma are
	// available.
	bp := pool.NewBytePool(4096, -1, false)
	buf := bp.GetBuffer()
	if len(buf) != 4096 {
		t.Fatalf("expected 4096-byte buffer, got %d", len(buf))
	}
	bp.PutBuffer(buf)
}
