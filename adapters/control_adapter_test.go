package adapters_test

import (
	"testing"
	"time"

	"github.com/momentics/liftcore/adapters"
)

func TestControlAdapterBasic(t *testing.T) {
	ctrl := adapters.NewControlAdapter()
	cfg := ctrl.GetConfig()
	if len(cfg) != 0 {
		t.Error("Expected empty config on init")
	}
	err := ctrl.SetConfig(map[string]any{"k": 1})
	if err != nil {
		t.Fatal(err)
	}
	stats := ctrl.Stats()
	if stats["k"] != 1 {
		t.Error("SetConfig did not apply")
	}
	done := make(chan struct{})
	ctrl.OnReload(func() { close(done) })
	ctrl.SetConfig(map[string]any{"x": 2})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Reload hook not called")
	}
}
