package channelbridge

import (
	"context"
	"testing"
	"time"

	"github.com/doover-run/enip-plc-bridge/internal/cloudbus"
	"github.com/doover-run/enip-plc-bridge/internal/enipserver"
	"github.com/doover-run/enip-plc-bridge/internal/registry"
)

func newTestBridge(t *testing.T) (*Bridge, *cloudbus.FakeBus, *registry.Registry) {
	t.Helper()
	bus := cloudbus.NewFakeBus()
	reg := registry.New()
	sup := enipserver.NewSupervisor(0, nil)
	if err := sup.Start(nil); err != nil {
		t.Fatalf("sup.Start() error = %v", err)
	}
	t.Cleanup(sup.Stop)

	return New(bus, reg, sup, "__", nil), bus, reg
}

func TestBridgeStartAppliesDefaultWhenChannelEmpty(t *testing.T) {
	b, _, reg := newTestBridge(t)

	stop, err := b.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stop()

	d, ok := reg.Get("TEST")
	if !ok || d.EnipType != "BOOL" {
		t.Errorf("registry after default seed = %+v, %v, want TEST:BOOL", d, ok)
	}
}

func TestBridgeOnUpdateFlattensAndSetsRegistry(t *testing.T) {
	b, _, reg := newTestBridge(t)

	b.onUpdate("tag_values", cloudbus.Message{
		"line1": map[string]any{"temperature": 21.5},
	})

	d, ok := reg.Get("line1__temperature")
	if !ok || d.CurrentValue.Real != 21.5 {
		t.Errorf("registry entry = %+v, %v, want line1__temperature=21.5", d, ok)
	}
	if b.ChannelUpdateRate == nil {
		t.Error("ChannelUpdateRate should be initialized")
	}
}

func TestBridgeStartAndStopCleansUpForwarder(t *testing.T) {
	b, _, _ := newTestBridge(t)

	stop, err := b.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop() did not return: write-forwarder goroutine leaked")
	}
}
