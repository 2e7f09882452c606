package plcclient

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/doover-run/enip-plc-bridge/internal/enipserver"
	"github.com/doover-run/enip-plc-bridge/internal/registry"
	"github.com/doover-run/enip-plc-bridge/internal/tagvalue"
)

func startTestServer(t *testing.T) (*enipserver.Supervisor, int) {
	t.Helper()
	sup := enipserver.NewSupervisor(0, nil)
	descs := map[string]registry.Descriptor{
		"temperature": {Name: "temperature", EnipType: "REAL", CurrentValue: tagvalue.Real(21.5)},
		"running":     {Name: "running", EnipType: "BOOL", CurrentValue: tagvalue.Bool(false)},
	}
	if err := sup.Start(descs); err != nil {
		t.Fatalf("sup.Start() error = %v", err)
	}
	t.Cleanup(sup.Stop)

	_, portStr, err := net.SplitHostPort(sup.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort(%v) error = %v", sup.Addr(), err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("Atoi(%q) error = %v", portStr, err)
	}
	return sup, port
}

func TestClientConnectReadWriteRoundTrip(t *testing.T) {
	_, port := startTestServer(t)

	c := New(Options{Address: "127.0.0.1", Port: port, Timeout: 2 * time.Second})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	v, err := c.ReadTag("temperature")
	if err != nil {
		t.Fatalf("ReadTag(temperature) error = %v", err)
	}
	if v.Real != 21.5 {
		t.Errorf("ReadTag(temperature) = %v, want 21.5", v.Real)
	}

	if err := c.WriteTag("running", tagvalue.Bool(true)); err != nil {
		t.Fatalf("WriteTag(running) error = %v", err)
	}

	v, err = c.ReadTag("running")
	if err != nil {
		t.Fatalf("ReadTag(running) error = %v", err)
	}
	if !v.Bool {
		t.Error("ReadTag(running) after write = false, want true")
	}
}

func TestClientReadUnknownTag(t *testing.T) {
	_, port := startTestServer(t)

	c := New(Options{Address: "127.0.0.1", Port: port, Timeout: 2 * time.Second})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	if _, err := c.ReadTag("ghost"); err == nil {
		t.Error("ReadTag(ghost) should fail for an unknown tag")
	}
}

func TestClientConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	ln.Close() // nothing listening now

	c := New(Options{Address: "127.0.0.1", Port: port, Timeout: 200 * time.Millisecond})
	if err := c.Connect(context.Background()); err == nil {
		t.Error("Connect() to a closed port should fail")
	}
}
