// Package diagcapture captures the bridge's own ENIP/CIP traffic to a pcap
// file for field diagnostics: a BPF filter scoped to the configured TCP
// port, nothing else.
package diagcapture

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/pcapgo"
)

// Capture is a live packet capture bound to one interface and one TCP port.
type Capture struct {
	handle    *pcap.Handle
	writer    *pcapgo.Writer
	file      *os.File
	count     int
	mu        sync.Mutex
	startTime time.Time
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// Start opens a live capture on iface, filtered to TCP traffic on port, and
// streams captured packets to outputFile in pcap format.
func Start(iface string, port int, outputFile string) (*Capture, error) {
	handle, err := pcap.OpenLive(iface, 65535, true, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("open live capture on %s: %w", iface, err)
	}

	filter := fmt.Sprintf("tcp port %d", port)
	if err := handle.SetBPFFilter(filter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("set BPF filter %q: %w", filter, err)
	}

	file, err := os.Create(outputFile)
	if err != nil {
		handle.Close()
		return nil, fmt.Errorf("create pcap file: %w", err)
	}

	writer := pcapgo.NewWriter(file)
	if err := writer.WriteFileHeader(65535, handle.LinkType()); err != nil {
		file.Close()
		handle.Close()
		return nil, fmt.Errorf("write pcap header: %w", err)
	}

	c := &Capture{
		handle:    handle,
		writer:    writer,
		file:      file,
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
	}

	go c.captureLoop()
	return c, nil
}

// StartOnLoopback finds a loopback interface and starts a Capture on it,
// for exercising the bridge against an in-process or local-network PLC
// stand-in during diagnostics.
func StartOnLoopback(port int, outputFile string) (*Capture, error) {
	devices, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("find network devices: %w", err)
	}

	var loopback string
	for _, device := range devices {
		for _, addr := range device.Addresses {
			if addr.IP.IsLoopback() {
				loopback = device.Name
				break
			}
		}
		if loopback == "" {
			switch device.Name {
			case "lo0", "lo", "Loopback", "Loopback Pseudo-Interface 1":
				loopback = device.Name
			}
		}
		if loopback != "" {
			break
		}
	}
	if loopback == "" {
		return nil, fmt.Errorf("could not find a loopback interface")
	}
	return Start(loopback, port, outputFile)
}

func (c *Capture) captureLoop() {
	src := gopacket.NewPacketSource(c.handle, c.handle.LinkType())

	for {
		select {
		case <-c.stopChan:
			return
		case packet := <-src.Packets():
			if packet == nil {
				continue
			}
			ci := packet.Metadata().CaptureInfo
			if err := c.writer.WritePacket(ci, packet.Data()); err != nil {
				fmt.Fprintf(os.Stderr, "diagcapture: write packet: %v\n", err)
				continue
			}
			c.mu.Lock()
			c.count++
			c.mu.Unlock()
		}
	}
}

// Stop ends the capture and closes its resources. Idempotent.
func (c *Capture) Stop() error {
	c.stopOnce.Do(func() {
		close(c.stopChan)
		time.Sleep(100 * time.Millisecond) // let captureLoop observe the close

		if c.file != nil {
			c.file.Close()
			c.file = nil
		}
		if c.handle != nil {
			c.handle.Close()
			c.handle = nil
		}
	})
	return nil
}

// PacketCount returns the number of packets written so far.
func (c *Capture) PacketCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
