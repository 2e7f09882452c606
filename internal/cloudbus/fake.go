package cloudbus

import (
	"context"
	"sync"

	"github.com/doover-run/enip-plc-bridge/internal/namecodec"
)

// FakeBus is an in-process Bus used by tests and local development. It
// holds one aggregate value per channel and calls subscribers synchronously
// on Publish, matching the real device agent's own synchronous delivery.
type FakeBus struct {
	mu       sync.Mutex
	channels map[string]Message
	subs     map[string][]SubscribeFunc
}

// NewFakeBus creates an empty FakeBus.
func NewFakeBus() *FakeBus {
	return &FakeBus{
		channels: make(map[string]Message),
		subs:     make(map[string][]SubscribeFunc),
	}
}

func (b *FakeBus) Subscribe(channel string, fn SubscribeFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[channel] = append(b.subs[channel], fn)
}

func (b *FakeBus) GetAggregate(ctx context.Context, channel string) (Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.channels[channel], nil
}

// Publish deep-merges tree into the channel's existing aggregate (a real
// cloud channel aggregate is cumulative, not replaced wholesale by each
// publish) and delivers the merged aggregate to every subscriber.
func (b *FakeBus) Publish(ctx context.Context, channel string, tree Message, recordLog bool) error {
	b.mu.Lock()
	merged := namecodec.Merge(b.channels[channel], tree)
	b.channels[channel] = merged
	fns := append([]SubscribeFunc(nil), b.subs[channel]...)
	b.mu.Unlock()

	for _, fn := range fns {
		fn(channel, merged)
	}
	return nil
}

// Seed sets channel's aggregate value directly, without notifying
// subscribers, for test setup.
func (b *FakeBus) Seed(channel string, tree Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels[channel] = tree
}
