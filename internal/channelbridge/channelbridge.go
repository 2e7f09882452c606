// Package channelbridge wires the cloud bus to the tag registry and the
// ENIP server supervisor: cloud updates flow in via a subscribe callback,
// server-captured writes flow back out via a background forwarder task.
package channelbridge

import (
	"context"
	"time"

	"github.com/doover-run/enip-plc-bridge/internal/cloudbus"
	"github.com/doover-run/enip-plc-bridge/internal/enipserver"
	"github.com/doover-run/enip-plc-bridge/internal/logging"
	"github.com/doover-run/enip-plc-bridge/internal/metrics"
	"github.com/doover-run/enip-plc-bridge/internal/namecodec"
	"github.com/doover-run/enip-plc-bridge/internal/registry"
	"github.com/doover-run/enip-plc-bridge/internal/tagvalue"
)

const tagValuesChannel = "tag_values"

// Bridge subscribes to the cloud channel, keeps the registry and ENIP
// server supervisor in sync with it, and forwards server-captured writes
// back to the cloud.
type Bridge struct {
	bus       cloudbus.Bus
	registry  *registry.Registry
	sup       *enipserver.Supervisor
	separator string
	logger    *logging.Logger

	ChannelUpdateRate *metrics.RateWindow
	WriteRate         *metrics.RateWindow
}

// New creates a Bridge. Call Start to subscribe and launch the
// write-forwarder.
func New(bus cloudbus.Bus, reg *registry.Registry, sup *enipserver.Supervisor, separator string, logger *logging.Logger) *Bridge {
	return &Bridge{
		bus:               bus,
		registry:          reg,
		sup:               sup,
		separator:         separator,
		logger:            logger,
		ChannelUpdateRate: metrics.NewRateWindow(),
		WriteRate:         metrics.NewRateWindow(),
	}
}

// Start fetches the channel's current aggregate (defaulting to {"TEST":
// true} if the channel has never been published to), applies it, subscribes
// to further updates, and launches the write-forwarder goroutine. The
// returned function cancels the forwarder.
func (b *Bridge) Start(ctx context.Context) (stop func(), err error) {
	tree, err := b.bus.GetAggregate(ctx, tagValuesChannel)
	if err != nil {
		return nil, err
	}
	if len(tree) == 0 {
		if b.logger != nil {
			b.logger.Info("channelbridge: no initial tag contents found, using default")
		}
		tree = cloudbus.Message{"TEST": true}
	}
	b.onUpdate(tagValuesChannel, tree)

	b.bus.Subscribe(tagValuesChannel, b.onUpdate)

	fctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go b.writeForwarder(fctx, done)

	return func() {
		cancel()
		<-done
	}, nil
}

// onUpdate is the cloud subscribe callback (spec.md §4.5): flatten, set the
// registry's full keyset, push the values into the running ENIP worker, and
// record a channel-update sample. It always runs to completion before the
// bus delivers the next update.
func (b *Bridge) onUpdate(_ string, tree cloudbus.Message) {
	pairs := namecodec.Flatten(tree, b.separator)

	values := make(map[string]tagvalue.Value, len(pairs))
	for _, p := range pairs {
		v := tagvalue.Raw(p.Value)
		if v.IsArray && len(v.Array) == 0 {
			continue // an empty array has no element type to advertise
		}
		values[p.Name] = v
	}

	b.registry.SetAll(values)

	descs := b.registry.Snapshot()
	if err := b.sup.SetTags(descs); err != nil && b.logger != nil {
		b.logger.Error("channelbridge: SetTags: %v", err)
	}
	if errs := b.sup.WriteTags(values); b.logger != nil {
		for _, e := range errs {
			b.logger.Error("channelbridge: write_tags: %v", e)
		}
	}

	b.ChannelUpdateRate.Mark(time.Now())
}

// writeForwarder drains server-captured writes and republishes them to the
// cloud channel. It never exits on a transient publish failure: it logs,
// backs off 1s, and retries. It exits only when ctx is cancelled.
func (b *Bridge) writeForwarder(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	for {
		if !b.sup.AwaitWrite(1 * time.Second) {
			select {
			case <-ctx.Done():
				return
			default:
				continue
			}
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		writes := b.sup.PopWrites()
		if len(writes) == 0 {
			continue
		}

		msg := cloudbus.Message{}
		for _, w := range writes {
			leaf := namecodec.Unflatten(w.TagName, tagvalue.Interface(w.Value), b.separator)
			msg = namecodec.Merge(msg, leaf)
			b.WriteRate.Mark(time.Now())
		}

		if err := b.bus.Publish(ctx, tagValuesChannel, msg, false); err != nil {
			if b.logger != nil {
				b.logger.Error("channelbridge: publish failed: %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(1 * time.Second):
			}
			continue
		}
	}
}
