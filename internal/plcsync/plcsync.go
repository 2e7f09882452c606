// Package plcsync implements PlcSyncTask: one cooperative loop per
// configured PLC that reads and writes PLC tags and reconciles them
// against the cloud namespace under four sync modes.
package plcsync

import (
	"context"
	"errors"
	"math"
	"net"
	"time"

	"github.com/doover-run/enip-plc-bridge/internal/bridgeerrors"
	"github.com/doover-run/enip-plc-bridge/internal/cloudbus"
	"github.com/doover-run/enip-plc-bridge/internal/config"
	"github.com/doover-run/enip-plc-bridge/internal/logging"
	"github.com/doover-run/enip-plc-bridge/internal/metrics"
	"github.com/doover-run/enip-plc-bridge/internal/namecodec"
	"github.com/doover-run/enip-plc-bridge/internal/plcclient"
	"github.com/doover-run/enip-plc-bridge/internal/registry"
	"github.com/doover-run/enip-plc-bridge/internal/tagvalue"
)

const floatTolerance = 0.01

// Task is one PLC's sync loop: outer reconnect loop wrapping an inner
// fixed-period tick loop, with a last-agreed-value per mapping for the
// two symmetric reconciliation modes.
type Task struct {
	plcCfg    config.PLCConfig
	registry  *registry.Registry
	bus       cloudbus.Bus
	separator string
	logger    *logging.Logger

	lastAgreed map[string]tagvalue.Value // keyed by plc_tag

	Ticks *metrics.TickWindow

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Task for one configured PLC.
func New(plcCfg config.PLCConfig, reg *registry.Registry, bus cloudbus.Bus, separator string, logger *logging.Logger) *Task {
	return &Task{
		plcCfg:     plcCfg,
		registry:   reg,
		bus:        bus,
		separator:  separator,
		logger:     logger,
		lastAgreed: make(map[string]tagvalue.Value),
		Ticks:      metrics.NewTickWindow(10),
	}
}

// Name returns the PLC's configured name, used for logging and metrics.
func (t *Task) Name() string {
	if t.plcCfg.Name != "" {
		return t.plcCfg.Name
	}
	return t.plcCfg.Address
}

// Start launches the outer reconnect loop. Call Stop to cancel it.
func (t *Task) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.run(ctx)
}

// Stop cancels the task and waits for its goroutine to exit.
func (t *Task) Stop() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
}

func (t *Task) run(ctx context.Context) {
	defer close(t.done)

	period := time.Duration(t.plcCfg.SyncPeriod * float64(time.Second))
	if period <= 0 {
		period = time.Second
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		client := plcclient.New(plcclient.Options{
			Address:  t.plcCfg.Address,
			Port:     t.plcCfg.Port,
			Micro800: t.plcCfg.Micro800,
			Username: t.plcCfg.Username,
			Password: t.plcCfg.Password,
			Timeout:  time.Duration(t.plcCfg.Timeout * float64(time.Second)),
		})
		if t.plcCfg.Username != "" || t.plcCfg.Password != "" {
			// Credentials have no session-level carrier in the services this
			// client speaks; logged, never fatal.
			if t.logger != nil {
				t.logger.Info("plcsync: %s: UserTag/PasswordTag are configured but not used by Read_Tag/Write_Tag", t.Name())
			}
		}

		if err := client.Connect(ctx); err != nil {
			if t.logger != nil {
				t.logger.Error("plcsync: %v", bridgeerrors.NewPlcConnectError(t.Name(), err))
			}
			if !sleepOrDone(ctx, time.Second) {
				return
			}
			continue
		}

		err := t.innerLoop(ctx, client, period)
		client.Close()

		if err == nil {
			return // context cancelled
		}
		if t.logger != nil {
			t.logger.Error("plcsync: %s: connection lost: %v", t.Name(), err)
		}
		if !sleepOrDone(ctx, time.Second) {
			return
		}
	}
}

// innerLoop ticks at sync_period_secs until ctx is cancelled (returns nil)
// or a connection-fatal error occurs (returned to the outer loop).
func (t *Task) innerLoop(ctx context.Context, client *plcclient.Client, period time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		start := time.Now()
		err := t.tick(ctx, client)
		t.Ticks.Record(start, time.Since(start))
		if err != nil {
			return err
		}

		elapsed := time.Since(start)
		sleep := period - elapsed
		if sleep > 0 {
			if !sleepOrDone(ctx, sleep) {
				return nil
			}
		}
	}
}

// tick runs every configured mapping once, merging cloud-bound updates into
// a single message published at the end. A connection-fatal error from the
// client aborts the tick and is returned to trigger a reconnect; any other
// per-mapping failure is logged and the tick proceeds.
func (t *Task) tick(ctx context.Context, client *plcclient.Client) error {
	toPublish := map[string]any{}

	for _, m := range t.plcCfg.TagMappings {
		switch m.Mode {
		case config.SyncFromPLC:
			v, err := client.ReadTag(m.PlcTag)
			if err != nil {
				if isConnectionFatal(err) {
					return err
				}
				t.logIoErr(m.PlcTag, err)
				continue
			}
			namecodec.Merge(toPublish, namecodec.Unflatten(m.DooverTag, tagvalue.Interface(v), t.separator))

		case config.SyncToPLC:
			d, ok := t.registry.Get(m.DooverTag)
			if !ok {
				continue
			}
			if err := client.WriteTag(m.PlcTag, d.CurrentValue); err != nil {
				if isConnectionFatal(err) {
					return err
				}
				t.logIoErr(m.PlcTag, err)
			}

		case config.SyncPLCPreferred:
			if err := t.reconcile(client, m, true, toPublish); err != nil {
				return err
			}

		case config.SyncDooverPreferred:
			if err := t.reconcile(client, m, false, toPublish); err != nil {
				return err
			}
		}
	}

	if len(toPublish) == 0 {
		return nil
	}
	return t.publish(ctx, toPublish)
}

// reconcile implements the three-way reconciliation shared by
// SYNC_PLC_PREFERRED (plcPreferred=true) and SYNC_DOOVER_PREFERRED
// (plcPreferred=false).
func (t *Task) reconcile(client *plcclient.Client, m config.TagMapping, plcPreferred bool, toPublish map[string]any) error {
	plcVal, plcErr := client.ReadTag(m.PlcTag)
	if plcErr != nil {
		if isConnectionFatal(plcErr) {
			return plcErr
		}
		t.logIoErr(m.PlcTag, plcErr)
		return nil // PLC read failed: skip this mapping for the tick
	}

	doover, haveDoover := t.registry.Get(m.DooverTag)
	var dooverVal tagvalue.Value
	if haveDoover {
		dooverVal = doover.CurrentValue
	}

	var preferred, other tagvalue.Value
	if plcPreferred {
		preferred, other = plcVal, dooverVal
	} else {
		preferred, other = dooverVal, plcVal
	}

	last, haveLast := t.lastAgreed[m.PlcTag]

	switch {
	case !haveLast || changed(last, preferred):
		t.lastAgreed[m.PlcTag] = preferred
		if plcPreferred {
			namecodec.Merge(toPublish, namecodec.Unflatten(m.DooverTag, tagvalue.Interface(preferred), t.separator))
		} else {
			if err := client.WriteTag(m.PlcTag, preferred); err != nil {
				if isConnectionFatal(err) {
					return err
				}
				t.logIoErr(m.PlcTag, err)
			}
		}

	case changed(last, other):
		t.lastAgreed[m.PlcTag] = other
		if plcPreferred {
			if err := client.WriteTag(m.PlcTag, other); err != nil {
				if isConnectionFatal(err) {
					return err
				}
				t.logIoErr(m.PlcTag, err)
			}
		} else {
			namecodec.Merge(toPublish, namecodec.Unflatten(m.DooverTag, tagvalue.Interface(other), t.separator))
		}
	}

	return nil
}

func (t *Task) publish(ctx context.Context, tree map[string]any) error {
	if err := t.bus.Publish(ctx, "tag_values", tree, false); err != nil && t.logger != nil {
		t.logger.Error("plcsync: %v", bridgeerrors.NewCloudPublishError("tag_values", err))
	}
	return nil
}

func (t *Task) logIoErr(plcTag string, err error) {
	if t.logger != nil {
		t.logger.Error("plcsync: %v", bridgeerrors.NewPlcIoError(t.Name(), plcTag, err))
	}
}

// changed reports whether a and b differ meaningfully: float tolerance for
// REAL-shaped values, exact equality otherwise.
func changed(a, b tagvalue.Value) bool {
	if a.IsReal && b.IsReal {
		return math.Abs(a.Real-b.Real) > floatTolerance
	}
	return !tagvalue.Equal(a, b)
}

// isConnectionFatal distinguishes a broken transport (warranting the outer
// loop's close-and-reopen) from a CIP-level failure against an otherwise
// healthy connection (e.g. an unknown tag name), which is logged and
// skipped for the current mapping only.
func isConnectionFatal(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
