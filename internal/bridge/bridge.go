// Package bridge wires the bridge's components together: the tag registry,
// the ENIP server supervisor, the channel bridge, and one PlcSyncTask per
// configured PLC. It is the Go analogue of the source's top-level
// application class.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/doover-run/enip-plc-bridge/internal/channelbridge"
	"github.com/doover-run/enip-plc-bridge/internal/cloudbus"
	"github.com/doover-run/enip-plc-bridge/internal/config"
	"github.com/doover-run/enip-plc-bridge/internal/enipserver"
	"github.com/doover-run/enip-plc-bridge/internal/logging"
	"github.com/doover-run/enip-plc-bridge/internal/plcsync"
	"github.com/doover-run/enip-plc-bridge/internal/registry"
)

const analyticsInterval = 10 * time.Second

// App is the assembled bridge: one ENIP server supervisor, one channel
// bridge, and one sync task per configured PLC.
type App struct {
	cfg    *config.Config
	bus    cloudbus.Bus
	logger *logging.Logger

	registry *registry.Registry
	sup      *enipserver.Supervisor
	chbridge *channelbridge.Bridge
	tasks    []*plcsync.Task

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New assembles (but does not start) the bridge from a loaded configuration
// and a cloud bus implementation.
func New(cfg *config.Config, bus cloudbus.Bus, logger *logging.Logger) *App {
	reg := registry.New()
	sup := enipserver.NewSupervisor(cfg.Port, logger)
	chbridge := channelbridge.New(bus, reg, sup, cfg.TagNamespaceSeparator, logger)

	tasks := make([]*plcsync.Task, 0, len(cfg.PLCs))
	for _, plcCfg := range cfg.PLCs {
		tasks = append(tasks, plcsync.New(plcCfg, reg, bus, cfg.TagNamespaceSeparator, logger))
	}

	return &App{
		cfg:      cfg,
		bus:      bus,
		logger:   logger,
		registry: reg,
		sup:      sup,
		chbridge: chbridge,
		tasks:    tasks,
	}
}

// Start brings the ENIP server supervisor up against the registry's (empty,
// at this point) shape, starts the channel bridge, and launches every
// configured PLC's sync task. Call Stop to tear everything down in reverse
// order.
func (a *App) Start(ctx context.Context) error {
	if a.logger != nil {
		a.logger.LogStartup(a.cfg.Port, a.cfg.EnableEnipServer, len(a.cfg.PLCs), "")
	}

	if err := a.sup.Start(a.registry.Snapshot()); err != nil {
		return err
	}

	stopBridge, err := a.chbridge.Start(ctx)
	if err != nil {
		a.sup.Stop()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	for _, task := range a.tasks {
		task.Start(runCtx)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.analyticsLoop(runCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-runCtx.Done()
		stopBridge()
	}()

	return nil
}

// Stop cancels every task and the channel bridge's forwarder, then stops the
// ENIP server supervisor, and waits for everything to exit.
func (a *App) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	for _, task := range a.tasks {
		task.Stop()
	}
	a.wg.Wait()
	a.sup.Stop()
}

// analyticsLoop logs interaction rates every 10 seconds, mirroring the
// source's periodic main-loop reporting.
func (a *App) analyticsLoop(ctx context.Context) {
	ticker := time.NewTicker(analyticsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.logRates()
		}
	}
}

// Registry exposes the bridge's tag registry, for the status monitor.
func (a *App) Registry() *registry.Registry { return a.registry }

// ChannelUpdateRate exposes the channel bridge's update-rate window, for
// the status monitor.
func (a *App) ChannelUpdateRate() float64 { return a.chbridge.ChannelUpdateRate.Rate() }

// WriteRate exposes the channel bridge's write-rate window, for the status
// monitor.
func (a *App) WriteRate() float64 { return a.chbridge.WriteRate.Rate() }

// Tasks exposes the running PLC sync tasks, for the status monitor.
func (a *App) Tasks() []*plcsync.Task { return a.tasks }

// Port returns the configured ENIP server port.
func (a *App) Port() int { return a.cfg.Port }

func (a *App) logRates() {
	if a.logger == nil {
		return
	}

	readRate := metricsRateFromReads(a.sup.PopReads())
	a.logger.Info("channel update rate: %.2f Hz", a.chbridge.ChannelUpdateRate.Rate())
	a.logger.Info("ENIP server read rate: %.2f Hz", readRate)
	a.logger.Info("ENIP server write rate: %.2f Hz", a.chbridge.WriteRate.Rate())

	for _, task := range a.tasks {
		a.logger.Info(
			"PLC sync task %s running at %.2f Hz: average task time %.3fs",
			task.Name(), task.Ticks.SpeedHz(), task.Ticks.AverageDuration().Seconds(),
		)
	}
}

// metricsRateFromReads applies a RateWindow's count/span formula to a whole
// batch of drained ReadOps (not capped at 30 samples), since reads are only
// ever consumed here.
func metricsRateFromReads(ops []enipserver.ReadOp) float64 {
	if len(ops) < 2 {
		return 0
	}
	span := ops[len(ops)-1].Timestamp.Sub(ops[0].Timestamp).Seconds()
	if span <= 0 {
		return 0
	}
	return float64(len(ops)) / span
}
