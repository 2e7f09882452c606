package monitor

import (
	"strconv"

	"github.com/charmbracelet/huh"

	"github.com/doover-run/enip-plc-bridge/internal/config"
)

// RunConfigWizard interactively builds a starter configuration, grounded on
// the bridge's own config.Config shape. Numeric fields that fail to parse
// keep their defaults; the other entered values are not validated, so the
// result can still fail config.Validate (for example with an empty PLC
// name). Further PLCs or tag mappings can be added by hand afterward.
func RunConfigWizard() (*config.Config, error) {
	port := "44818"
	separator := "__"
	addPLC := true
	plcName := "plc1"
	plcAddress := "192.168.1.10"
	plcPort := "44818"
	syncPeriod := "1.0"
	dooverTag := "line1__setpoint"
	plcTag := "setpoint"
	mode := string(config.SyncFromPLC)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("ENIP server port").
				Description("TCP port the bridge exposes tags on.").
				Value(&port),
			huh.NewInput().
				Title("Tag namespace separator").
				Description("Joins nested cloud tag names into one flat ENIP tag name.").
				Value(&separator),
			huh.NewConfirm().
				Title("Configure a PLC now?").
				Value(&addPLC),
		),
		huh.NewGroup(
			huh.NewInput().Title("PLC name").Value(&plcName),
			huh.NewInput().Title("PLC address").Value(&plcAddress),
			huh.NewInput().Title("PLC port").Value(&plcPort),
			huh.NewInput().Title("Sync period (seconds)").Value(&syncPeriod),
			huh.NewSelect[string]().
				Title("Sync mode for the first tag mapping").
				Options(
					huh.NewOption("FROM_PLC (PLC is authoritative)", string(config.SyncFromPLC)),
					huh.NewOption("TO_PLC (cloud is authoritative)", string(config.SyncToPLC)),
					huh.NewOption("SYNC_PLC_PREFERRED", string(config.SyncPLCPreferred)),
					huh.NewOption("SYNC_DOOVER_PREFERRED", string(config.SyncDooverPreferred)),
				).
				Value(&mode),
			huh.NewInput().Title("Cloud (doover) tag name").Value(&dooverTag),
			huh.NewInput().Title("PLC tag name").Value(&plcTag),
		).WithHideFunc(func() bool { return !addPLC }),
	)

	if err := form.Run(); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if p, err := strconv.Atoi(port); err == nil {
		cfg.Port = p
	}
	if separator != "" {
		cfg.TagNamespaceSeparator = separator
	}
	cfg.EnableEnipServer = true

	if addPLC {
		plcCfg := config.PLCConfig{
			Name:       plcName,
			Address:    plcAddress,
			SyncPeriod: 1.0,
			Timeout:    0.2,
		}
		if p, err := strconv.Atoi(plcPort); err == nil {
			plcCfg.Port = p
		}
		if v, err := strconv.ParseFloat(syncPeriod, 64); err == nil {
			plcCfg.SyncPeriod = v
		}
		plcCfg.TagMappings = []config.TagMapping{
			{Mode: config.SyncMode(mode), DooverTag: dooverTag, PlcTag: plcTag},
		}
		cfg.PLCs = append(cfg.PLCs, plcCfg)
	}

	return cfg, nil
}
