package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/doover-run/enip-plc-bridge/internal/bridge"
	"github.com/doover-run/enip-plc-bridge/internal/cloudbus"
	"github.com/doover-run/enip-plc-bridge/internal/config"
	"github.com/doover-run/enip-plc-bridge/internal/diagcapture"
	"github.com/doover-run/enip-plc-bridge/internal/logging"
	"github.com/doover-run/enip-plc-bridge/internal/monitor"
)

type runFlags struct {
	configPath string
	logLevel   string
	logFile    string
	tui        bool
	pcapFile   string
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bridge",
		Long: `Run starts the ENIP/CIP server, subscribes to the cloud tag_values
channel, and launches one sync task per configured PLC. Press Ctrl+C to
stop gracefully.`,
		Example: `  # Run with the default config file
  enipbridge run

  # Run with a live status dashboard instead of log output
  enipbridge run --tui

  # Run with verbose logging to a file
  enipbridge run --log-level debug --log-file bridge.log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runBridge(flags); err != nil {
				os.Exit(2)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "enipbridge.yaml", "Config file path")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "info", "Log level: silent|error|info|verbose|debug")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "Log file path (empty: stdout/stderr only)")
	cmd.Flags().BoolVar(&flags.tui, "tui", false, "Show a live status dashboard instead of log output")
	cmd.Flags().StringVar(&flags.pcapFile, "pcap", "", "Capture the ENIP server's own traffic to a pcap file")

	return cmd
}

func runBridge(flags *runFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to load config: %v\n", err)
		return err
	}

	logger, err := logging.NewLogger(parseLogLevel(flags.logLevel), flags.logFile)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()

	var pcapCapture *diagcapture.Capture
	if flags.pcapFile != "" {
		fmt.Fprintf(os.Stdout, "Starting packet capture on port %d: %s\n", cfg.Port, flags.pcapFile)
		pcapCapture, err = diagcapture.StartOnLoopback(cfg.Port, flags.pcapFile)
		if err != nil {
			return fmt.Errorf("start packet capture: %w", err)
		}
		defer pcapCapture.Stop()
	}

	// A real deployment wires a concrete cloudbus.Bus backed by the cloud
	// platform's device-agent SDK here. That SDK is an external boundary
	// this bridge does not implement; FakeBus stands in so `run` still
	// exercises the full registry/server/sync pipeline end to end.
	bus := cloudbus.NewFakeBus()

	app := bridge.New(cfg, bus, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to start bridge: %v\n", err)
		return err
	}
	fmt.Fprintf(os.Stdout, "Bridge started: ENIP server on port %d, %d PLC(s) configured\n", cfg.Port, len(cfg.PLCs))

	if flags.tui {
		err := monitor.Run(app)
		app.Stop()
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Fprintf(os.Stdout, "\nShutting down bridge...\n")
	app.Stop()

	if pcapCapture != nil {
		pcapCapture.Stop()
		fmt.Fprintf(os.Stdout, "Packets captured: %d\n", pcapCapture.PacketCount())
	}

	return nil
}

func parseLogLevel(value string) logging.LogLevel {
	switch value {
	case "silent":
		return logging.LogLevelSilent
	case "error":
		return logging.LogLevelError
	case "verbose":
		return logging.LogLevelVerbose
	case "debug":
		return logging.LogLevelDebug
	default:
		return logging.LogLevelInfo
	}
}
