package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doover-run/enip-plc-bridge/internal/config"
	"github.com/doover-run/enip-plc-bridge/internal/monitor"
)

func newInitConfigCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Interactively build a config file",
		Long: `Init-config walks through the bridge's server and PLC settings in an
interactive form and writes the result to a YAML config file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := monitor.RunConfigWizard()
			if err != nil {
				fmt.Fprintf(os.Stderr, "ERROR: config wizard: %v\n", err)
				os.Exit(2)
			}

			if err := config.Save(cfg, outputPath); err != nil {
				fmt.Fprintf(os.Stderr, "ERROR: failed to write config: %v\n", err)
				os.Exit(2)
			}

			fmt.Fprintf(os.Stdout, "Config written to %s\n", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "enipbridge.yaml", "Output config file path")

	return cmd
}
