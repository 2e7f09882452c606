package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doover-run/enip-plc-bridge/internal/config"
)

func newValidateConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-config [path]",
		Short: "Load and validate a config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "enipbridge.yaml"
			if len(args) == 1 {
				path = args[0]
			}

			cfg, err := config.Load(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
				os.Exit(2)
			}

			fmt.Fprintf(os.Stdout, "OK: %s is valid (port %d, %d PLC(s) configured)\n", path, cfg.Port, len(cfg.PLCs))
			return nil
		},
	}

	return cmd
}
