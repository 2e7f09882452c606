package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doover-run/enip-plc-bridge/internal/config"
)

func newExportConfigCmd() *cobra.Command {
	var outputPath string
	var fromPath string

	cmd := &cobra.Command{
		Use:   "export-config",
		Short: "Write a config file, defaulted or re-serialized from an existing one",
		Long: `Export-config writes a config file to disk. With no --from, it writes the
bridge's built-in defaults (server port, separator, no PLCs) as a starting
point for manual editing. With --from, it loads an existing config,
applies defaults to any unset fields, and writes the result to --output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if fromPath != "" {
				loaded, err := config.Load(fromPath)
				if err != nil {
					fmt.Fprintf(os.Stderr, "ERROR: failed to load config: %v\n", err)
					os.Exit(2)
				}
				cfg = loaded
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
	cmd.Flags().StringVar(&fromPath, "from", "", "Existing config file to re-serialize with defaults applied")

	return cmd
}
