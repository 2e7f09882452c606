package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "enipbridge",
		Short: "ENIP/CIP cloud-to-PLC bridge",
		Long: `enipbridge exposes a cloud namespace's tag values over EtherNet/IP and
CIP, and keeps one or more PLCs' tags synchronized against that namespace
under per-mapping reconciliation rules.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newInitConfigCmd())
	rootCmd.AddCommand(newExportConfigCmd())
	rootCmd.AddCommand(newValidateConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
