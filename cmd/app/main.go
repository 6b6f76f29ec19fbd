package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
)

type rootFlags struct {
	configPath string
	dev        bool
}

func main() {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:           "app",
		Short:         "Enrollment and billing service for the after-school program",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags, serveOptions{})
		},
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&flags.dev, "dev", false, "enable developer mode (console logs, unredacted PII)")

	rootCmd.AddCommand(serveCmd(flags))
	rootCmd.AddCommand(migrateCmd(flags))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
