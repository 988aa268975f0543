// Package cli implements the account-plan command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/NamrataaKale/Account-Plan-Generator/internal/config"
	"github.com/NamrataaKale/Account-Plan-Generator/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	persona  string

	// loaded at init time
	paths config.Paths
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account-plan",
		Short: "Account Plan Generator — conversational account research assistant",
		Long: "Account Plan Generator researches target companies in conversation with " +
			"a hosted model and builds a structured account plan per session.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			level := logLevel
			if level == "" {
				level = "info"
			}
			log = logging.New(nil, level)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.account-plan/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")
	cmd.PersistentFlags().StringVar(&persona, "persona", "", "persona override (precise, default, creative)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newExportCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
