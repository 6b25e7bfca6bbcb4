// Package cli implements the agentarmy command line interface.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/levysystems/agentarmy/internal/cli.version=1.2.3"
	version = "0.1.0"

	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "agentarmy",
	Short: "agentarmy - agent collaboration framework",
	Long: color.CyanString("agentarmy") + " coordinates a fleet of capability-providing agents\n" +
		"over a shared bus with experience replay and workflow orchestration.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(statsCmd)
}
