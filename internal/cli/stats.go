package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/levysystems/agentarmy/archive"
	"github.com/levysystems/agentarmy/config"
)

var statsLimit int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the archived event history",
	Long:  "Reads the SQLite event archive and prints per-type counts and the most recent events.",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().IntVarP(&statsLimit, "limit", "n", 10, "number of recent events to show")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Archive.Path == "" {
		return fmt.Errorf("no archive path configured; set archive.path or AGENTARMY_ARCHIVE_PATH")
	}

	store, err := archive.Open(cfg.Archive.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	total, err := store.Len()
	if err != nil {
		return err
	}
	counts, err := store.CountByType()
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	bold.Printf("archived events: %d\n", total)
	for eventType, count := range counts {
		fmt.Printf("  %-20s %d\n", eventType, count)
	}

	rows, err := store.Recent(statsLimit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	bold.Println("recent:")
	for _, r := range rows {
		fmt.Printf("  seq=%-6d %-20s agent=%-10s %s\n",
			r.Seq, r.Type, r.AgentID, r.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return nil
}
