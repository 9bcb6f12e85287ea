package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gitlab.com/vulnmgmt/vulnsync-tracker/vulnsync"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record counts per store",
	RunE:  runStats,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search stored records",
	RunE:  runSearch,
}

var searchFlags = struct {
	limit int
}{}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent import runs",
	RunE:  runRuns,
}

func repositories() map[string]vulnsync.Repository {
	return map[string]vulnsync.Repository{
		"platforms":     vulnsync.PlatformRepo{DB: _app.DB},
		"cves":          vulnsync.VulnRepo{DB: _app.DB},
		"announcements": vulnsync.AnnouncementRepo{DB: _app.DB},
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	for name, repo := range repositories() {
		count, err := repo.Count()
		if err != nil {
			return fmt.Errorf("could not count %s: %w", name, err)
		}
		fmt.Printf("%-14s %d\n", name, count)
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return cmd.Usage()
	}

	for name, repo := range repositories() {
		lines, err := repo.Search(args[0], searchFlags.limit)
		if err != nil {
			return fmt.Errorf("could not search %s: %w", name, err)
		}
		for _, line := range lines {
			fmt.Printf("%s: %s\n", name, line)
		}
	}
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	var runs []vulnsync.ImportRun
	result := _app.DB.Order("started_at DESC").Limit(20).Find(&runs)
	if result.Error != nil {
		return fmt.Errorf("could not list runs: %w", result.Error)
	}

	for _, run := range runs {
		fmt.Printf("%-10s %-10s started=%s processed=%d created=%d updated=%d",
			run.Kind, run.Status, run.StartedAt.Format("2006-01-02 15:04:05"),
			run.Processed, run.Created, run.Updated)
		if run.ErrorMessage != "" {
			fmt.Printf(" error=%q", run.ErrorMessage)
		}
		fmt.Println()
	}
	return nil
}

func init() {
	searchCmd.Flags().IntVar(&searchFlags.limit, "limit", 20, "Maximum results per store")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(runsCmd)
}
