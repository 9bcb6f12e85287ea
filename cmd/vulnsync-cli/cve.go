package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"gitlab.com/vulnmgmt/vulnsync-tracker/importer"
	"gitlab.com/vulnmgmt/vulnsync-tracker/vulnsync"
)

var cveCmd = &cobra.Command{
	Use:   "import-cve",
	Short: "Import CVE data from the NVD feed",
	RunE:  runImportCVE,
}

var cveFlags = struct {
	full      bool
	batchSize int
	delaySecs int
	daysBack  int
	safeDate  bool
}{}

func runImportCVE(cmd *cobra.Command, args []string) error {
	run, err := vulnsync.StartRun(App().DB, vulnsync.RunKindCVE)
	if err != nil {
		return err
	}

	api := &importer.APIv2{
		Endpoint: App().Config.Feed.BaseURL + "/%s/2.0",
		APIKey:   App().Config.Feed.APIKey,
	}

	err = importer.CVEFeed(App().DB, api, run, importer.CVEOptions{
		Full:        cveFlags.full,
		BatchSize:   cveFlags.batchSize,
		Delay:       time.Duration(cveFlags.delaySecs) * time.Second,
		DaysBack:    cveFlags.daysBack,
		UseSafeDate: cveFlags.safeDate,
	})
	if err != nil {
		if failErr := run.Fail(App().DB, err); failErr != nil {
			slog.Error("could not finalize run", "err", failErr)
		}
		return err
	}

	if err := run.Complete(App().DB); err != nil {
		return err
	}
	slog.Info("Successfully imported CVE data",
		"processed", run.Processed,
		"created", run.Created,
		"updated", run.Updated,
	)
	return nil
}

func init() {
	cveCmd.Flags().BoolVar(&cveFlags.full, "full", false, "Perform full import (default is incremental)")
	cveCmd.Flags().IntVar(&cveFlags.batchSize, "batch-size", importer.MaxBatchSize, "Number of records per API request (max 2000)")
	cveCmd.Flags().IntVar(&cveFlags.delaySecs, "delay", 0, "Delay between API requests in seconds (0 uses the configured rate)")
	cveCmd.Flags().IntVar(&cveFlags.daysBack, "days-back", 7, "For incremental import, how many days back to check")
	cveCmd.Flags().BoolVar(&cveFlags.safeDate, "safe-date", false, "Use the fixed safe date range for incremental import")
	rootCmd.AddCommand(cveCmd)
}
