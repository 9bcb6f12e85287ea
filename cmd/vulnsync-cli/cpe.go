package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"gitlab.com/vulnmgmt/vulnsync-tracker/importer"
	"gitlab.com/vulnmgmt/vulnsync-tracker/vulnsync"
)

var cpeCmd = &cobra.Command{
	Use:   "import-cpe",
	Short: "Import CPE dictionary data from the NVD feed",
	RunE:  runImportCPE,
}

var cpeFlags = struct {
	full      bool
	batchSize int
	delaySecs int
}{}

func runImportCPE(cmd *cobra.Command, args []string) error {
	run, err := vulnsync.StartRun(App().DB, vulnsync.RunKindCPE)
	if err != nil {
		return err
	}

	api := &importer.APIv2{
		Endpoint: App().Config.Feed.BaseURL + "/%s/2.0",
		APIKey:   App().Config.Feed.APIKey,
	}

	err = importer.CPEFeed(App().DB, api, App().Config, run, importer.CPEOptions{
		Full:      cpeFlags.full,
		BatchSize: cpeFlags.batchSize,
		Delay:     time.Duration(cpeFlags.delaySecs) * time.Second,
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
	slog.Info("Successfully imported CPE data",
		"processed", run.Processed,
		"created", run.Created,
		"updated", run.Updated,
	)
	return nil
}

func init() {
	cpeCmd.Flags().BoolVar(&cpeFlags.full, "full", false, "Perform full import (default is incremental)")
	cpeCmd.Flags().IntVar(&cpeFlags.batchSize, "batch-size", importer.MaxBatchSize, "Number of records per API request (max 2000)")
	cpeCmd.Flags().IntVar(&cpeFlags.delaySecs, "delay", 0, "Delay between API requests in seconds (0 uses the configured rate)")
	rootCmd.AddCommand(cpeCmd)
}
