package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"gitlab.com/vulnmgmt/vulnsync-tracker/importer"
	"gitlab.com/vulnmgmt/vulnsync-tracker/vulnsync"
)

var linuxCmd = &cobra.Command{
	Use:   "import-linux",
	Short: "Import Linux CVE announcements from the mailing-list archive",
	RunE:  runImportLinux,
}

var linuxFlags = struct {
	full    bool
	limit   int
	baseURL string
}{}

func runImportLinux(cmd *cobra.Command, args []string) error {
	run, err := vulnsync.StartRun(App().DB, vulnsync.RunKindLinux)
	if err != nil {
		return err
	}

	baseURL := linuxFlags.baseURL
	if baseURL == "" {
		baseURL = App().Config.Announce.BaseURL
	}
	limit := linuxFlags.limit
	if limit == 0 {
		limit = App().Config.Announce.Limit
	}

	err = importer.LinuxFeed(App().DB, nil, run, importer.LinuxOptions{
		Full:    linuxFlags.full,
		Limit:   limit,
		BaseURL: baseURL,
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
	slog.Info("Successfully imported Linux CVE announcements",
		"processed", run.Processed,
		"created", run.Created,
		"updated", run.Updated,
	)
	return nil
}

func init() {
	linuxCmd.Flags().BoolVar(&linuxFlags.full, "full", false, "Process every discovered message, ignoring the limit")
	linuxCmd.Flags().IntVar(&linuxFlags.limit, "limit", 0, "Limit number of messages to process (0 uses the configured limit)")
	linuxCmd.Flags().StringVar(&linuxFlags.baseURL, "base-url", "", "Base URL for the announcement archive (defaults to config)")
	rootCmd.AddCommand(linuxCmd)
}
