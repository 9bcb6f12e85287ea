package main

import (
	"github.com/spf13/cobra"
	"gitlab.com/vulnmgmt/vulnsync-tracker/vulnsync"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Commands to work with the database",
}

var dbCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Commands to cleanup the database",
}

var dbCleanChildrenCmd = &cobra.Command{
	Use:   "cve-children",
	Short: "Remove duplicate CVSS metric, reference and weakness rows",
	RunE:  runDBCleanChildren,
}

var cleanFlags = struct {
	dryRun bool
}{}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE:  runDBMigrate,
}

func runDBCleanChildren(cmd *cobra.Command, args []string) error {
	return vulnsync.CleanupVulnChildren(_app.DB, cleanFlags.dryRun)
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	return _app.DB.AutoMigrate(
		&vulnsync.ImportRun{},
		&vulnsync.PlatformEntry{},
		&vulnsync.PlatformReference{},
		&vulnsync.VulnerabilityEntry{},
		&vulnsync.CvssMetric{},
		&vulnsync.VulnReference{},
		&vulnsync.Weakness{},
		&vulnsync.Configuration{},
		&vulnsync.ConfigNode{},
		&vulnsync.Announcement{},
		&vulnsync.AnnouncementCveRef{},
	)
}

func init() {
	dbCleanChildrenCmd.Flags().BoolVarP(&cleanFlags.dryRun, "dry-run", "n", false, "Only show the amount of records found")

	dbCleanCmd.AddCommand(dbCleanChildrenCmd)
	dbCmd.AddCommand(dbCleanCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	rootCmd.AddCommand(dbCmd)
}
