package importer

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gitlab.com/vulnmgmt/vulnsync-tracker/vulnsync"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
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
	require.NoError(t, err)

	return db
}

func newTestRun(t *testing.T, db *gorm.DB, kind string) *vulnsync.ImportRun {
	t.Helper()

	run, err := vulnsync.StartRun(db, kind)
	require.NoError(t, err)
	return run
}
