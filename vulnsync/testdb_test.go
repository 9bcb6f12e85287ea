package vulnsync

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
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
		&ImportRun{},
		&PlatformEntry{},
		&PlatformReference{},
		&VulnerabilityEntry{},
		&CvssMetric{},
		&VulnReference{},
		&Weakness{},
		&Configuration{},
		&ConfigNode{},
		&Announcement{},
		&AnnouncementCveRef{},
	)
	require.NoError(t, err)

	return db
}
