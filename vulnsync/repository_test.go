package vulnsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformRepoSearch(t *testing.T) {
	require := require.New(t)
	db := newTestDB(t)

	require.NoError(db.Create(&PlatformEntry{
		NameID: "uuid-a",
		Name:   "cpe:2.3:a:gnu:glibc:2.38:*:*:*:*:*:*:*",
		Title:  "GNU C Library 2.38",
	}).Error)
	require.NoError(db.Create(&PlatformEntry{
		NameID: "uuid-b",
		Name:   "cpe:2.3:a:redhat:openshift:4.1:*:*:*:*:*:*:*",
		Title:  "OpenShift 4.1",
	}).Error)

	repo := PlatformRepo{DB: db}

	count, err := repo.Count()
	require.NoError(err)
	assert.EqualValues(t, 2, count)

	lines, err := repo.Search("glibc", 10)
	require.NoError(err)
	require.Len(lines, 1)
	assert.Contains(t, lines[0], "glibc")
	assert.Contains(t, lines[0], "GNU C Library")
}

func TestVulnRepoSearch(t *testing.T) {
	require := require.New(t)
	db := newTestDB(t)

	require.NoError(db.Create(&VulnerabilityEntry{
		CveID:       "CVE-2024-1234",
		Published:   time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Severity:    "CRITICAL",
		Description: "heap overflow in the widget parser",
	}).Error)

	repo := VulnRepo{DB: db}

	lines, err := repo.Search("widget", 10)
	require.NoError(err)
	require.Len(lines, 1)
	assert.Contains(t, lines[0], "CVE-2024-1234")
	assert.Contains(t, lines[0], "[CRITICAL]")
}

func TestAnnouncementRepoSearch(t *testing.T) {
	require := require.New(t)
	db := newTestDB(t)

	require.NoError(db.Create(&Announcement{
		MessageID: "abc@example.com",
		Subject:   "CVE-2024-1234: net: fix use-after-free",
		Date:      time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Content:   "body",
	}).Error)

	repo := AnnouncementRepo{DB: db}

	count, err := repo.Count()
	require.NoError(err)
	assert.EqualValues(t, 1, count)

	lines, err := repo.Search("use-after-free", 10)
	require.NoError(err)
	require.Len(lines, 1)
	assert.Contains(t, lines[0], "2024-01-01")
}

func TestSearchLimit(t *testing.T) {
	require := require.New(t)
	db := newTestDB(t)

	for _, entry := range []PlatformEntry{
		{NameID: "uuid-1", Name: "cpe:2.3:a:acme:tool:1.0:*:*:*:*:*:*:*"},
		{NameID: "uuid-2", Name: "cpe:2.3:a:acme:tool:1.1:*:*:*:*:*:*:*"},
		{NameID: "uuid-3", Name: "cpe:2.3:a:acme:tool:1.2:*:*:*:*:*:*:*"},
	} {
		require.NoError(db.Create(&entry).Error)
	}

	lines, err := PlatformRepo{DB: db}.Search("acme", 2)
	require.NoError(err)
	assert.Len(t, lines, 2)
}
