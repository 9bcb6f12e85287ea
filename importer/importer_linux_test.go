package importer

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/vulnmgmt/vulnsync-tracker/vulnsync"
)

const announcementMail = "Message-ID: <abc@example.com>\r\n" +
	"From: Greg KH <cve@kernel.org>\r\n" +
	"Subject: CVE-2024-1234: net: fix use-after-free in widget teardown\r\n" +
	"Date: Mon, 01 Jan 2024 10:00:00 +0000\r\n" +
	"\r\n" +
	"Description\r\n" +
	"===========\r\n" +
	"A use-after-free was found. Assigned CVE-2024-1234; a related issue\r\n" +
	"is tracked as CVE-2024-5678. CVE-2024-1234 is mentioned again here.\r\n"

// announceArchive serves a list index with one message link plus the raw
// message itself, mimicking a public-inbox style archive.
func announceArchive(t *testing.T, brokenLinks int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/list/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>`)
		for i := 0; i < brokenLinks; i++ {
			fmt.Fprintf(w, `<a href="00000000-dead-%04d/T/#t">broken</a>`, i)
		}
		fmt.Fprint(w, `<a href="2a4d9f3b-91b2-4e77/T/#t">announcement</a></body></html>`)
	})
	mux.HandleFunc("/list/2a4d9f3b-91b2-4e77/raw", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, announcementMail)
	})

	return httptest.NewServer(mux)
}

func TestLinuxFeedImportsAnnouncement(t *testing.T) {
	require := require.New(t)
	db := newTestDB(t)

	srv := announceArchive(t, 0)
	defer srv.Close()

	run := newTestRun(t, db, vulnsync.RunKindLinux)
	require.NoError(LinuxFeed(db, srv.Client(), run, LinuxOptions{BaseURL: srv.URL + "/list"}))

	assert.Equal(t, 1, run.Processed)
	assert.Equal(t, 1, run.Created)

	var announcement vulnsync.Announcement
	require.NoError(db.Where("message_id = ?", "abc@example.com").First(&announcement).Error)
	assert.Equal(t, "CVE-2024-1234: net: fix use-after-free in widget teardown", announcement.Subject)
	assert.Contains(t, announcement.Content, "A use-after-free was found")

	// CVE-2024-1234 appears three times in the message but is stored once.
	var cveIDs []string
	db.Model(&vulnsync.AnnouncementCveRef{}).
		Where("announcement_id = ?", announcement.AnnouncementID).
		Order("cve_id").
		Pluck("cve_id", &cveIDs)
	assert.Equal(t, []string{"CVE-2024-1234", "CVE-2024-5678"}, cveIDs)
}

func TestLinuxFeedRerunSkipsKnownMessages(t *testing.T) {
	require := require.New(t)
	db := newTestDB(t)

	srv := announceArchive(t, 0)
	defer srv.Close()

	first := newTestRun(t, db, vulnsync.RunKindLinux)
	require.NoError(LinuxFeed(db, srv.Client(), first, LinuxOptions{BaseURL: srv.URL + "/list"}))

	second := newTestRun(t, db, vulnsync.RunKindLinux)
	require.NoError(LinuxFeed(db, srv.Client(), second, LinuxOptions{BaseURL: srv.URL + "/list"}))

	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 0, second.Created)

	var announcements, refs int64
	db.Model(&vulnsync.Announcement{}).Count(&announcements)
	db.Model(&vulnsync.AnnouncementCveRef{}).Count(&refs)
	assert.EqualValues(t, 1, announcements)
	assert.EqualValues(t, 2, refs)
}

func TestLinuxFeedSkipsUnfetchableMessages(t *testing.T) {
	require := require.New(t)
	db := newTestDB(t)

	// Broken links 404 on every raw variant; the good message still lands.
	srv := announceArchive(t, 3)
	defer srv.Close()

	run := newTestRun(t, db, vulnsync.RunKindLinux)
	require.NoError(LinuxFeed(db, srv.Client(), run, LinuxOptions{BaseURL: srv.URL + "/list"}))

	assert.Equal(t, 1, run.Processed)
	assert.Equal(t, 1, run.Created)

	var announcements int64
	db.Model(&vulnsync.Announcement{}).Count(&announcements)
	assert.EqualValues(t, 1, announcements)
}

func TestLinuxFeedLimitCapsWork(t *testing.T) {
	require := require.New(t)
	db := newTestDB(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/list/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>`)
		for i := 0; i < 5; i++ {
			fmt.Fprintf(w, `<a href="aaaa%04d-bbbb-cccc/T/#t">msg</a>`, i)
		}
		fmt.Fprint(w, `</body></html>`)
	})
	for i := 0; i < 5; i++ {
		id := i
		mux.HandleFunc(fmt.Sprintf("/list/aaaa%04d-bbbb-cccc/raw", id), func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, "Message-ID: <msg-%d@example.com>\r\nSubject: CVE-2024-%04d fix\r\n\r\nbody CVE-2024-%04d\r\n", id, id, id)
		})
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	run := newTestRun(t, db, vulnsync.RunKindLinux)
	require.NoError(LinuxFeed(db, srv.Client(), run, LinuxOptions{BaseURL: srv.URL + "/list", Limit: 2}))

	assert.Equal(t, 2, run.Processed)

	var announcements int64
	db.Model(&vulnsync.Announcement{}).Count(&announcements)
	assert.EqualValues(t, 2, announcements)

	// Full walks everything the limit would have cut off.
	fullRun := newTestRun(t, db, vulnsync.RunKindLinux)
	require.NoError(LinuxFeed(db, srv.Client(), fullRun, LinuxOptions{BaseURL: srv.URL + "/list", Limit: 2, Full: true}))

	assert.Equal(t, 3, fullRun.Processed)
	db.Model(&vulnsync.Announcement{}).Count(&announcements)
	assert.EqualValues(t, 5, announcements)
}

func TestLinuxFeedIndexFetchFailureIsFatal(t *testing.T) {
	require := require.New(t)
	db := newTestDB(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	run := newTestRun(t, db, vulnsync.RunKindLinux)
	err := LinuxFeed(db, srv.Client(), run, LinuxOptions{BaseURL: srv.URL + "/list"})
	require.Error(err)
	assert.Equal(t, 0, run.Processed)
}
