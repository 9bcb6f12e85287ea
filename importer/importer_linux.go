package importer

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
	"gitlab.com/vulnmgmt/vulnsync-tracker/vulnsync"
	"gorm.io/gorm"
)

// LinuxOptions controls one announcement import. Incremental behavior
// comes from the message-id dedup; Full widens the crawl by ignoring
// Limit and walking every discovered message.
type LinuxOptions struct {
	Full    bool
	Limit   int
	BaseURL string
}

// rawVariants lists the conventional paths a single logical message may be
// served under, in preference order.
func rawVariants(messageURL string) []string {
	return []string{
		messageURL + "/raw",
		messageURL + ".txt",
		messageURL + "/t.mbox.gz",
		messageURL + "/t.atom",
		messageURL,
	}
}

// LinuxFeed imports kernel CVE announcements from a mailing-list archive.
// Failing to fetch the index is fatal; everything after that is
// per-message: a fetch or parse failure is logged and the pipeline moves
// on to the next link.
func LinuxFeed(
	db *gorm.DB,
	httpClient *http.Client,
	run *vulnsync.ImportRun,
	opts LinuxOptions,
) error {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")

	status, index, err := fetchText(httpClient, baseURL+"/")
	if err != nil {
		return fmt.Errorf("failed to fetch message list from %s: %w", baseURL, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("failed to fetch message list from %s: status %d", baseURL, status)
	}

	links := ExtractMessageLinks(index, baseURL)
	if !opts.Full && opts.Limit > 0 && len(links) > opts.Limit {
		links = links[:opts.Limit]
	}

	slog.Info("Found messages to process", "count", len(links), "base_url", baseURL)

	for i, link := range links {
		if i%10 == 0 {
			slog.Info("Processing message", "current", i+1, "total", len(links))
		}
		if err := processMessage(db, httpClient, run, link); err != nil {
			slog.Error("Failed to process message", "url", link, "err", err)
		}
	}

	return nil
}

func processMessage(db *gorm.DB, httpClient *http.Client, run *vulnsync.ImportRun, messageURL string) error {
	raw := ""
	for _, candidate := range rawVariants(messageURL) {
		status, body, err := fetchText(httpClient, candidate)
		if err != nil || status != http.StatusOK {
			continue
		}
		if LooksLikeEmail(body) {
			raw = body
			break
		}
	}
	if raw == "" {
		return fmt.Errorf("no raw message content found")
	}

	parsed, err := ParseAnnouncementMail(raw, messageURL, time.Now().UTC())
	if err != nil {
		return err
	}

	// Dedup before any side effects; import is monotonic-append.
	var existing int64
	result := db.Model(&vulnsync.Announcement{}).
		Where("message_id = ?", parsed.MessageID).
		Count(&existing)
	if result.Error != nil {
		return fmt.Errorf("could not check for existing message: %w", result.Error)
	}
	if existing > 0 {
		return nil
	}

	announcement := vulnsync.Announcement{
		MessageID:  parsed.MessageID,
		Subject:    parsed.Subject,
		Sender:     parsed.Sender,
		Date:       parsed.Date,
		Content:    parsed.Content,
		RawContent: parsed.Raw,
	}

	tx := db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("could not start transaction: %w", tx.Error)
	}

	if result := tx.Create(&announcement); result.Error != nil {
		tx.Rollback()
		return fmt.Errorf("could not create announcement: %w", result.Error)
	}

	cveIDs := lo.Uniq(announcement.CVEIDs())
	for _, cveID := range cveIDs {
		ref := vulnsync.AnnouncementCveRef{
			AnnouncementID: announcement.AnnouncementID,
			CveID:          cveID,
		}
		if result := tx.Create(&ref); result.Error != nil {
			tx.Rollback()
			return fmt.Errorf("could not create CVE reference: %w", result.Error)
		}
	}

	run.Processed++
	run.Created++
	if err := run.SaveCounters(tx); err != nil {
		tx.Rollback()
		return err
	}

	if result := tx.Commit(); result.Error != nil {
		return fmt.Errorf("could not commit announcement: %w", result.Error)
	}

	slog.Info("Imported announcement", "subject", truncateSubject(parsed.Subject), "cves", len(cveIDs))
	return nil
}

func fetchText(httpClient *http.Client, requestURL string) (int, string, error) {
	resp, err := httpClient.Get(requestURL)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(body), nil
}

func truncateSubject(subject string) string {
	if len(subject) <= 50 {
		return subject
	}
	return subject[:50] + "..."
}
