package importer

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gitlab.com/vulnmgmt/vulnsync-tracker/vulnsync"
	"gorm.io/gorm"
)

type CPEOptions struct {
	Full      bool
	BatchSize int
	Delay     time.Duration
}

// MaxBatchSize is the feed's hard cap on resultsPerPage.
const MaxBatchSize = 2000

func (o *CPEOptions) normalize() {
	if o.BatchSize <= 0 || o.BatchSize > MaxBatchSize {
		o.BatchSize = MaxBatchSize
	}
}

// CPEFeed imports the CPE dictionary into the store. Each page merges in
// one transaction; a mid-page failure rolls back that page only. Run
// counters are persisted with every page so a crash loses at most one
// in-flight page.
func CPEFeed(
	db *gorm.DB,
	api *APIv2,
	config vulnsync.Config,
	run *vulnsync.ImportRun,
	opts CPEOptions,
) error {
	opts.normalize()

	rewriters, err := compileRewriters(config.Rewriters)
	if err != nil {
		return err
	}

	var window time.Time
	if !opts.Full {
		var latest vulnsync.PlatformEntry
		result := db.Order("last_modified DESC").First(&latest)
		if result.Error == nil {
			window = ClampWindow(latest.LastModified)
		} else if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return fmt.Errorf("could not determine incremental window: %w", result.Error)
		}
	}

	slog.Info("Importing CPE feed", "full", opts.Full, "window", window)

	startIndex := 0
	totalResults := -1
	delay := api.PageDelay(opts.Delay)

	for {
		options := []RequestOptionsFunc{
			ResultsPerPage(opts.BatchSize),
			StartIndex(startIndex),
		}
		if !window.IsZero() {
			options = append(options, LastModStart(window))
		}

		slog.Info("Fetching CPE page", "start_index", startIndex)
		resp, filterDropped, err := api.GetCPEs(options...)
		if err != nil {
			return fmt.Errorf("could not fetch CPE page: %w", err)
		}
		if filterDropped {
			slog.Warn("Date-filtered request rejected, continuing without filter")
			window = time.Time{}
		}

		if totalResults == -1 {
			totalResults = resp.TotalResults
			slog.Info("Total results", "total", totalResults)
		}

		if len(resp.Products) == 0 {
			break
		}

		if err := mergeCPEPage(db, run, rewriters, resp.Products); err != nil {
			return err
		}

		startIndex += len(resp.Products)
		if startIndex >= totalResults {
			break
		}

		time.Sleep(delay)
	}

	return nil
}

func mergeCPEPage(
	db *gorm.DB,
	run *vulnsync.ImportRun,
	rewriters []compiledRewriter,
	products []ProductEnvelope,
) error {
	tx := db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("could not start transaction: %w", tx.Error)
	}

	for _, product := range products {
		if err := mergeCPERecord(tx, run, rewriters, product.CPE); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := run.SaveCounters(tx); err != nil {
		tx.Rollback()
		return err
	}

	if result := tx.Commit(); result.Error != nil {
		return fmt.Errorf("could not commit CPE page: %w", result.Error)
	}
	return nil
}

func mergeCPERecord(
	tx *gorm.DB,
	run *vulnsync.ImportRun,
	rewriters []compiledRewriter,
	record CPERecord,
) error {
	if record.Name == "" || record.NameID == "" {
		return nil
	}

	name := record.Name
	for _, rewriter := range rewriters {
		name = rewriter.Rewrite(name)
	}

	lastModified := ParseFeedTime(record.LastModified, time.Now().UTC())

	deprecatedBy := ""
	if len(record.DeprecatedBy) > 0 {
		deprecatedBy = string(record.DeprecatedBy)
	}

	title := ""
	record.Titles.First().IfSome(func(t Title) {
		title = t.Title
	})

	var entry vulnsync.PlatformEntry
	created := false
	dirty := false

	result := tx.Where(&vulnsync.PlatformEntry{NameID: record.NameID}).First(&entry)
	switch {
	case errors.Is(result.Error, gorm.ErrRecordNotFound):
		entry = vulnsync.PlatformEntry{
			NameID:       record.NameID,
			Name:         name,
			Title:        title,
			Deprecated:   record.Deprecated,
			DeprecatedBy: deprecatedBy,
			LastModified: lastModified,
		}
		if result := tx.Create(&entry); result.Error != nil {
			return fmt.Errorf("could not create platform entry %s: %w", record.NameID, result.Error)
		}
		created = true
	case result.Error != nil:
		return fmt.Errorf("could not look up platform entry %s: %w", record.NameID, result.Error)
	default:
		assign(&entry.Name, name, &dirty)
		if title != "" {
			assign(&entry.Title, title, &dirty)
		}
		assign(&entry.Deprecated, record.Deprecated, &dirty)
		assign(&entry.DeprecatedBy, deprecatedBy, &dirty)
		assignTime(&entry.LastModified, lastModified, &dirty)

		if dirty {
			if result := tx.Save(&entry); result.Error != nil {
				return fmt.Errorf("could not update platform entry %s: %w", record.NameID, result.Error)
			}
		}
	}

	if err := mergeCPEReferences(tx, entry, record.Refs); err != nil {
		return err
	}

	// Reference-only additions count as processed but not updated; only a
	// scalar field change moves the updated counter.
	run.Processed++
	if created {
		run.Created++
	} else if dirty {
		run.Updated++
	}
	return nil
}

// mergeCPEReferences is append-only: hrefs not yet stored are added and
// nothing existing is ever modified or removed.
func mergeCPEReferences(tx *gorm.DB, entry vulnsync.PlatformEntry, refs []CPEReference) error {
	var existing []string
	result := tx.Model(&vulnsync.PlatformReference{}).
		Where("platform_id = ?", entry.PlatformID).
		Pluck("href", &existing)
	if result.Error != nil {
		return fmt.Errorf("could not load references for %s: %w", entry.NameID, result.Error)
	}

	seen := make(map[string]bool, len(existing))
	for _, href := range existing {
		seen[href] = true
	}

	for _, ref := range refs {
		if ref.Ref == "" || seen[ref.Ref] {
			continue
		}
		reference := vulnsync.PlatformReference{
			PlatformID: entry.PlatformID,
			Href:       ref.Ref,
			Text:       ref.Text,
		}
		if result := tx.Create(&reference); result.Error != nil {
			return fmt.Errorf("could not create reference for %s: %w", entry.NameID, result.Error)
		}
		seen[ref.Ref] = true
	}
	return nil
}
