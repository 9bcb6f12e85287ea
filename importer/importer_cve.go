package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gitlab.com/vulnmgmt/vulnsync-tracker/vulnsync"
	"gorm.io/gorm"
)

type CVEOptions struct {
	Full        bool
	BatchSize   int
	Delay       time.Duration
	DaysBack    int
	UseSafeDate bool
}

func (o *CVEOptions) normalize() {
	if o.BatchSize <= 0 || o.BatchSize > MaxBatchSize {
		o.BatchSize = MaxBatchSize
	}
	if o.DaysBack <= 0 {
		o.DaysBack = 7
	}
}

// CVEFeed imports CVE records into the store. Pages merge transactionally;
// child collections are rebuilt whenever a parent is created or its
// lastModified moved.
func CVEFeed(
	db *gorm.DB,
	api *APIv2,
	run *vulnsync.ImportRun,
	opts CVEOptions,
) error {
	opts.normalize()

	var window time.Time
	if !opts.Full {
		window = CVEWindow(time.Now().UTC(), opts.DaysBack, opts.UseSafeDate)
	}

	slog.Info("Importing CVE feed", "full", opts.Full, "window", window)

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

		slog.Info("Fetching CVE page", "start_index", startIndex)
		resp, filterDropped, err := api.GetCVEs(options...)
		if err != nil {
			return fmt.Errorf("could not fetch CVE page: %w", err)
		}
		if filterDropped {
			slog.Warn("Date-filtered request rejected, continuing without filter")
			window = time.Time{}
		}

		if totalResults == -1 {
			totalResults = resp.TotalResults
			slog.Info("Total results", "total", totalResults)
		}

		if len(resp.Vulnerabilities) == 0 {
			break
		}

		if err := mergeCVEPage(db, run, resp.Vulnerabilities); err != nil {
			return err
		}

		startIndex += len(resp.Vulnerabilities)
		if startIndex >= totalResults {
			break
		}

		time.Sleep(delay)
	}

	return nil
}

func mergeCVEPage(db *gorm.DB, run *vulnsync.ImportRun, vulnerabilities []VulnerabilityEnvelope) error {
	tx := db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("could not start transaction: %w", tx.Error)
	}

	for _, envelope := range vulnerabilities {
		if err := mergeCVERecord(tx, run, envelope.CVE); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := run.SaveCounters(tx); err != nil {
		tx.Rollback()
		return err
	}

	if result := tx.Commit(); result.Error != nil {
		return fmt.Errorf("could not commit CVE page: %w", result.Error)
	}
	return nil
}

func mergeCVERecord(tx *gorm.DB, run *vulnsync.ImportRun, record CVERecord) error {
	if record.ID == "" {
		return nil
	}

	now := time.Now().UTC()
	published := ParseFeedTime(record.Published, now)
	lastModified := ParseFeedTime(record.LastModified, now)

	description := ""
	record.Descriptions.SelectLang("en").IfSome(func(d Description) {
		description = d.Value
	})

	var entry vulnsync.VulnerabilityEntry
	created := false
	updated := false

	result := tx.Where(&vulnsync.VulnerabilityEntry{CveID: record.ID}).First(&entry)
	switch {
	case errors.Is(result.Error, gorm.ErrRecordNotFound):
		entry = vulnsync.VulnerabilityEntry{
			CveID:            record.ID,
			SourceIdentifier: record.SourceIdentifier,
			Published:        published,
			LastModified:     lastModified,
			Status:           record.VulnStatus,
			Description:      description,
		}
		if result := tx.Create(&entry); result.Error != nil {
			return fmt.Errorf("could not create vulnerability %s: %w", record.ID, result.Error)
		}
		created = true
	case result.Error != nil:
		return fmt.Errorf("could not look up vulnerability %s: %w", record.ID, result.Error)
	default:
		// lastModified is the cheap "is this actually new" gate; unchanged
		// records keep their children untouched.
		if !entry.LastModified.Equal(lastModified) {
			entry.SourceIdentifier = record.SourceIdentifier
			entry.Published = published
			entry.LastModified = lastModified
			entry.Status = record.VulnStatus
			entry.Description = description
			if result := tx.Save(&entry); result.Error != nil {
				return fmt.Errorf("could not update vulnerability %s: %w", record.ID, result.Error)
			}
			updated = true
		}
	}

	if created || updated {
		// Child failures are tolerated: the committed parent is preferred
		// over aborting the page.
		if err := rebuildCVEChildren(tx, &entry, record); err != nil {
			slog.Warn("Failed to process related data", "cve", record.ID, "err", err)
		}
	}

	run.Processed++
	if created {
		run.Created++
	} else if updated {
		run.Updated++
	}
	return nil
}

// rebuildCVEChildren fully replaces every child collection from the feed
// payload and recomputes the derived severity.
func rebuildCVEChildren(tx *gorm.DB, entry *vulnsync.VulnerabilityEntry, record CVERecord) error {
	if err := deleteCVEChildren(tx, entry.VulnID); err != nil {
		return err
	}

	metrics := record.Metrics.All()
	if err := insertMetrics(tx, entry.VulnID, metrics); err != nil {
		return err
	}

	severities := make([]string, 0, len(metrics))
	for _, metric := range metrics {
		severities = append(severities, metric.BaseSeverity)
	}
	severity := vulnsync.HighestSeverity(severities)
	if entry.Severity != severity {
		entry.Severity = severity
		if result := tx.Model(&vulnsync.VulnerabilityEntry{}).
			Where("vuln_id = ?", entry.VulnID).
			Update("severity", severity); result.Error != nil {
			return fmt.Errorf("could not update severity: %w", result.Error)
		}
	}

	if err := insertReferences(tx, entry.VulnID, record.References); err != nil {
		return err
	}
	if err := insertWeaknesses(tx, entry.VulnID, record.Weaknesses); err != nil {
		return err
	}
	return insertConfigurations(tx, entry.VulnID, record.Configurations)
}

func deleteCVEChildren(tx *gorm.DB, vulnID int) error {
	if result := tx.
		Where("config_id IN (?)", tx.Model(&vulnsync.Configuration{}).Select("config_id").Where("vuln_id = ?", vulnID)).
		Delete(&vulnsync.ConfigNode{}); result.Error != nil {
		return fmt.Errorf("could not clear configuration nodes: %w", result.Error)
	}
	for _, model := range []any{
		&vulnsync.CvssMetric{},
		&vulnsync.VulnReference{},
		&vulnsync.Weakness{},
		&vulnsync.Configuration{},
	} {
		if result := tx.Where("vuln_id = ?", vulnID).Delete(model); result.Error != nil {
			return fmt.Errorf("could not clear child rows: %w", result.Error)
		}
	}
	return nil
}

func insertMetrics(tx *gorm.DB, vulnID int, metrics []MetricRecord) error {
	type metricKey struct{ source, typ string }
	seen := map[metricKey]bool{}
	for _, metric := range metrics {
		key := metricKey{metric.Source, metric.Type}
		if seen[key] {
			continue
		}
		seen[key] = true

		row := vulnsync.CvssMetric{
			VulnID:              vulnID,
			Source:              metric.Source,
			Type:                metric.Type,
			CvssVersion:         metric.Version,
			VectorString:        metric.VectorString,
			BaseScore:           metric.BaseScore,
			BaseSeverity:        metric.BaseSeverity,
			ExploitabilityScore: metric.ExploitabilityScore,
			ImpactScore:         metric.ImpactScore,
		}
		if result := tx.Create(&row); result.Error != nil {
			return fmt.Errorf("could not create cvss metric: %w", result.Error)
		}
	}
	return nil
}

func insertReferences(tx *gorm.DB, vulnID int, references []Reference) error {
	seen := map[string]bool{}
	for _, reference := range references {
		if reference.URL == "" || seen[reference.URL] {
			continue
		}
		seen[reference.URL] = true

		tags := ""
		if len(reference.Tags) > 0 {
			encoded, err := json.Marshal(reference.Tags)
			if err == nil {
				tags = string(encoded)
			}
		}
		row := vulnsync.VulnReference{
			VulnID: vulnID,
			URL:    reference.URL,
			Source: reference.Source,
			Tags:   tags,
		}
		if result := tx.Create(&row); result.Error != nil {
			return fmt.Errorf("could not create reference: %w", result.Error)
		}
	}
	return nil
}

func insertWeaknesses(tx *gorm.DB, vulnID int, weaknesses []Weakness) error {
	type weaknessKey struct{ source, cwe string }
	seen := map[weaknessKey]bool{}
	for _, weakness := range weaknesses {
		for _, description := range weakness.Descriptions {
			if description.Value == "" {
				continue
			}
			key := weaknessKey{weakness.Source, description.Value}
			if seen[key] {
				continue
			}
			seen[key] = true

			row := vulnsync.Weakness{
				VulnID:      vulnID,
				Source:      weakness.Source,
				Type:        weakness.Type,
				CweID:       description.Value,
				Description: description.Value,
			}
			if result := tx.Create(&row); result.Error != nil {
				return fmt.Errorf("could not create weakness: %w", result.Error)
			}
		}
	}
	return nil
}

func insertConfigurations(tx *gorm.DB, vulnID int, configurations []Configuration) error {
	for _, configuration := range configurations {
		row := vulnsync.Configuration{
			VulnID:   vulnID,
			Operator: defaultOperator(configuration.Operator),
			Negate:   configuration.Negate,
		}
		if result := tx.Create(&row); result.Error != nil {
			return fmt.Errorf("could not create configuration: %w", result.Error)
		}

		for _, node := range configuration.Nodes {
			cpeMatch := ""
			if len(node.CPEMatch) > 0 {
				cpeMatch = string(node.CPEMatch)
			}
			nodeRow := vulnsync.ConfigNode{
				ConfigID: row.ConfigID,
				Operator: defaultOperator(node.Operator),
				Negate:   node.Negate,
				CpeMatch: cpeMatch,
			}
			if result := tx.Create(&nodeRow); result.Error != nil {
				return fmt.Errorf("could not create configuration node: %w", result.Error)
			}
		}
	}
	return nil
}

func defaultOperator(op string) string {
	if op == "" {
		return "OR"
	}
	return op
}
