package vulnsync

import (
	"fmt"

	"gorm.io/gorm"
)

// CleanupVulnChildren removes duplicate child rows left behind by imports
// that predate the unique natural-key indexes. The first row for each key
// wins; later rows are deleted.
func CleanupVulnChildren(db *gorm.DB, dryRun bool) error {
	tx := db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("could not start transaction: %w", tx.Error)
	}

	var metrics []CvssMetric
	tx.Order("metric_id").Find(&metrics)
	seenMetrics := map[[3]string]bool{}
	duplicateMetrics := 0
	for _, metric := range metrics {
		key := [3]string{fmt.Sprint(metric.VulnID), metric.Source, metric.Type}
		if seenMetrics[key] {
			duplicateMetrics++
			if !dryRun {
				tx.Delete(&CvssMetric{}, metric.MetricID)
			}
			continue
		}
		seenMetrics[key] = true
	}
	fmt.Printf("Found %d duplicate CVSS metrics\n", duplicateMetrics)

	var references []VulnReference
	tx.Order("ref_id").Find(&references)
	seenRefs := map[[2]string]bool{}
	duplicateRefs := 0
	for _, reference := range references {
		key := [2]string{fmt.Sprint(reference.VulnID), reference.URL}
		if seenRefs[key] {
			duplicateRefs++
			if !dryRun {
				tx.Delete(&VulnReference{}, reference.RefID)
			}
			continue
		}
		seenRefs[key] = true
	}
	fmt.Printf("Found %d duplicate references\n", duplicateRefs)

	var weaknesses []Weakness
	tx.Order("weakness_id").Find(&weaknesses)
	seenWeaknesses := map[[3]string]bool{}
	duplicateWeaknesses := 0
	for _, weakness := range weaknesses {
		key := [3]string{fmt.Sprint(weakness.VulnID), weakness.Source, weakness.CweID}
		if seenWeaknesses[key] {
			duplicateWeaknesses++
			if !dryRun {
				tx.Delete(&Weakness{}, weakness.WeaknessID)
			}
			continue
		}
		seenWeaknesses[key] = true
	}
	fmt.Printf("Found %d duplicate weaknesses\n", duplicateWeaknesses)

	if dryRun {
		tx.Rollback()
		return nil
	}
	tx.Commit()
	if tx.Error != nil {
		return fmt.Errorf("could not delete duplicate records: %w", tx.Error)
	}
	return nil
}
