package vulnsync

import (
	"fmt"

	"gorm.io/gorm"
)

// Repository is the capability contract the read-side collaborators
// (dashboards, search pages) depend on. Each store declares it explicitly
// instead of the consumers probing for optional features at runtime.
type Repository interface {
	Count() (int64, error)
	Search(q string, limit int) ([]string, error)
}

type PlatformRepo struct {
	DB *gorm.DB
}

func (r PlatformRepo) Count() (int64, error) {
	var count int64
	result := r.DB.Model(&PlatformEntry{}).Count(&count)
	return count, result.Error
}

func (r PlatformRepo) Search(q string, limit int) ([]string, error) {
	var entries []PlatformEntry
	result := r.DB.
		Where("name LIKE ? OR title LIKE ?", like(q), like(q)).
		Limit(limit).
		Order("name").
		Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, fmt.Sprintf("%s  %s", entry.Name, entry.Title))
	}
	return lines, nil
}

type VulnRepo struct {
	DB *gorm.DB
}

func (r VulnRepo) Count() (int64, error) {
	var count int64
	result := r.DB.Model(&VulnerabilityEntry{}).Count(&count)
	return count, result.Error
}

func (r VulnRepo) Search(q string, limit int) ([]string, error) {
	var entries []VulnerabilityEntry
	result := r.DB.
		Where("cve_id LIKE ? OR description LIKE ?", like(q), like(q)).
		Limit(limit).
		Order("published DESC").
		Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, fmt.Sprintf("%s  [%s]  %s", entry.CveID, entry.Severity, truncate(entry.Description, 100)))
	}
	return lines, nil
}

type AnnouncementRepo struct {
	DB *gorm.DB
}

func (r AnnouncementRepo) Count() (int64, error) {
	var count int64
	result := r.DB.Model(&Announcement{}).Count(&count)
	return count, result.Error
}

func (r AnnouncementRepo) Search(q string, limit int) ([]string, error) {
	var announcements []Announcement
	result := r.DB.
		Where("subject LIKE ? OR content LIKE ?", like(q), like(q)).
		Limit(limit).
		Order("date DESC").
		Find(&announcements)
	if result.Error != nil {
		return nil, result.Error
	}
	lines := make([]string, 0, len(announcements))
	for _, announcement := range announcements {
		lines = append(lines, fmt.Sprintf("%s  %s", announcement.Date.Format("2006-01-02"), truncate(announcement.Subject, 100)))
	}
	return lines, nil
}

func like(q string) string {
	return "%" + q + "%"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
