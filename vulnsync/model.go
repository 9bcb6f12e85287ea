package vulnsync

import (
	"regexp"
	"strings"
	"time"
)

// Run kinds and statuses for ImportRun. Runs move from started to exactly
// one terminal status and are never deleted.
const (
	RunKindCPE   = "cpe"
	RunKindCVE   = "cve"
	RunKindLinux = "linux_cve"

	RunStatusStarted   = "started"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusPartial   = "partial"
)

type ImportRun struct {
	RunID        int    `gorm:"primaryKey;not null;index:ix_import_run_run_id"`
	Kind         string `gorm:"type:varchar(20);index:ix_import_run_kind"`
	Status       string `gorm:"type:varchar(20);index:ix_import_run_status"`
	StartedAt    time.Time
	CompletedAt  *time.Time
	Processed    int
	Created      int
	Updated      int
	ErrorMessage string
}

// PlatformEntry is one CPE dictionary record. NameID is the durable
// identity; the canonical name may change under the same NameID.
type PlatformEntry struct {
	PlatformID   int    `gorm:"primaryKey;not null;index:ix_platform_entry_platform_id"`
	NameID       string `gorm:"type:varchar(100);uniqueIndex:ux_platform_entry_name_id"`
	Name         string `gorm:"type:varchar(500);index:ix_platform_entry_name"`
	Title        string
	Deprecated   bool `gorm:"type:boolean;check:deprecated IN (0, 1)"`
	DeprecatedBy string
	LastModified time.Time           `gorm:"index:ix_platform_entry_last_modified"`
	References   []PlatformReference `gorm:"foreignKey:PlatformID;constraint:OnDelete:CASCADE"`
}

// Vendor is the vendor component of the CPE 2.3 name.
func (p PlatformEntry) Vendor() string { return cpeNamePart(p.Name, 3) }

// Product is the product component of the CPE 2.3 name.
func (p PlatformEntry) Product() string { return cpeNamePart(p.Name, 4) }

// Version is the version component of the CPE 2.3 name.
func (p PlatformEntry) Version() string { return cpeNamePart(p.Name, 5) }

func cpeNamePart(name string, idx int) string {
	parts := strings.Split(name, ":")
	if len(parts) > idx {
		return parts[idx]
	}
	return ""
}

type PlatformReference struct {
	RefID      int    `gorm:"primaryKey;not null"`
	PlatformID int    `gorm:"not null;uniqueIndex:ux_platform_reference_href"`
	Href       string `gorm:"uniqueIndex:ux_platform_reference_href"`
	Text       string
}

// VulnerabilityEntry is one CVE record. Severity is derived from the
// attached CVSS metrics at import time and kept in sync whenever the
// metric collection is rebuilt.
type VulnerabilityEntry struct {
	VulnID           int       `gorm:"primaryKey;not null;index:ix_vulnerability_entry_vuln_id"`
	CveID            string    `gorm:"type:varchar(20);uniqueIndex:ux_vulnerability_entry_cve_id"`
	SourceIdentifier string    `gorm:"type:varchar(100)"`
	Published        time.Time `gorm:"index:ix_vulnerability_entry_published"`
	LastModified     time.Time `gorm:"index:ix_vulnerability_entry_last_modified"`
	Status           string    `gorm:"type:varchar(50);index:ix_vulnerability_entry_status"`
	Description      string
	Severity         string          `gorm:"type:varchar(20)"`
	Metrics          []CvssMetric    `gorm:"foreignKey:VulnID;constraint:OnDelete:CASCADE"`
	References       []VulnReference `gorm:"foreignKey:VulnID;constraint:OnDelete:CASCADE"`
	Weaknesses       []Weakness      `gorm:"foreignKey:VulnID;constraint:OnDelete:CASCADE"`
	Configurations   []Configuration `gorm:"foreignKey:VulnID;constraint:OnDelete:CASCADE"`
}

type CvssMetric struct {
	MetricID            int    `gorm:"primaryKey;not null"`
	VulnID              int    `gorm:"not null;uniqueIndex:ux_cvss_metric_source_type"`
	Source              string `gorm:"type:varchar(100);uniqueIndex:ux_cvss_metric_source_type"`
	Type                string `gorm:"type:varchar(20);uniqueIndex:ux_cvss_metric_source_type"`
	CvssVersion         string `gorm:"type:varchar(10)"`
	VectorString        string `gorm:"type:varchar(200)"`
	BaseScore           float64
	BaseSeverity        string `gorm:"type:varchar(20)"`
	ExploitabilityScore *float64
	ImpactScore         *float64
}

type VulnReference struct {
	RefID  int    `gorm:"primaryKey;not null"`
	VulnID int    `gorm:"not null;uniqueIndex:ux_vuln_reference_url"`
	URL    string `gorm:"uniqueIndex:ux_vuln_reference_url"`
	Source string `gorm:"type:varchar(100)"`
	Tags   string
}

type Weakness struct {
	WeaknessID  int    `gorm:"primaryKey;not null"`
	VulnID      int    `gorm:"not null;uniqueIndex:ux_weakness_source_cwe"`
	Source      string `gorm:"type:varchar(100);uniqueIndex:ux_weakness_source_cwe"`
	Type        string `gorm:"type:varchar(20)"`
	CweID       string `gorm:"type:varchar(20);uniqueIndex:ux_weakness_source_cwe"`
	Description string
}

// Configuration and ConfigNode preserve the feed's applicability trees
// without interpreting them. The raw cpeMatch expressions stay exactly as
// the feed sent them; consumers evaluate applicability themselves.
type Configuration struct {
	ConfigID int          `gorm:"primaryKey;not null"`
	VulnID   int          `gorm:"not null;index:ix_configuration_vuln_id"`
	Operator string       `gorm:"type:varchar(10)"`
	Negate   bool         `gorm:"type:boolean;check:negate IN (0, 1)"`
	Nodes    []ConfigNode `gorm:"foreignKey:ConfigID;constraint:OnDelete:CASCADE"`
}

type ConfigNode struct {
	NodeID   int    `gorm:"primaryKey;not null"`
	ConfigID int    `gorm:"not null;index:ix_config_node_config_id"`
	Operator string `gorm:"type:varchar(10)"`
	Negate   bool   `gorm:"type:boolean;check:negate IN (0, 1)"`
	CpeMatch string
}

// Announcement is one Linux kernel CVE announcement mail. MessageID comes
// from the Message-ID header when present and is synthesized from the
// source URL otherwise.
type Announcement struct {
	AnnouncementID int       `gorm:"primaryKey;not null"`
	MessageID      string    `gorm:"type:varchar(200);uniqueIndex:ux_announcement_message_id"`
	Subject        string    `gorm:"type:varchar(500)"`
	Sender         string    `gorm:"type:varchar(254);index:ix_announcement_sender"`
	Date           time.Time `gorm:"index:ix_announcement_date"`
	Content        string
	RawContent     string
	CveRefs        []AnnouncementCveRef `gorm:"foreignKey:AnnouncementID;constraint:OnDelete:CASCADE"`
}

var cveIDPattern = regexp.MustCompile(`CVE-\d{4}-\d{4,}`)

// CVEIDs extracts every CVE identifier mentioned in the announcement body.
func (a Announcement) CVEIDs() []string {
	return cveIDPattern.FindAllString(a.Content, -1)
}

// AffectedComponents collects Component:/Subsystem: lines from the body.
func (a Announcement) AffectedComponents() []string {
	var components []string
	for _, line := range strings.Split(a.Content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Component:") || strings.HasPrefix(line, "Subsystem:") {
			component := strings.TrimSpace(strings.SplitN(line, ":", 2)[1])
			if component != "" {
				components = append(components, component)
			}
		}
	}
	return components
}

// Severity scans the whole body for the first severity keyword. Coarse
// heuristic kept compatible with the announcements dashboard; it can match
// unrelated prose and is pending product review.
func (a Announcement) Severity() string {
	content := strings.ToLower(a.Content)
	for _, severity := range []string{"critical", "high", "medium", "low"} {
		if strings.Contains(content, severity) {
			return strings.ToUpper(severity)
		}
	}
	return "UNKNOWN"
}

type AnnouncementCveRef struct {
	RefID          int    `gorm:"primaryKey;not null"`
	AnnouncementID int    `gorm:"not null;uniqueIndex:ux_announcement_cve_ref"`
	CveID          string `gorm:"type:varchar(20);uniqueIndex:ux_announcement_cve_ref;index:ix_announcement_cve_ref_cve_id"`
}
