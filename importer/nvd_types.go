package importer

import (
	"encoding/json"
	"time"

	"github.com/moznion/go-optional"
)

// Wire types for the NVD API v2 responses. External feeds are not trusted
// to be fully well-formed, so every field decodes to a usable zero value.

type CPEResponse struct {
	ResultsPerPage int               `json:"resultsPerPage"`
	StartIndex     int               `json:"startIndex"`
	TotalResults   int               `json:"totalResults"`
	Format         string            `json:"format"`
	Version        string            `json:"version"`
	Timestamp      string            `json:"timestamp"`
	Products       []ProductEnvelope `json:"products"`
}

type ProductEnvelope struct {
	CPE CPERecord `json:"cpe"`
}

type CPERecord struct {
	Name         string          `json:"cpeName"`
	NameID       string          `json:"cpeNameId"`
	Deprecated   bool            `json:"deprecated"`
	DeprecatedBy json.RawMessage `json:"deprecatedBy"`
	LastModified string          `json:"lastModified"`
	Titles       Titles          `json:"titles"`
	Refs         []CPEReference  `json:"refs"`
}

type Titles []Title

// First returns the leading title entry if the feed sent any.
func (t Titles) First() optional.Option[Title] {
	return OptionalFirst(t)
}

type Title struct {
	Title string `json:"title"`
	Lang  string `json:"lang"`
}

type CPEReference struct {
	Ref  string `json:"ref"`
	Text string `json:"text"`
	Type string `json:"type"`
}

type CVEResponse struct {
	ResultsPerPage  int                     `json:"resultsPerPage"`
	StartIndex      int                     `json:"startIndex"`
	TotalResults    int                     `json:"totalResults"`
	Format          string                  `json:"format"`
	Version         string                  `json:"version"`
	Timestamp       string                  `json:"timestamp"`
	Vulnerabilities []VulnerabilityEnvelope `json:"vulnerabilities"`
}

type VulnerabilityEnvelope struct {
	CVE CVERecord `json:"cve"`
}

type CVERecord struct {
	ID               string          `json:"id"`
	SourceIdentifier string          `json:"sourceIdentifier"`
	Published        string          `json:"published"`
	LastModified     string          `json:"lastModified"`
	VulnStatus       string          `json:"vulnStatus"`
	Descriptions     Descriptions    `json:"descriptions"`
	Metrics          Metrics         `json:"metrics"`
	Weaknesses       []Weakness      `json:"weaknesses"`
	Configurations   []Configuration `json:"configurations"`
	References       []Reference     `json:"references"`
}

type Descriptions []Description

// SelectLang returns the first description tagged with the given language.
func (d Descriptions) SelectLang(lang string) optional.Option[Description] {
	for _, description := range d {
		if description.Lang == lang {
			return optional.Some(description)
		}
	}
	return optional.None[Description]()
}

type Description struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

type Metrics struct {
	CvssMetricV40 []CvssMetric   `json:"cvssMetricV40"`
	CvssMetricV31 []CvssMetric   `json:"cvssMetricV31"`
	CvssMetricV30 []CvssMetric   `json:"cvssMetricV30"`
	CvssMetricV2  []CvssMetricV2 `json:"cvssMetricV2"`
}

// MetricRecord is the normalized form of one CVSS metric regardless of the
// CVSS version it was reported under.
type MetricRecord struct {
	Source              string
	Type                string
	Version             string
	VectorString        string
	BaseScore           float64
	BaseSeverity        string
	ExploitabilityScore *float64
	ImpactScore         *float64
}

// All flattens every version-specific metric list into MetricRecords,
// preserving feed order. CVSS v2 keeps its severity outside cvssData.
func (m Metrics) All() []MetricRecord {
	var records []MetricRecord
	versionedLists := []struct {
		version string
		metrics []CvssMetric
	}{
		{"4.0", m.CvssMetricV40},
		{"3.1", m.CvssMetricV31},
		{"3.0", m.CvssMetricV30},
	}
	for _, list := range versionedLists {
		for _, metric := range list.metrics {
			version := metric.CvssData.Version
			if version == "" {
				version = list.version
			}
			records = append(records, MetricRecord{
				Source:              metric.Source,
				Type:                metric.Type,
				Version:             version,
				VectorString:        metric.CvssData.VectorString,
				BaseScore:           metric.CvssData.BaseScore,
				BaseSeverity:        metric.CvssData.BaseSeverity,
				ExploitabilityScore: metric.ExploitabilityScore,
				ImpactScore:         metric.ImpactScore,
			})
		}
	}
	for _, metric := range m.CvssMetricV2 {
		version := metric.CvssData.Version
		if version == "" {
			version = "2.0"
		}
		records = append(records, MetricRecord{
			Source:              metric.Source,
			Type:                metric.Type,
			Version:             version,
			VectorString:        metric.CvssData.VectorString,
			BaseScore:           metric.CvssData.BaseScore,
			BaseSeverity:        metric.BaseSeverity,
			ExploitabilityScore: metric.ExploitabilityScore,
			ImpactScore:         metric.ImpactScore,
		})
	}
	return records
}

type CvssMetric struct {
	Source              string   `json:"source"`
	Type                string   `json:"type"`
	CvssData            CvssData `json:"cvssData"`
	ExploitabilityScore *float64 `json:"exploitabilityScore"`
	ImpactScore         *float64 `json:"impactScore"`
}

type CvssMetricV2 struct {
	Source              string   `json:"source"`
	Type                string   `json:"type"`
	CvssData            CvssData `json:"cvssData"`
	BaseSeverity        string   `json:"baseSeverity"`
	ExploitabilityScore *float64 `json:"exploitabilityScore"`
	ImpactScore         *float64 `json:"impactScore"`
}

type CvssData struct {
	Version      string  `json:"version"`
	VectorString string  `json:"vectorString"`
	BaseScore    float64 `json:"baseScore"`
	BaseSeverity string  `json:"baseSeverity"`
}

type Weakness struct {
	Source       string       `json:"source"`
	Type         string       `json:"type"`
	Descriptions Descriptions `json:"description"`
}

type Configuration struct {
	Operator string `json:"operator"`
	Negate   bool   `json:"negate"`
	Nodes    []Node `json:"nodes"`
}

type Node struct {
	Operator string          `json:"operator"`
	Negate   bool            `json:"negate"`
	CPEMatch json.RawMessage `json:"cpeMatch"`
}

type Reference struct {
	URL    string   `json:"url"`
	Source string   `json:"source"`
	Tags   []string `json:"tags"`
}

// feed timestamps come with or without fractional seconds and usually
// without a zone; they are UTC by contract.
var feedTimeLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseFeedTime decodes a feed timestamp, defaulting to now when the value
// is missing or malformed so a bad record never aborts a merge.
func ParseFeedTime(value string, now time.Time) time.Time {
	if value == "" {
		return now
	}
	trimmed := value
	if len(trimmed) > 0 && trimmed[len(trimmed)-1] == 'Z' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	for _, layout := range feedTimeLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return t
		}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC()
	}
	return now
}
