package vulnsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHighestSeverity(t *testing.T) {
	tests := []struct {
		name       string
		severities []string
		expected   string
	}{
		{"critical wins", []string{"LOW", "CRITICAL", "HIGH"}, "CRITICAL"},
		{"high over medium", []string{"MEDIUM", "HIGH"}, "HIGH"},
		{"single value", []string{"LOW"}, "LOW"},
		{"empty input", nil, "Unknown"},
		{"unranked values only", []string{"", "NONE"}, "Unknown"},
		{"unranked mixed with ranked", []string{"NONE", "MEDIUM"}, "MEDIUM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HighestSeverity(tt.severities))
		})
	}
}

func TestAnnouncementCVEIDs(t *testing.T) {
	announcement := Announcement{
		Content: "Fixed CVE-2024-1234 and CVE-2023-987654; see also CVE-2024-1234.",
	}
	assert.Equal(t,
		[]string{"CVE-2024-1234", "CVE-2023-987654", "CVE-2024-1234"},
		announcement.CVEIDs(),
		"extraction keeps duplicates; callers dedup at persistence time")
}

func TestAnnouncementCVEIDsIgnoresShortSuffixes(t *testing.T) {
	announcement := Announcement{Content: "CVE-2024-12 is not a valid identifier"}
	assert.Empty(t, announcement.CVEIDs())
}

func TestAnnouncementAffectedComponents(t *testing.T) {
	announcement := Announcement{
		Content: "Component: net/ipv6\n" +
			"  Subsystem: drm/amdgpu\n" +
			"Component:\n" +
			"unrelated line\n",
	}
	assert.Equal(t, []string{"net/ipv6", "drm/amdgpu"}, announcement.AffectedComponents())
}

func TestAnnouncementSeverity(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{"critical keyword", "This is a Critical issue in the scheduler", "CRITICAL"},
		{"high keyword", "severity is high for remote attackers", "HIGH"},
		{"no keyword", "a plain description", "UNKNOWN"},
		{"critical beats low regardless of position", "low impact but critical path", "CRITICAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			announcement := Announcement{Content: tt.content}
			assert.Equal(t, tt.expected, announcement.Severity())
		})
	}
}

func TestPlatformEntryNameParts(t *testing.T) {
	entry := PlatformEntry{Name: "cpe:2.3:a:gnu:glibc:2.38:*:*:*:*:*:*:*"}
	assert.Equal(t, "gnu", entry.Vendor())
	assert.Equal(t, "glibc", entry.Product())
	assert.Equal(t, "2.38", entry.Version())

	malformed := PlatformEntry{Name: "cpe:2.3"}
	assert.Equal(t, "", malformed.Vendor())
	assert.Equal(t, "", malformed.Product())
	assert.Equal(t, "", malformed.Version())
}
