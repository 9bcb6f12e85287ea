package vulnsync

var severityRank = map[string]int{
	"CRITICAL": 4,
	"HIGH":     3,
	"MEDIUM":   2,
	"LOW":      1,
}

// HighestSeverity picks the most severe base severity from a set of CVSS
// metrics. Unrecognized values are ignored; an empty set is Unknown.
func HighestSeverity(severities []string) string {
	best := ""
	bestRank := 0
	for _, severity := range severities {
		rank, ok := severityRank[severity]
		if ok && rank > bestRank {
			best = severity
			bestRank = rank
		}
	}
	if best == "" {
		return "Unknown"
	}
	return best
}
