package importer

import "time"

// assign is the shared diff-and-upsert primitive: it overwrites dst only
// when the value actually changed and records that a change happened, so
// revisited-but-unchanged records do not count as updates.
func assign[T comparable](dst *T, v T, dirty *bool) {
	if *dst != v {
		*dst = v
		*dirty = true
	}
}

// assignTime compares instants, not representations; times round-tripped
// through the store lose their monotonic reading.
func assignTime(dst *time.Time, v time.Time, dirty *bool) {
	if !dst.Equal(v) {
		*dst = v
		*dirty = true
	}
}
