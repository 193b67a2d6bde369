// Package freshness buckets a posting's age at ingestion time.
package freshness

import (
	"time"

	"github.com/amishk599/firstrung/internal/model"
)

const (
	ultraFreshAge = 48 * time.Hour
	freshAge      = 7 * 24 * time.Hour
	recentAge     = 30 * 24 * time.Hour
	staleAge      = 90 * 24 * time.Hour
)

// Classify returns the tier for a posting first published at postedAt, as
// observed at now. Timestamps in the future count as ultra fresh.
func Classify(postedAt, now time.Time) model.FreshnessTier {
	age := now.Sub(postedAt)
	switch {
	case age < ultraFreshAge:
		return model.TierUltraFresh
	case age < freshAge:
		return model.TierFresh
	case age < recentAge:
		return model.TierRecent
	case age < staleAge:
		return model.TierStale
	default:
		return model.TierOld
	}
}

// Resolve picks the best-known origination time. When the source gave none,
// ingestion time is used and known is false.
func Resolve(postedAt *time.Time, now time.Time) (t time.Time, known bool) {
	if postedAt == nil || postedAt.IsZero() {
		return now, false
	}
	return *postedAt, true
}

// Tag returns the freshness knowledge tag.
func Tag(known bool) string {
	if known {
		return "freshness:known"
	}
	return "freshness:unknown"
}
