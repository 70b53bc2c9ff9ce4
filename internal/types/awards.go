// internal/types/awards.go
package types

import (
	"fmt"
	"strings"
	"time"
)

/*
 * Award records and pipeline result shapes.
 *
 * RewardPoints and ParticipantBadge rows are the terminal effect of
 * AwardPoints/AwardBadge actions. Each carries a window Key derived from the
 * date range that produced it; the key is the dedup unit for retries and for
 * dedup-aware extraction.
 */

// Badge is an authored badge definition.
type Badge struct {
	ID          BadgeID
	Category    string
	Name        string
	Description string
	ImageURL    string
}

// ParticipantBadge is a badge granted to a context.
type ParticipantBadge struct {
	ID           RecordID
	ContextID    ContextID
	BadgeID      BadgeID
	Reason       string
	AcquiredDate time.Time

	// Metadata holds the window key of the computation that granted the
	// badge; used by dedup queries, not enforced as a DB constraint.
	Metadata string

	CreatedAt time.Time
}

// RewardPoints is a points grant for a context in a category.
type RewardPoints struct {
	ID           RecordID
	ContextID    ContextID
	Category     string
	RewardReason string
	PointsCount  int

	IsBonus         bool
	BonusSchemaCode string
	BonusReason     string

	// Key is the window key of the computation that granted the points.
	Key string

	Status              RewardPointsStatus
	RewardDate          time.Time
	RedemptionExpiresOn time.Time
	CreatedAt           time.Time
}

// ExtractedRecord is the normalized shape extractors hand to processors and
// stores. Key encodes the covered date window and is the dedup unit
// downstream.
type ExtractedRecord struct {
	ID    RecordID
	Start time.Time
	End   time.Time
	Key   string

	// Attributes carries extractor-specific fields for all-pass predicates.
	Attributes map[string]any
}

// WindowKey derives the canonical dedup key for a date window.
// Dates only; the time of day within the window is irrelevant for dedup.
func WindowKey(start, end time.Time) string {
	return fmt.Sprintf("(%s)-(%s)", start.Format("2006-01-02"), end.Format("2006-01-02"))
}

// ParseWindowKey recovers the date window from a canonical key. ok=false for
// keys not produced by WindowKey.
func ParseWindowKey(key string) (start, end time.Time, ok bool) {
	parts := strings.SplitN(key, ")-(", 2)
	if len(parts) != 2 || !strings.HasPrefix(parts[0], "(") || !strings.HasSuffix(parts[1], ")") {
		return time.Time{}, time.Time{}, false
	}
	start, err := time.Parse("2006-01-02", strings.TrimPrefix(parts[0], "("))
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err = time.Parse("2006-01-02", strings.TrimSuffix(parts[1], ")"))
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// ProcessorResult is the outcome of one pipeline stage, surfaced up to the
// action executor and, where applicable, to API callers.
type ProcessorResult struct {
	Success bool
	Tag     string
	Data    any
}

// LeaderboardEntry is one row of the read-side points projection, grouped by
// the same context/category keys used at grant time.
type LeaderboardEntry struct {
	ContextID   ContextID
	ReferenceID string
	Category    string
	TotalPoints int
	Rank        int
}
