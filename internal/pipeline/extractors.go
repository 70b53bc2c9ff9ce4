// internal/pipeline/extractors.go
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/meritkeeper/meritkeeper/internal/types"
)

/*
 * Record extractors.
 *
 * Extractors pull raw award or fact records relevant to a condition or
 * action and normalize them to {ID, Start, End, Key} tuples, where Key
 * encodes the covered date window. The key is the dedup unit downstream:
 * dedup-aware extraction plus key-checked stores is what makes award retries
 * safe.
 */

// RecordFactWindow keys the extractor that reads date arrays straight from
// the fact bag instead of a repository.
const RecordFactWindow = "FactWindow"

// Filter keys understood by the built-in extractors.
const (
	FilterRewardPointsCategory = "RewardPointsCategory"
	FilterBadgeID              = "BadgeId"
	FilterBadgeCategory        = "BadgeCategory"
	FilterBadgeName            = "BadgeName"
)

// RewardPointsExtractor pulls a context's points grants for a category.
type RewardPointsExtractor struct {
	Awards AwardRepository
}

// Extract lists grants filtered by RewardPointsCategory and normalizes each
// row's window key. Grants whose key does not parse fall back to the reward
// date as a single-day window.
func (e *RewardPointsExtractor) Extract(ctx context.Context, c *types.Context, _ Facts, p ExtractionParams) ([]types.ExtractedRecord, error) {
	category := p.Filters[FilterRewardPointsCategory]
	rows, err := e.Awards.ListRewardPoints(ctx, c.ID, category)
	if err != nil {
		return nil, fmt.Errorf("extract reward points: %w: %w", err, types.ErrPipeline)
	}
	records := make([]types.ExtractedRecord, 0, len(rows))
	for _, row := range rows {
		start, end, ok := types.ParseWindowKey(row.Key)
		if !ok {
			start, end = row.RewardDate, row.RewardDate
		}
		records = append(records, types.ExtractedRecord{
			ID:    row.ID,
			Start: start,
			End:   end,
			Key:   types.WindowKey(start, end),
			Attributes: map[string]any{
				"points":   row.PointsCount,
				"category": row.Category,
				"isBonus":  row.IsBonus,
				"status":   string(row.Status),
			},
		})
	}
	sortRecords(records)
	return records, nil
}

// BadgeExtractor pulls a context's granted badges, optionally narrowed to
// one badge definition.
type BadgeExtractor struct {
	Awards AwardRepository
	Badges BadgeCatalog
}

// Extract lists participant badges. A BadgeId filter, or a BadgeCategory +
// BadgeName pair, narrows the listing to one badge definition.
func (e *BadgeExtractor) Extract(ctx context.Context, c *types.Context, _ Facts, p ExtractionParams) ([]types.ExtractedRecord, error) {
	var badgeID types.BadgeID
	if id := p.Filters[FilterBadgeID]; id != "" {
		badgeID = types.BadgeID(id)
	} else if name := p.Filters[FilterBadgeName]; name != "" {
		badge, err := e.Badges.FindBadge(ctx, p.Filters[FilterBadgeCategory], name)
		if err != nil {
			return nil, fmt.Errorf("extract badges: %w", err)
		}
		badgeID = badge.ID
	}
	rows, err := e.Awards.ListParticipantBadges(ctx, c.ID, badgeID)
	if err != nil {
		return nil, fmt.Errorf("extract badges: %w: %w", err, types.ErrPipeline)
	}
	records := make([]types.ExtractedRecord, 0, len(rows))
	for _, row := range rows {
		start, end, ok := types.ParseWindowKey(row.Metadata)
		if !ok {
			start, end = row.AcquiredDate, row.AcquiredDate
		}
		records = append(records, types.ExtractedRecord{
			ID:    row.ID,
			Start: start,
			End:   end,
			Key:   types.WindowKey(start, end),
			Attributes: map[string]any{
				"badgeId": string(row.BadgeID),
				"reason":  row.Reason,
			},
		})
	}
	sortRecords(records)
	return records, nil
}

// FactWindowExtractor reads an array fact of dates and yields one single-day
// record per distinct date. This is how payload-carried fact series (logged
// days, completed sessions) enter the continuity computation.
type FactWindowExtractor struct{}

// Extract parses each array element as a date ("2006-01-02" or RFC3339).
// Unparseable elements are skipped rather than failing the cycle; an absent
// fact yields an empty record set.
func (e *FactWindowExtractor) Extract(_ context.Context, _ *types.Context, facts Facts, p ExtractionParams) ([]types.ExtractedRecord, error) {
	if facts == nil || p.FactName == "" {
		return nil, nil
	}
	raw, ok := facts.Get(p.FactName)
	if !ok {
		return nil, nil
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, nil
	}
	seen := make(map[string]bool, len(arr))
	var records []types.ExtractedRecord
	for _, elem := range arr {
		day, ok := parseDay(elem)
		if !ok {
			continue
		}
		key := types.WindowKey(day, day)
		if seen[key] {
			continue
		}
		seen[key] = true
		records = append(records, types.ExtractedRecord{Start: day, End: day, Key: key})
	}
	sortRecords(records)
	return records, nil
}

func parseDay(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Truncate(24 * time.Hour), true
		}
	}
	return time.Time{}, false
}

// sortRecords orders by window start for deterministic downstream
// processing.
func sortRecords(records []types.ExtractedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Start.Before(records[j].Start)
	})
}
