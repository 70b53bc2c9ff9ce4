// internal/pipeline/stores.go
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/meritkeeper/meritkeeper/internal/types"
)

/*
 * Award stores.
 *
 * Stores are the terminal pipeline stage: one award row per input record,
 * tagged with the record's window key. Idempotency contract: when a grant
 * with the same (context, category/badge, key) already exists the record is
 * skipped, so a retried cycle or a duplicate window can never double-award.
 * Dedup-aware extraction upstream remains the recommended first line; the
 * key check here is the guarantee.
 *
 * RemoveData bulk-deletes by extracted record id, used to retract grants
 * when upstream facts are corrected.
 */

// RewardPointsKeys is the decoded storage-key set of a points grant.
type RewardPointsKeys struct {
	RewardPointsCategory   string
	Points                 int
	Reason                 string
	IsBonus                bool
	BonusSchemaCode        string
	RedemptionExpiryInDays int
}

// BadgeKeys is the decoded storage-key set of a badge grant.
type BadgeKeys struct {
	BadgeID       string `mapstructure:"BadgeId"`
	BadgeCategory string
	BadgeName     string
	Reason        string
}

// RewardPointsStore persists points grants.
type RewardPointsStore struct {
	Awards            AwardRepository
	DefaultExpiryDays int

	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time
}

// StoreData creates one grant per record, deriving RedemptionExpiresOn from
// the expiry-day offset and tagging bonus fields from the storage keys.
// Records whose window key already has a grant are skipped.
func (s *RewardPointsStore) StoreData(ctx context.Context, c *types.Context, records []types.ExtractedRecord, p StorageParams, out OutputParams) (types.ProcessorResult, error) {
	var keys RewardPointsKeys
	if err := mapstructure.Decode(p.Keys, &keys); err != nil {
		return failure(out), fmt.Errorf("reward points storage keys: %w: %w", err, types.ErrValidation)
	}
	if keys.RewardPointsCategory == "" {
		return failure(out), fmt.Errorf("reward points category required: %w", types.ErrValidation)
	}
	if keys.Points == 0 {
		return failure(out), fmt.Errorf("reward points value required: %w", types.ErrValidation)
	}
	expiryDays := keys.RedemptionExpiryInDays
	if expiryDays <= 0 {
		expiryDays = s.DefaultExpiryDays
	}
	if expiryDays <= 0 {
		expiryDays = types.DefaultRedemptionExpiryDays
	}
	now := s.now()

	created := make([]types.RewardPoints, 0, len(records))
	for _, r := range records {
		exists, err := s.Awards.RewardPointsKeyExists(ctx, c.ID, keys.RewardPointsCategory, r.Key)
		if err != nil {
			return failure(out), fmt.Errorf("reward points dedup check: %w: %w", err, types.ErrPipeline)
		}
		if exists {
			continue
		}
		row := types.RewardPoints{
			ID:                  types.NewRecordID(),
			ContextID:           c.ID,
			Category:            keys.RewardPointsCategory,
			RewardReason:        keys.Reason,
			PointsCount:         keys.Points,
			IsBonus:             keys.IsBonus,
			BonusSchemaCode:     keys.BonusSchemaCode,
			Key:                 r.Key,
			Status:              types.PointsActive,
			RewardDate:          r.End,
			RedemptionExpiresOn: now.AddDate(0, 0, expiryDays),
			CreatedAt:           now,
		}
		if keys.IsBonus {
			row.BonusReason = keys.Reason
		}
		if err := s.Awards.CreateRewardPoints(ctx, &row); err != nil {
			return failure(out), fmt.Errorf("store reward points: %w: %w", err, types.ErrPipeline)
		}
		created = append(created, row)
	}
	return types.ProcessorResult{Success: true, Tag: out.Tag, Data: created}, nil
}

// RemoveData bulk-deletes grants by extracted record id.
func (s *RewardPointsStore) RemoveData(ctx context.Context, _ *types.Context, records []types.ExtractedRecord, _ StorageParams, out OutputParams) (types.ProcessorResult, error) {
	ids := recordIDs(records)
	if len(ids) == 0 {
		return types.ProcessorResult{Success: true, Tag: out.Tag, Data: 0}, nil
	}
	n, err := s.Awards.DeleteRewardPoints(ctx, ids)
	if err != nil {
		return failure(out), fmt.Errorf("remove reward points: %w: %w", err, types.ErrPipeline)
	}
	return types.ProcessorResult{Success: true, Tag: out.Tag, Data: n}, nil
}

func (s *RewardPointsStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// BadgeStore persists badge grants.
type BadgeStore struct {
	Awards AwardRepository
	Badges BadgeCatalog

	Now func() time.Time
}

// StoreData creates one participant badge per record with Metadata set to
// the record's window key. Records whose key already has a grant for the
// same badge are skipped.
func (s *BadgeStore) StoreData(ctx context.Context, c *types.Context, records []types.ExtractedRecord, p StorageParams, out OutputParams) (types.ProcessorResult, error) {
	var keys BadgeKeys
	if err := mapstructure.Decode(p.Keys, &keys); err != nil {
		return failure(out), fmt.Errorf("badge storage keys: %w: %w", err, types.ErrValidation)
	}
	badge, err := s.resolveBadge(ctx, keys)
	if err != nil {
		return failure(out), err
	}
	reason := keys.Reason
	if reason == "" {
		reason = badge.Description
	}
	now := s.now()

	created := make([]types.ParticipantBadge, 0, len(records))
	for _, r := range records {
		exists, err := s.Awards.ParticipantBadgeKeyExists(ctx, c.ID, badge.ID, r.Key)
		if err != nil {
			return failure(out), fmt.Errorf("badge dedup check: %w: %w", err, types.ErrPipeline)
		}
		if exists {
			continue
		}
		row := types.ParticipantBadge{
			ID:           types.NewRecordID(),
			ContextID:    c.ID,
			BadgeID:      badge.ID,
			Reason:       reason,
			AcquiredDate: r.End,
			Metadata:     r.Key,
			CreatedAt:    now,
		}
		if err := s.Awards.CreateParticipantBadge(ctx, &row); err != nil {
			return failure(out), fmt.Errorf("store badge: %w: %w", err, types.ErrPipeline)
		}
		created = append(created, row)
	}
	return types.ProcessorResult{Success: true, Tag: out.Tag, Data: created}, nil
}

// RemoveData bulk-deletes participant badges by extracted record id.
func (s *BadgeStore) RemoveData(ctx context.Context, _ *types.Context, records []types.ExtractedRecord, _ StorageParams, out OutputParams) (types.ProcessorResult, error) {
	ids := recordIDs(records)
	if len(ids) == 0 {
		return types.ProcessorResult{Success: true, Tag: out.Tag, Data: 0}, nil
	}
	n, err := s.Awards.DeleteParticipantBadges(ctx, ids)
	if err != nil {
		return failure(out), fmt.Errorf("remove badges: %w: %w", err, types.ErrPipeline)
	}
	return types.ProcessorResult{Success: true, Tag: out.Tag, Data: n}, nil
}

func (s *BadgeStore) resolveBadge(ctx context.Context, keys BadgeKeys) (*types.Badge, error) {
	if keys.BadgeID != "" {
		return s.Badges.GetBadge(ctx, types.BadgeID(keys.BadgeID))
	}
	if keys.BadgeName != "" {
		return s.Badges.FindBadge(ctx, keys.BadgeCategory, keys.BadgeName)
	}
	return nil, fmt.Errorf("badge storage keys need BadgeId or BadgeName: %w", types.ErrValidation)
}

func (s *BadgeStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func recordIDs(records []types.ExtractedRecord) []types.RecordID {
	var ids []types.RecordID
	for _, r := range records {
		if r.ID != "" {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func failure(out OutputParams) types.ProcessorResult {
	return types.ProcessorResult{Success: false, Tag: out.Tag}
}
