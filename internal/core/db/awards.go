package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/meritkeeper/meritkeeper/internal/types"
)

/*
 * Award repositories.
 *
 * AwardStore implements the pipeline's AwardRepository and BadgeCatalog plus
 * the read-side leaderboard and the expiry sweep. Grant rows carry their
 * window key; the unique indexes on (context, category/badge, key) are the
 * hard backstop behind the store-level dedup check.
 */

// AwardStore is the SQL-backed award repository and badge catalog.
type AwardStore struct {
	q *Queries
}

// NewAwardStore returns an award store sharing the engine store's queries.
func NewAwardStore(s *Store) *AwardStore {
	return &AwardStore{q: s.q}
}

type rewardPointsRow struct {
	ID                  string    `db:"id"`
	ContextID           string    `db:"context_id"`
	Category            string    `db:"category"`
	RewardReason        string    `db:"reward_reason"`
	PointsCount         int       `db:"points_count"`
	IsBonus             bool      `db:"is_bonus"`
	BonusSchemaCode     string    `db:"bonus_schema_code"`
	BonusReason         string    `db:"bonus_reason"`
	WindowKey           string    `db:"window_key"`
	Status              string    `db:"status"`
	RewardDate          time.Time `db:"reward_date"`
	RedemptionExpiresOn time.Time `db:"redemption_expires_on"`
	CreatedAt           time.Time `db:"created_at"`
}

func (r rewardPointsRow) toRewardPoints() types.RewardPoints {
	return types.RewardPoints{
		ID:                  types.RecordID(r.ID),
		ContextID:           types.ContextID(r.ContextID),
		Category:            r.Category,
		RewardReason:        r.RewardReason,
		PointsCount:         r.PointsCount,
		IsBonus:             r.IsBonus,
		BonusSchemaCode:     r.BonusSchemaCode,
		BonusReason:         r.BonusReason,
		Key:                 r.WindowKey,
		Status:              types.RewardPointsStatus(r.Status),
		RewardDate:          r.RewardDate,
		RedemptionExpiresOn: r.RedemptionExpiresOn,
		CreatedAt:           r.CreatedAt,
	}
}

// CreateRewardPoints implements pipeline.AwardRepository.
func (a *AwardStore) CreateRewardPoints(_ context.Context, rp *types.RewardPoints) error {
	_, err := a.q.Exec("create-reward-points",
		string(rp.ID), string(rp.ContextID), rp.Category, rp.RewardReason,
		rp.PointsCount, rp.IsBonus, rp.BonusSchemaCode, rp.BonusReason,
		rp.Key, string(rp.Status), rp.RewardDate, rp.RedemptionExpiresOn, rp.CreatedAt)
	if err != nil {
		return fmt.Errorf("create reward points: %w", err)
	}
	return nil
}

// DeleteRewardPoints implements pipeline.AwardRepository.
func (a *AwardStore) DeleteRewardPoints(_ context.Context, ids []types.RecordID) (int, error) {
	n := 0
	for _, id := range ids {
		res, err := a.q.Exec("delete-reward-points", string(id))
		if err != nil {
			return n, fmt.Errorf("delete reward points: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil {
			n += int(affected)
		}
	}
	return n, nil
}

// ListRewardPoints implements pipeline.AwardRepository. Empty category lists
// every grant of the context.
func (a *AwardStore) ListRewardPoints(_ context.Context, contextID types.ContextID, category string) ([]types.RewardPoints, error) {
	var rows []rewardPointsRow
	var err error
	if category == "" {
		err = a.q.Select("list-reward-points", &rows, string(contextID))
	} else {
		err = a.q.Select("list-reward-points-by-category", &rows, string(contextID), category)
	}
	if err != nil {
		return nil, fmt.Errorf("list reward points: %w", err)
	}
	out := make([]types.RewardPoints, len(rows))
	for i, row := range rows {
		out[i] = row.toRewardPoints()
	}
	return out, nil
}

// RewardPointsKeyExists implements pipeline.AwardRepository.
func (a *AwardStore) RewardPointsKeyExists(_ context.Context, contextID types.ContextID, category, key string) (bool, error) {
	var n int
	if err := a.q.Get("reward-points-key-exists", &n, string(contextID), category, key); err != nil {
		return false, fmt.Errorf("reward points key check: %w", err)
	}
	return n > 0, nil
}

type badgeRow struct {
	ID          string `db:"id"`
	Category    string `db:"category"`
	Name        string `db:"name"`
	Description string `db:"description"`
	ImageURL    string `db:"image_url"`
}

func (r badgeRow) toBadge() *types.Badge {
	return &types.Badge{
		ID:          types.BadgeID(r.ID),
		Category:    r.Category,
		Name:        r.Name,
		Description: r.Description,
		ImageURL:    r.ImageURL,
	}
}

// CreateBadge adds a badge definition to the catalog.
func (a *AwardStore) CreateBadge(_ context.Context, b *types.Badge) error {
	_, err := a.q.Exec("create-badge",
		string(b.ID), b.Category, b.Name, b.Description, b.ImageURL, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("create badge: %w", err)
	}
	return nil
}

// GetBadge implements pipeline.BadgeCatalog.
func (a *AwardStore) GetBadge(_ context.Context, id types.BadgeID) (*types.Badge, error) {
	var row badgeRow
	if err := a.q.Get("get-badge", &row, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("badge %s: %w", id, types.ErrNotFound)
		}
		return nil, fmt.Errorf("get badge: %w", err)
	}
	return row.toBadge(), nil
}

// FindBadge implements pipeline.BadgeCatalog. Empty category matches any.
func (a *AwardStore) FindBadge(_ context.Context, category, name string) (*types.Badge, error) {
	var row badgeRow
	var err error
	if category == "" {
		err = a.q.Get("find-badge-by-name", &row, name)
	} else {
		err = a.q.Get("find-badge", &row, category, name)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("badge %q/%q: %w", category, name, types.ErrNotFound)
		}
		return nil, fmt.Errorf("find badge: %w", err)
	}
	return row.toBadge(), nil
}

type participantBadgeRow struct {
	ID           string    `db:"id"`
	ContextID    string    `db:"context_id"`
	BadgeID      string    `db:"badge_id"`
	Reason       string    `db:"reason"`
	AcquiredDate time.Time `db:"acquired_date"`
	Metadata     string    `db:"metadata"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r participantBadgeRow) toParticipantBadge() types.ParticipantBadge {
	return types.ParticipantBadge{
		ID:           types.RecordID(r.ID),
		ContextID:    types.ContextID(r.ContextID),
		BadgeID:      types.BadgeID(r.BadgeID),
		Reason:       r.Reason,
		AcquiredDate: r.AcquiredDate,
		Metadata:     r.Metadata,
		CreatedAt:    r.CreatedAt,
	}
}

// CreateParticipantBadge implements pipeline.AwardRepository.
func (a *AwardStore) CreateParticipantBadge(_ context.Context, pb *types.ParticipantBadge) error {
	_, err := a.q.Exec("create-participant-badge",
		string(pb.ID), string(pb.ContextID), string(pb.BadgeID),
		pb.Reason, pb.AcquiredDate, pb.Metadata, pb.CreatedAt)
	if err != nil {
		return fmt.Errorf("create participant badge: %w", err)
	}
	return nil
}

// DeleteParticipantBadges implements pipeline.AwardRepository.
func (a *AwardStore) DeleteParticipantBadges(_ context.Context, ids []types.RecordID) (int, error) {
	n := 0
	for _, id := range ids {
		res, err := a.q.Exec("delete-participant-badge", string(id))
		if err != nil {
			return n, fmt.Errorf("delete participant badge: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil {
			n += int(affected)
		}
	}
	return n, nil
}

// ListParticipantBadges implements pipeline.AwardRepository. Zero badge id
// lists every badge of the context.
func (a *AwardStore) ListParticipantBadges(_ context.Context, contextID types.ContextID, badgeID types.BadgeID) ([]types.ParticipantBadge, error) {
	var rows []participantBadgeRow
	var err error
	if badgeID == "" {
		err = a.q.Select("list-participant-badges", &rows, string(contextID))
	} else {
		err = a.q.Select("list-participant-badges-by-badge", &rows, string(contextID), string(badgeID))
	}
	if err != nil {
		return nil, fmt.Errorf("list participant badges: %w", err)
	}
	out := make([]types.ParticipantBadge, len(rows))
	for i, row := range rows {
		out[i] = row.toParticipantBadge()
	}
	return out, nil
}

// ParticipantBadgeKeyExists implements pipeline.AwardRepository.
func (a *AwardStore) ParticipantBadgeKeyExists(_ context.Context, contextID types.ContextID, badgeID types.BadgeID, key string) (bool, error) {
	var n int
	if err := a.q.Get("participant-badge-key-exists", &n, string(contextID), string(badgeID), key); err != nil {
		return false, fmt.Errorf("participant badge key check: %w", err)
	}
	return n > 0, nil
}

type leaderboardRow struct {
	ContextID   string `db:"context_id"`
	ReferenceID string `db:"reference_id"`
	TotalPoints int    `db:"total_points"`
}

// Leaderboard ranks contexts by their active points, optionally within one
// category. Computed at read time from grant rows; no materialized state.
func (a *AwardStore) Leaderboard(_ context.Context, category string) ([]types.LeaderboardEntry, error) {
	var rows []leaderboardRow
	var err error
	if category == "" {
		err = a.q.Select("leaderboard", &rows)
	} else {
		err = a.q.Select("leaderboard-by-category", &rows, category)
	}
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	out := make([]types.LeaderboardEntry, len(rows))
	for i, row := range rows {
		out[i] = types.LeaderboardEntry{
			ContextID:   types.ContextID(row.ContextID),
			ReferenceID: row.ReferenceID,
			Category:    category,
			TotalPoints: row.TotalPoints,
			Rank:        i + 1,
		}
	}
	return out, nil
}

// ExpireRewardPoints marks active grants past their redemption window as
// expired, returning how many rows changed. Used by the expiry sweep.
func (a *AwardStore) ExpireRewardPoints(_ context.Context, asOf time.Time) (int, error) {
	res, err := a.q.Exec("expire-reward-points", asOf)
	if err != nil {
		return 0, fmt.Errorf("expire reward points: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}
