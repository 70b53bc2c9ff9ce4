// internal/pipeline/memory.go
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/meritkeeper/meritkeeper/internal/types"
)

/*
 * In-memory award repository and badge catalog.
 *
 * Backs the memory:// database mode and the package tests. Safe for
 * concurrent use; every method copies rows out so callers never share
 * mutable state with the repository.
 */

// MemoryAwards is an in-memory AwardRepository and BadgeCatalog.
type MemoryAwards struct {
	mu     sync.RWMutex
	points map[types.RecordID]types.RewardPoints
	badges map[types.RecordID]types.ParticipantBadge
	defs   map[types.BadgeID]types.Badge
}

// NewMemoryAwards creates an empty repository.
func NewMemoryAwards() *MemoryAwards {
	return &MemoryAwards{
		points: make(map[types.RecordID]types.RewardPoints),
		badges: make(map[types.RecordID]types.ParticipantBadge),
		defs:   make(map[types.BadgeID]types.Badge),
	}
}

// AddBadgeDef registers a badge definition in the catalog.
func (m *MemoryAwards) AddBadgeDef(b types.Badge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[b.ID] = b
}

// CreateBadge registers a badge definition. Matches the SQL store's
// signature so callers can swap backends.
func (m *MemoryAwards) CreateBadge(_ context.Context, b *types.Badge) error {
	m.AddBadgeDef(*b)
	return nil
}

// CreateRewardPoints implements AwardRepository.
func (m *MemoryAwards) CreateRewardPoints(_ context.Context, rp *types.RewardPoints) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[rp.ID] = *rp
	return nil
}

// DeleteRewardPoints implements AwardRepository.
func (m *MemoryAwards) DeleteRewardPoints(_ context.Context, ids []types.RecordID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := m.points[id]; ok {
			delete(m.points, id)
			n++
		}
	}
	return n, nil
}

// ListRewardPoints implements AwardRepository. Empty category lists all.
func (m *MemoryAwards) ListRewardPoints(_ context.Context, contextID types.ContextID, category string) ([]types.RewardPoints, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.RewardPoints
	for _, rp := range m.points {
		if rp.ContextID != contextID {
			continue
		}
		if category != "" && rp.Category != category {
			continue
		}
		out = append(out, rp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// RewardPointsKeyExists implements AwardRepository.
func (m *MemoryAwards) RewardPointsKeyExists(_ context.Context, contextID types.ContextID, category, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rp := range m.points {
		if rp.ContextID == contextID && rp.Category == category && rp.Key == key {
			return true, nil
		}
	}
	return false, nil
}

// CreateParticipantBadge implements AwardRepository.
func (m *MemoryAwards) CreateParticipantBadge(_ context.Context, pb *types.ParticipantBadge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.badges[pb.ID] = *pb
	return nil
}

// DeleteParticipantBadges implements AwardRepository.
func (m *MemoryAwards) DeleteParticipantBadges(_ context.Context, ids []types.RecordID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := m.badges[id]; ok {
			delete(m.badges, id)
			n++
		}
	}
	return n, nil
}

// ListParticipantBadges implements AwardRepository. Zero badge id lists all.
func (m *MemoryAwards) ListParticipantBadges(_ context.Context, contextID types.ContextID, badgeID types.BadgeID) ([]types.ParticipantBadge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.ParticipantBadge
	for _, pb := range m.badges {
		if pb.ContextID != contextID {
			continue
		}
		if badgeID != "" && pb.BadgeID != badgeID {
			continue
		}
		out = append(out, pb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ParticipantBadgeKeyExists implements AwardRepository.
func (m *MemoryAwards) ParticipantBadgeKeyExists(_ context.Context, contextID types.ContextID, badgeID types.BadgeID, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, pb := range m.badges {
		if pb.ContextID == contextID && pb.BadgeID == badgeID && pb.Metadata == key {
			return true, nil
		}
	}
	return false, nil
}

// GetBadge implements BadgeCatalog.
func (m *MemoryAwards) GetBadge(_ context.Context, id types.BadgeID) (*types.Badge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.defs[id]
	if !ok {
		return nil, fmt.Errorf("badge %s: %w", id, types.ErrNotFound)
	}
	return &b, nil
}

// FindBadge implements BadgeCatalog. Empty category matches any.
func (m *MemoryAwards) FindBadge(_ context.Context, category, name string) (*types.Badge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.defs {
		if b.Name == name && (category == "" || b.Category == category) {
			return &b, nil
		}
	}
	return nil, fmt.Errorf("badge %q/%q: %w", category, name, types.ErrNotFound)
}

// Leaderboard computes the read-side projection over active grants: total
// points per (context, category), ranked descending. Category filter
// optional.
func (m *MemoryAwards) Leaderboard(_ context.Context, category string) ([]types.LeaderboardEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	totals := make(map[types.ContextID]int)
	for _, rp := range m.points {
		if rp.Status != types.PointsActive {
			continue
		}
		if category != "" && rp.Category != category {
			continue
		}
		totals[rp.ContextID] += rp.PointsCount
	}
	out := make([]types.LeaderboardEntry, 0, len(totals))
	for id, total := range totals {
		out = append(out, types.LeaderboardEntry{ContextID: id, Category: category, TotalPoints: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		return out[i].ContextID < out[j].ContextID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

// ExpireRewardPoints marks active grants past their redemption window as
// expired, returning how many rows changed. Used by the expiry sweep.
func (m *MemoryAwards) ExpireRewardPoints(_ context.Context, asOf time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, rp := range m.points {
		if rp.Status == types.PointsActive && rp.RedemptionExpiresOn.Before(asOf) {
			rp.Status = types.PointsExpired
			m.points[id] = rp
			n++
		}
	}
	return n, nil
}
