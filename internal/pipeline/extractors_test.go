// internal/pipeline/extractors_test.go
package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/meritkeeper/meritkeeper/internal/types"
)

// factsMap is a minimal Facts implementation for extractor tests.
type factsMap map[string]any

func (m factsMap) Get(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

func TestFactWindowExtractor(t *testing.T) {
	e := &FactWindowExtractor{}
	c := storeContext()

	t.Run("date array", func(t *testing.T) {
		facts := factsMap{"checkinDays": []any{"2025-06-03", "2025-06-01", "2025-06-02"}}
		records, err := e.Extract(context.Background(), c, facts, ExtractionParams{FactName: "checkinDays"})
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("len(records) = %d, want 3", len(records))
		}
		// Sorted by window start regardless of fact order.
		for i, want := range []int{1, 2, 3} {
			if !records[i].Start.Equal(day(want)) {
				t.Errorf("records[%d].Start = %v, want %v", i, records[i].Start, day(want))
			}
			if records[i].Key != types.WindowKey(day(want), day(want)) {
				t.Errorf("records[%d].Key = %q", i, records[i].Key)
			}
		}
	})

	t.Run("duplicates and junk skipped", func(t *testing.T) {
		facts := factsMap{"days": []any{"2025-06-01", "2025-06-01", "not a date", 42, "2025-06-02T08:30:00Z"}}
		records, err := e.Extract(context.Background(), c, facts, ExtractionParams{FactName: "days"})
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("len(records) = %d, want 2", len(records))
		}
		// RFC3339 timestamps truncate to their day.
		if !records[1].Start.Equal(day(2)) {
			t.Errorf("records[1].Start = %v, want %v", records[1].Start, day(2))
		}
	})

	t.Run("absent fact yields nothing", func(t *testing.T) {
		records, err := e.Extract(context.Background(), c, factsMap{}, ExtractionParams{FactName: "days"})
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if len(records) != 0 {
			t.Errorf("len(records) = %d, want 0", len(records))
		}
	})

	t.Run("non array fact yields nothing", func(t *testing.T) {
		records, err := e.Extract(context.Background(), c, factsMap{"days": "2025-06-01"}, ExtractionParams{FactName: "days"})
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if len(records) != 0 {
			t.Errorf("len(records) = %d, want 0", len(records))
		}
	})
}

func TestRewardPointsExtractor(t *testing.T) {
	awards := NewMemoryAwards()
	c := storeContext()
	grant := func(category string, d int, points int) {
		dt := day(d)
		awards.CreateRewardPoints(context.Background(), &types.RewardPoints{
			ID:          types.NewRecordID(),
			ContextID:   c.ID,
			Category:    category,
			PointsCount: points,
			Key:         types.WindowKey(dt, dt),
			Status:      types.PointsActive,
			RewardDate:  dt,
		})
	}
	grant("wellness", 1, 10)
	grant("wellness", 2, 10)
	grant("fitness", 3, 25)

	e := &RewardPointsExtractor{Awards: awards}
	records, err := e.Extract(context.Background(), c, nil, ExtractionParams{
		Filters: map[string]string{FilterRewardPointsCategory: "wellness"},
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].Attributes["points"] != 10 || records[0].Attributes["category"] != "wellness" {
		t.Errorf("attributes = %+v", records[0].Attributes)
	}
	if !records[0].Start.Equal(day(1)) || !records[1].Start.Equal(day(2)) {
		t.Errorf("records not ordered by window start")
	}
}

func TestRewardPointsExtractor_UnparseableKeyFallsBack(t *testing.T) {
	awards := NewMemoryAwards()
	c := storeContext()
	awards.CreateRewardPoints(context.Background(), &types.RewardPoints{
		ID:          types.NewRecordID(),
		ContextID:   c.ID,
		Category:    "wellness",
		PointsCount: 10,
		Key:         "legacy-key",
		Status:      types.PointsActive,
		RewardDate:  day(7),
	})

	e := &RewardPointsExtractor{Awards: awards}
	records, err := e.Extract(context.Background(), c, nil, ExtractionParams{
		Filters: map[string]string{FilterRewardPointsCategory: "wellness"},
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if !records[0].Start.Equal(day(7)) || !records[0].End.Equal(day(7)) {
		t.Errorf("window = %v..%v, want reward date fallback", records[0].Start, records[0].End)
	}
	if records[0].Key != types.WindowKey(day(7), day(7)) {
		t.Errorf("Key = %q, want normalized single-day key", records[0].Key)
	}
}

func TestBadgeExtractor(t *testing.T) {
	awards := NewMemoryAwards()
	early := types.Badge{ID: types.NewBadgeID(), Category: "fitness", Name: "early-bird"}
	streak := types.Badge{ID: types.NewBadgeID(), Category: "fitness", Name: "streak-3"}
	awards.AddBadgeDef(early)
	awards.AddBadgeDef(streak)
	c := storeContext()

	grant := func(b types.Badge, start, end int) {
		awards.CreateParticipantBadge(context.Background(), &types.ParticipantBadge{
			ID:           types.NewRecordID(),
			ContextID:    c.ID,
			BadgeID:      b.ID,
			AcquiredDate: day(end),
			Metadata:     types.WindowKey(day(start), day(end)),
		})
	}
	grant(early, 1, 1)
	grant(streak, 1, 3)

	e := &BadgeExtractor{Awards: awards, Badges: awards}

	t.Run("all badges", func(t *testing.T) {
		records, err := e.Extract(context.Background(), c, nil, ExtractionParams{})
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if len(records) != 2 {
			t.Errorf("len(records) = %d, want 2", len(records))
		}
	})

	t.Run("narrowed by name", func(t *testing.T) {
		records, err := e.Extract(context.Background(), c, nil, ExtractionParams{
			Filters: map[string]string{FilterBadgeCategory: "fitness", FilterBadgeName: "streak-3"},
		})
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("len(records) = %d, want 1", len(records))
		}
		if !records[0].Start.Equal(day(1)) || !records[0].End.Equal(day(3)) {
			t.Errorf("window = %v..%v, want metadata window", records[0].Start, records[0].End)
		}
		if records[0].Attributes["badgeId"] != string(streak.ID) {
			t.Errorf("badgeId attribute = %v", records[0].Attributes["badgeId"])
		}
	})
}

func TestMemoryAwards_ExpireRewardPoints(t *testing.T) {
	awards := NewMemoryAwards()
	c := storeContext()
	add := func(status types.RewardPointsStatus, expiresOn time.Time) types.RecordID {
		id := types.NewRecordID()
		awards.CreateRewardPoints(context.Background(), &types.RewardPoints{
			ID:                  id,
			ContextID:           c.ID,
			Category:            "wellness",
			PointsCount:         10,
			Key:                 string(id),
			Status:              status,
			RedemptionExpiresOn: expiresOn,
		})
		return id
	}
	stale := add(types.PointsActive, day(1))
	fresh := add(types.PointsActive, day(28))
	add(types.PointsExpired, day(1))

	n, err := awards.ExpireRewardPoints(context.Background(), day(15))
	if err != nil {
		t.Fatalf("ExpireRewardPoints() error = %v", err)
	}
	if n != 1 {
		t.Errorf("expired = %d, want 1", n)
	}
	grants, _ := awards.ListRewardPoints(context.Background(), c.ID, "wellness")
	for _, g := range grants {
		switch g.ID {
		case stale:
			if g.Status != types.PointsExpired {
				t.Errorf("stale grant status = %v, want Expired", g.Status)
			}
		case fresh:
			if g.Status != types.PointsActive {
				t.Errorf("fresh grant status = %v, want Active", g.Status)
			}
		}
	}
}
