// internal/pipeline/stores_test.go
package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meritkeeper/meritkeeper/internal/types"
)

func storeContext() *types.Context {
	return &types.Context{
		ID:          types.NewContextID(),
		Type:        types.ContextPerson,
		ReferenceID: "participant-1",
	}
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func TestRewardPointsStore_StoreData(t *testing.T) {
	awards := NewMemoryAwards()
	store := &RewardPointsStore{Awards: awards, DefaultExpiryDays: 180, Now: fixedNow}
	c := storeContext()

	keys := map[string]any{
		"RewardPointsCategory": "wellness",
		"Points":               10,
		"Reason":               "daily check-in",
	}
	result, err := store.StoreData(context.Background(), c, dayRecords(1), StorageParams{Keys: keys}, OutputParams{Tag: "grant"})
	if err != nil {
		t.Fatalf("StoreData() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("Success = false")
	}

	grants, _ := awards.ListRewardPoints(context.Background(), c.ID, "wellness")
	if len(grants) != 1 {
		t.Fatalf("len(grants) = %d, want 1", len(grants))
	}
	g := grants[0]
	if g.PointsCount != 10 || g.RewardReason != "daily check-in" {
		t.Errorf("grant = %+v, want 10 points with reason", g)
	}
	if !g.RewardDate.Equal(day(1)) {
		t.Errorf("RewardDate = %v, want %v", g.RewardDate, day(1))
	}
	if want := fixedNow().AddDate(0, 0, 180); !g.RedemptionExpiresOn.Equal(want) {
		t.Errorf("RedemptionExpiresOn = %v, want %v", g.RedemptionExpiresOn, want)
	}
}

func TestRewardPointsStore_ExpiryFallback(t *testing.T) {
	tests := []struct {
		name        string
		keyDays     any
		defaultDays int
		wantDays    int
	}{
		{"storage key wins", 30, 90, 30},
		{"store default next", nil, 90, 90},
		{"global default last", nil, 0, types.DefaultRedemptionExpiryDays},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			awards := NewMemoryAwards()
			store := &RewardPointsStore{Awards: awards, DefaultExpiryDays: tt.defaultDays, Now: fixedNow}
			c := storeContext()
			keys := map[string]any{"RewardPointsCategory": "wellness", "Points": 5}
			if tt.keyDays != nil {
				keys["RedemptionExpiryInDays"] = tt.keyDays
			}
			if _, err := store.StoreData(context.Background(), c, dayRecords(1), StorageParams{Keys: keys}, OutputParams{}); err != nil {
				t.Fatalf("StoreData() error = %v", err)
			}
			grants, _ := awards.ListRewardPoints(context.Background(), c.ID, "wellness")
			want := fixedNow().AddDate(0, 0, tt.wantDays)
			if !grants[0].RedemptionExpiresOn.Equal(want) {
				t.Errorf("RedemptionExpiresOn = %v, want %v", grants[0].RedemptionExpiresOn, want)
			}
		})
	}
}

func TestRewardPointsStore_KeyDedup(t *testing.T) {
	awards := NewMemoryAwards()
	store := &RewardPointsStore{Awards: awards, DefaultExpiryDays: 180, Now: fixedNow}
	c := storeContext()
	keys := map[string]any{"RewardPointsCategory": "wellness", "Points": 10}

	for i := 0; i < 3; i++ {
		if _, err := store.StoreData(context.Background(), c, dayRecords(1, 2), StorageParams{Keys: keys}, OutputParams{}); err != nil {
			t.Fatalf("StoreData() round %d error = %v", i, err)
		}
	}
	grants, _ := awards.ListRewardPoints(context.Background(), c.ID, "wellness")
	if len(grants) != 2 {
		t.Errorf("len(grants) = %d, want 2 despite repeated stores", len(grants))
	}

	// The same window under a different category is a distinct grant.
	other := map[string]any{"RewardPointsCategory": "fitness", "Points": 10}
	if _, err := store.StoreData(context.Background(), c, dayRecords(1), StorageParams{Keys: other}, OutputParams{}); err != nil {
		t.Fatalf("StoreData() error = %v", err)
	}
	grants, _ = awards.ListRewardPoints(context.Background(), c.ID, "")
	if len(grants) != 3 {
		t.Errorf("len(grants) across categories = %d, want 3", len(grants))
	}
}

func TestRewardPointsStore_InvalidKeys(t *testing.T) {
	store := &RewardPointsStore{Awards: NewMemoryAwards(), DefaultExpiryDays: 180}
	c := storeContext()

	tests := []struct {
		name string
		keys map[string]any
	}{
		{"missing category", map[string]any{"Points": 10}},
		{"missing points", map[string]any{"RewardPointsCategory": "wellness"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.StoreData(context.Background(), c, dayRecords(1), StorageParams{Keys: tt.keys}, OutputParams{})
			if !errors.Is(err, types.ErrValidation) {
				t.Errorf("StoreData() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestBadgeStore_StoreData(t *testing.T) {
	awards := NewMemoryAwards()
	badge := types.Badge{ID: types.NewBadgeID(), Category: "fitness", Name: "streak-3", Description: "three in a row"}
	awards.AddBadgeDef(badge)
	store := &BadgeStore{Awards: awards, Badges: awards, Now: fixedNow}
	c := storeContext()

	t.Run("resolve by name", func(t *testing.T) {
		keys := map[string]any{"BadgeCategory": "fitness", "BadgeName": "streak-3"}
		result, err := store.StoreData(context.Background(), c, dayRecords(1), StorageParams{Keys: keys}, OutputParams{})
		if err != nil {
			t.Fatalf("StoreData() error = %v", err)
		}
		if !result.Success {
			t.Fatalf("Success = false")
		}
		badges, _ := awards.ListParticipantBadges(context.Background(), c.ID, badge.ID)
		if len(badges) != 1 {
			t.Fatalf("len(badges) = %d, want 1", len(badges))
		}
		// Reason falls back to the badge description.
		if badges[0].Reason != "three in a row" {
			t.Errorf("Reason = %q, want badge description", badges[0].Reason)
		}
	})

	t.Run("same key dedups", func(t *testing.T) {
		keys := map[string]any{"BadgeId": string(badge.ID)}
		if _, err := store.StoreData(context.Background(), c, dayRecords(1), StorageParams{Keys: keys}, OutputParams{}); err != nil {
			t.Fatalf("StoreData() error = %v", err)
		}
		badges, _ := awards.ListParticipantBadges(context.Background(), c.ID, badge.ID)
		if len(badges) != 1 {
			t.Errorf("len(badges) = %d, want 1 after duplicate window", len(badges))
		}
	})

	t.Run("missing badge reference", func(t *testing.T) {
		_, err := store.StoreData(context.Background(), c, dayRecords(2), StorageParams{Keys: map[string]any{}}, OutputParams{})
		if !errors.Is(err, types.ErrValidation) {
			t.Errorf("StoreData() error = %v, want ErrValidation", err)
		}
	})

	t.Run("unknown badge name", func(t *testing.T) {
		keys := map[string]any{"BadgeName": "never-defined"}
		_, err := store.StoreData(context.Background(), c, dayRecords(2), StorageParams{Keys: keys}, OutputParams{})
		if !errors.Is(err, types.ErrNotFound) {
			t.Errorf("StoreData() error = %v, want ErrNotFound", err)
		}
	})
}

func TestStores_RemoveData(t *testing.T) {
	awards := NewMemoryAwards()
	badge := types.Badge{ID: types.NewBadgeID(), Category: "fitness", Name: "streak-3"}
	awards.AddBadgeDef(badge)
	c := storeContext()

	pointsStore := &RewardPointsStore{Awards: awards, DefaultExpiryDays: 180, Now: fixedNow}
	keys := map[string]any{"RewardPointsCategory": "wellness", "Points": 10}
	if _, err := pointsStore.StoreData(context.Background(), c, dayRecords(1, 2), StorageParams{Keys: keys}, OutputParams{}); err != nil {
		t.Fatalf("StoreData() error = %v", err)
	}
	grants, _ := awards.ListRewardPoints(context.Background(), c.ID, "wellness")

	records := []types.ExtractedRecord{{ID: grants[0].ID}}
	result, err := pointsStore.RemoveData(context.Background(), c, records, StorageParams{}, OutputParams{})
	if err != nil {
		t.Fatalf("RemoveData() error = %v", err)
	}
	if n := result.Data.(int); n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	grants, _ = awards.ListRewardPoints(context.Background(), c.ID, "wellness")
	if len(grants) != 1 {
		t.Errorf("len(grants) = %d, want 1 after removal", len(grants))
	}

	// Records without ids are a no-op, not an error.
	result, err = pointsStore.RemoveData(context.Background(), c, dayRecords(5), StorageParams{}, OutputParams{})
	if err != nil {
		t.Fatalf("RemoveData() error = %v", err)
	}
	if n := result.Data.(int); n != 0 {
		t.Errorf("deleted = %d, want 0 for id-less records", n)
	}
}
