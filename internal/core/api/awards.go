package api

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/meritkeeper/meritkeeper/internal/types"
)

type pointsResponse struct {
	ID                  string    `json:"id"`
	Category            string    `json:"category"`
	Points              int       `json:"points"`
	Reason              string    `json:"reason,omitempty"`
	IsBonus             bool      `json:"isBonus,omitempty"`
	Key                 string    `json:"key"`
	Status              string    `json:"status"`
	RewardDate          time.Time `json:"rewardDate"`
	RedemptionExpiresOn time.Time `json:"redemptionExpiresOn"`
}

func (s *EngineAPIService) handleListPoints(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	c, err := s.contexts.GetContextByReference(r.Context(), ps.ByName("ref"))
	if err != nil {
		writeError(w, err)
		return
	}
	grants, err := s.awards.ListRewardPoints(r.Context(), c.ID, r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]pointsResponse, len(grants))
	for i, g := range grants {
		out[i] = pointsResponse{
			ID:                  string(g.ID),
			Category:            g.Category,
			Points:              g.PointsCount,
			Reason:              g.RewardReason,
			IsBonus:             g.IsBonus,
			Key:                 g.Key,
			Status:              string(g.Status),
			RewardDate:          g.RewardDate,
			RedemptionExpiresOn: g.RedemptionExpiresOn,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type badgeGrantResponse struct {
	ID           string    `json:"id"`
	BadgeID      string    `json:"badgeId"`
	Reason       string    `json:"reason,omitempty"`
	AcquiredDate time.Time `json:"acquiredDate"`
	Metadata     string    `json:"metadata,omitempty"`
}

func (s *EngineAPIService) handleListBadges(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	c, err := s.contexts.GetContextByReference(r.Context(), ps.ByName("ref"))
	if err != nil {
		writeError(w, err)
		return
	}
	grants, err := s.awards.ListParticipantBadges(r.Context(), c.ID, types.BadgeID(r.URL.Query().Get("badgeId")))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]badgeGrantResponse, len(grants))
	for i, g := range grants {
		out[i] = badgeGrantResponse{
			ID:           string(g.ID),
			BadgeID:      string(g.BadgeID),
			Reason:       g.Reason,
			AcquiredDate: g.AcquiredDate,
			Metadata:     g.Metadata,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type leaderboardResponse struct {
	Rank        int    `json:"rank"`
	ContextID   string `json:"contextId"`
	ReferenceID string `json:"referenceId,omitempty"`
	TotalPoints int    `json:"totalPoints"`
}

func (s *EngineAPIService) handleLeaderboard(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	entries, err := s.awards.Leaderboard(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]leaderboardResponse, len(entries))
	for i, e := range entries {
		out[i] = leaderboardResponse{
			Rank:        e.Rank,
			ContextID:   string(e.ContextID),
			ReferenceID: e.ReferenceID,
			TotalPoints: e.TotalPoints,
		}
	}
	writeJSON(w, http.StatusOK, out)
}
