package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/julienschmidt/httprouter"
	"github.com/meritkeeper/meritkeeper/internal/engine"
	"github.com/meritkeeper/meritkeeper/internal/types"
)

// handleCreateSchema parses, validates and persists an authored schema
// document. The response carries the minted schema id.
func (s *EngineAPIService) handleCreateSchema(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(io.LimitReader(r.Body, types.MaxPayloadSize+1))
	if err != nil {
		writeError(w, fmt.Errorf("read body: %w", err))
		return
	}
	schema, err := engine.ParseSchema(body)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.schemas.CreateSchema(r.Context(), schema, body); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":      string(schema.ID),
		"name":    schema.Name,
		"version": schema.Version,
		"type":    string(schema.Type),
	})
}

type createBadgeRequest struct {
	Category    string `json:"category"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

func (s *EngineAPIService) handleCreateBadge(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createBadgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("decode request: %w: %w", err, types.ErrValidation))
		return
	}
	if req.Name == "" {
		writeError(w, fmt.Errorf("badge name required: %w", types.ErrValidation))
		return
	}
	badge := &types.Badge{
		ID:          types.NewBadgeID(),
		Category:    req.Category,
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	}
	if err := s.badges.CreateBadge(r.Context(), badge); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": string(badge.ID)})
}

type instanceResponse struct {
	ID            string    `json:"id"`
	SchemaID      string    `json:"schemaId"`
	ContextID     string    `json:"contextId"`
	CurrentNodeID string    `json:"currentNodeId"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (s *EngineAPIService) handleGetInstance(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := types.ParseInstanceID(ps.ByName("id"))
	if err != nil {
		writeError(w, fmt.Errorf("instance id: %w: %w", err, types.ErrValidation))
		return
	}
	instance, err := s.instances.GetInstance(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, instanceResponse{
		ID:            string(instance.ID),
		SchemaID:      string(instance.SchemaID),
		ContextID:     string(instance.ContextID),
		CurrentNodeID: string(instance.CurrentNodeID),
		Status:        string(instance.Status),
		CreatedAt:     instance.CreatedAt,
		UpdatedAt:     instance.UpdatedAt,
	})
}
