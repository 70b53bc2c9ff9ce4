// Package api provides the HTTP handlers of the MeritKeeper engine API.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/meritkeeper/meritkeeper/internal/engine"
	"github.com/meritkeeper/meritkeeper/internal/types"
)

// SchemaWriter persists authored schema documents.
type SchemaWriter interface {
	CreateSchema(ctx context.Context, schema *types.Schema, document []byte) error
}

// BadgeWriter adds definitions to the badge catalog.
type BadgeWriter interface {
	CreateBadge(ctx context.Context, b *types.Badge) error
}

// AwardReader serves the read-side award queries.
type AwardReader interface {
	ListRewardPoints(ctx context.Context, contextID types.ContextID, category string) ([]types.RewardPoints, error)
	ListParticipantBadges(ctx context.Context, contextID types.ContextID, badgeID types.BadgeID) ([]types.ParticipantBadge, error)
	Leaderboard(ctx context.Context, category string) ([]types.LeaderboardEntry, error)
}

// EngineAPIService implements the HTTP engine API.
// Thin orchestration layer delegating to the dispatcher and the repositories.
type EngineAPIService struct {
	dispatcher *engine.Dispatcher
	contexts   engine.ContextLookup
	registrar  engine.ContextRegistrar
	instances  engine.InstanceRepository
	schemas    SchemaWriter
	badges     BadgeWriter
	awards     AwardReader
	logger     *slog.Logger
}

// NewEngineAPIService creates the service instance with its dependencies.
func NewEngineAPIService(
	dispatcher *engine.Dispatcher,
	contexts engine.ContextLookup,
	registrar engine.ContextRegistrar,
	instances engine.InstanceRepository,
	schemas SchemaWriter,
	badges BadgeWriter,
	awards AwardReader,
	logger *slog.Logger,
) (*EngineAPIService, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher cannot be nil")
	}
	if contexts == nil || registrar == nil || instances == nil {
		return nil, fmt.Errorf("repositories cannot be nil")
	}
	if schemas == nil || badges == nil || awards == nil {
		return nil, fmt.Errorf("stores cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EngineAPIService{
		dispatcher: dispatcher,
		contexts:   contexts,
		registrar:  registrar,
		instances:  instances,
		schemas:    schemas,
		badges:     badges,
		awards:     awards,
		logger:     logger,
	}, nil
}

// Router builds the route table.
func (s *EngineAPIService) Router() *httprouter.Router {
	r := httprouter.New()
	r.POST("/v1/engine/events", s.handleReportEvent)
	r.POST("/v1/schemas", s.handleCreateSchema)
	r.POST("/v1/badges", s.handleCreateBadge)
	r.GET("/v1/instances/:id", s.handleGetInstance)
	r.GET("/v1/contexts/:ref/points", s.handleListPoints)
	r.GET("/v1/contexts/:ref/badges", s.handleListBadges)
	r.GET("/v1/awards/leaderboard", s.handleLeaderboard)
	r.GET("/healthz", s.handleHealth)
	return r
}

func (s *EngineAPIService) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// resolveContextRef maps an external reference to its context, creating the
// context lazily on first sight when a type is supplied.
func (s *EngineAPIService) resolveContextRef(ctx context.Context, referenceID string, contextType types.ContextType) (*types.Context, error) {
	c, err := s.contexts.GetContextByReference(ctx, referenceID)
	if err == nil {
		return c, nil
	}
	if contextType == "" {
		return nil, err
	}
	if !contextType.Valid() {
		return nil, fmt.Errorf("context type %q: %w", contextType, types.ErrValidation)
	}
	c = &types.Context{
		ID:          types.NewContextID(),
		Type:        contextType,
		ReferenceID: referenceID,
		CreatedAt:   time.Now().UTC(),
	}
	if createErr := s.registrar.CreateContext(ctx, c); createErr != nil {
		return nil, createErr
	}
	return c, nil
}
