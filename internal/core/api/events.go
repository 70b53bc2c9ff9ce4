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

// reportEventRequest is the wire shape of POST /v1/engine/events.
// Either contextId or referenceId identifies the subject; referenceId plus
// contextType creates the context on first sight.
type reportEventRequest struct {
	ContextID   string          `json:"contextId,omitempty"`
	ReferenceID string          `json:"referenceId,omitempty"`
	ContextType string          `json:"contextType,omitempty"`
	Type        string          `json:"type"`
	OccurredAt  *time.Time      `json:"occurredAt,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

type cycleResponse struct {
	SchemaID   string `json:"schemaId"`
	InstanceID string `json:"instanceId,omitempty"`
	Status     string `json:"status,omitempty"`
	NodeID     string `json:"nodeId,omitempty"`
	FiredRule  string `json:"firedRule,omitempty"`
	Hops       int    `json:"hops"`
	Skipped    string `json:"skipped,omitempty"`
	Error      string `json:"error,omitempty"`
	Result     any    `json:"result,omitempty"`
}

type reportEventResponse struct {
	EventID   string          `json:"eventId"`
	ContextID string          `json:"contextId"`
	Cycles    []cycleResponse `json:"cycles"`
}

func (s *EngineAPIService) handleReportEvent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(io.LimitReader(r.Body, types.MaxPayloadSize+1))
	if err != nil {
		writeError(w, fmt.Errorf("read body: %w", err))
		return
	}
	var req reportEventRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, fmt.Errorf("decode request: %w: %w", err, types.ErrValidation))
		return
	}
	if req.Type == "" {
		writeError(w, fmt.Errorf("event type required: %w", types.ErrValidation))
		return
	}

	var c *types.Context
	switch {
	case req.ContextID != "":
		c, err = s.contexts.GetContext(r.Context(), types.ContextID(req.ContextID))
	case req.ReferenceID != "":
		c, err = s.resolveContextRef(r.Context(), req.ReferenceID, types.ContextType(req.ContextType))
	default:
		err = fmt.Errorf("contextId or referenceId required: %w", types.ErrValidation)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	occurred := time.Now().UTC()
	if req.OccurredAt != nil {
		occurred = req.OccurredAt.UTC()
	}
	event := &types.IncomingEvent{
		ID:         types.NewEventID(),
		ContextID:  c.ID,
		TypeID:     types.EventTypeID(req.Type),
		Payload:    types.Payload(req.Payload),
		OccurredAt: occurred,
	}

	report, err := s.dispatcher.HandleEvent(r.Context(), event)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(report))
}

func toEventResponse(report *engine.DispatchReport) reportEventResponse {
	resp := reportEventResponse{
		EventID:   string(report.EventID),
		ContextID: string(report.ContextID),
		Cycles:    make([]cycleResponse, 0, len(report.Cycles)),
	}
	for _, c := range report.Cycles {
		cycle := cycleResponse{
			SchemaID:   string(c.SchemaID),
			InstanceID: string(c.InstanceID),
			Status:     string(c.Status),
			NodeID:     string(c.NodeID),
			FiredRule:  c.FiredRule,
			Hops:       c.Hops,
			Skipped:    string(c.Skipped),
		}
		if c.Err != nil {
			cycle.Error = c.Err.Error()
		}
		if c.Result != nil {
			cycle.Result = c.Result.Data
		}
		resp.Cycles = append(resp.Cycles, cycle)
	}
	return resp
}
