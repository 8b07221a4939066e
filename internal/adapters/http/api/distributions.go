package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/lootrota/internal/app"
	"github.com/okian/lootrota/internal/domain/cascade"
)

// RequestIDHeader may carry the idempotency key instead of request_id.
const RequestIDHeader = "Idempotency-Key"

type actionRequest struct {
	Kind      string `json:"kind" validate:"required,oneof=acquire skip absent"`
	PlayerID  string `json:"player_id" validate:"required"`
	RequestID string `json:"request_id" validate:"max=128"`
}

func (a actionRequest) action() cascade.Action {
	return cascade.Action{Kind: cascade.Kind(a.Kind), PlayerID: a.PlayerID}
}

func (a actionRequest) requestID(r *http.Request) string {
	if a.RequestID != "" {
		return a.RequestID
	}
	return r.Header.Get(RequestIDHeader)
}

type distributeRequest struct {
	ItemID string `json:"item_id" validate:"required"`
	actionRequest
}

type enqueueRequest struct {
	ItemID   string `json:"item_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"omitempty,min=1,max=999"`
}

// handleDistribute handles POST /api/v1/distributions.
func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	var req distributeRequest
	if !bind(w, r, &req) {
		return
	}
	d, err := s.deps.Distribute(r.Context(), service.DistributeRequest{
		ItemID:    req.ItemID,
		Action:    req.action(),
		RequestID: req.requestID(r),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleWorklist(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Worklist(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleEnqueueWork handles POST /api/v1/worklist. Quantity defaults to 1.
func (s *Server) handleEnqueueWork(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if !bind(w, r, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	wi, err := s.deps.EnqueueWork(r.Context(), req.ItemID, req.Quantity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wi)
}

func (s *Server) handleRemoveWork(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.RemoveWork(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDistributeHead handles POST /api/v1/worklist/head/distribute.
func (s *Server) handleDistributeHead(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !bind(w, r, &req) {
		return
	}
	d, err := s.deps.DistributeHead(r.Context(), req.action(), req.requestID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}
