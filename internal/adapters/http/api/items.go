package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/lootrota/internal/adapters/repository"
	"github.com/okian/lootrota/internal/domain/model"
)

type createItemRequest struct {
	Name        string `json:"name" validate:"required,max=96"`
	Rarity      string `json:"rarity" validate:"omitempty,oneof=Legendary Epic Rare Uncommon Common"`
	Stats       string `json:"stats" validate:"max=512"`
	Chance      string `json:"chance" validate:"max=32"`
	IconURL     string `json:"icon_url" validate:"omitempty,url"`
	Cost        int64  `json:"cost" validate:"gte=0"`
	LimitToTopN bool   `json:"limit_to_top_n"`
}

type updateItemRequest struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=96"`
	Rarity          *string `json:"rarity" validate:"omitempty,oneof=Legendary Epic Rare Uncommon Common"`
	Stats           *string `json:"stats" validate:"omitempty,max=512"`
	Chance          *string `json:"chance" validate:"omitempty,max=32"`
	IconURL         *string `json:"icon_url" validate:"omitempty,url"`
	Cost            *int64  `json:"cost" validate:"omitempty,gte=0"`
	LastRecipientID *string `json:"last_recipient_id"`
	LimitToTopN     *bool   `json:"limit_to_top_n"`
}

func (u updateItemRequest) patch() repository.ItemPatch {
	p := repository.ItemPatch{
		Name:            u.Name,
		Stats:           u.Stats,
		Chance:          u.Chance,
		IconURL:         u.IconURL,
		Cost:            u.Cost,
		LastRecipientID: u.LastRecipientID,
		LimitToTopN:     u.LimitToTopN,
	}
	if u.Rarity != nil {
		r := model.Rarity(*u.Rarity)
		p.Rarity = &r
	}
	return p
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.ListItems(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	it, err := s.deps.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if !bind(w, r, &req) {
		return
	}
	it, err := s.deps.RegisterItem(r.Context(), model.Item{
		Name:        req.Name,
		Rarity:      model.Rarity(req.Rarity),
		Stats:       req.Stats,
		Chance:      req.Chance,
		IconURL:     req.IconURL,
		Cost:        req.Cost,
		LimitToTopN: req.LimitToTopN,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

// handleUpdateItem handles PATCH /api/v1/items/{id}. Setting
// last_recipient_id lets an operator correct the rotation pointer by hand.
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if !bind(w, r, &req) {
		return
	}
	it, err := s.deps.UpdateItem(r.Context(), chi.URLParam(r, "id"), req.patch())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.DeleteItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearItems(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.ClearItems(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleQueue handles GET /api/v1/items/{id}/queue and returns the full
// rotated queue.
func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	q, err := s.deps.Queue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// handleDashboard handles GET /api/v1/dashboard?viewer={playerID}.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Dashboard(r.Context(), r.URL.Query().Get("viewer"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
