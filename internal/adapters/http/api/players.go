package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/lootrota/internal/adapters/repository"
	service "github.com/okian/lootrota/internal/app"
	"github.com/okian/lootrota/internal/domain/model"
)

type createPlayerRequest struct {
	Name        string `json:"name" validate:"required,max=64"`
	CombatPower string `json:"combat_power" validate:"max=32"`
	Class       string `json:"class" validate:"omitempty,oneof='Elf' 'Dark Wizard' 'Dark Lord' 'Dark Knight'"`
	Role        string `json:"role" validate:"omitempty,oneof=DPS Tank Healer"`
}

type updatePlayerRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=64"`
	CombatPower *string `json:"combat_power" validate:"omitempty,max=32"`
	Balance     *int64  `json:"balance" validate:"omitempty,gte=0"`
	Class       *string `json:"class" validate:"omitempty,oneof='Elf' 'Dark Wizard' 'Dark Lord' 'Dark Knight'"`
	Role        *string `json:"role" validate:"omitempty,oneof=DPS Tank Healer"`
	AvatarURL   *string `json:"avatar_url" validate:"omitempty,url"`
	Presence    *string `json:"presence" validate:"omitempty,oneof=Online Offline"`
}

func (u updatePlayerRequest) patch() repository.PlayerPatch {
	p := repository.PlayerPatch{
		Name:        u.Name,
		CombatPower: u.CombatPower,
		Balance:     u.Balance,
		AvatarURL:   u.AvatarURL,
	}
	if u.Class != nil {
		c := model.Class(*u.Class)
		p.Class = &c
	}
	if u.Role != nil {
		r := model.Role(*u.Role)
		p.Role = &r
	}
	if u.Presence != nil {
		pr := model.Presence(*u.Presence)
		p.Presence = &pr
	}
	return p
}

// handleListPlayers handles GET /api/v1/players. ?sort=power orders the
// roster strongest first.
func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.deps.ListPlayers(r.Context(), r.URL.Query().Get("sort") == "power")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.GetPlayer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req createPlayerRequest
	if !bind(w, r, &req) {
		return
	}
	p, err := s.deps.RegisterPlayer(r.Context(), service.PlayerInput{
		Name:        req.Name,
		CombatPower: req.CombatPower,
		Class:       model.Class(req.Class),
		Role:        model.Role(req.Role),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdatePlayer(w http.ResponseWriter, r *http.Request) {
	var req updatePlayerRequest
	if !bind(w, r, &req) {
		return
	}
	p, err := s.deps.UpdatePlayer(r.Context(), chi.URLParam(r, "id"), req.patch())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePlayer(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.DeletePlayer(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearPlayers(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.ClearPlayers(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleProfile handles GET /api/v1/players/{id}/profile.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	prof, err := s.deps.Profile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

func (s *Server) handleLookahead(w http.ResponseWriter, r *http.Request) {
	look, err := s.deps.Lookahead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, look)
}
