package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/okian/lootrota/internal/domain/history"
	"github.com/okian/lootrota/internal/domain/model"
	"github.com/okian/lootrota/pkg/logger"
)

// parseHistoryFilter reads player, item, status, date, from, to and limit.
// date is a calendar day in the configured history timezone and wins over
// from/to.
func (s *Server) parseHistoryFilter(q url.Values) (history.Filter, error) {
	f := history.Filter{
		PlayerID: q.Get("player"),
		ItemID:   q.Get("item"),
	}
	if st := q.Get("status"); st != "" {
		f.Status = model.Status(st)
		if !f.Status.Valid() {
			return f, fmt.Errorf("%w: unknown status %q", ErrBadRequest, st)
		}
	}

	if day := q.Get("date"); day != "" {
		return f.WithDay(day, s.deps.Location())
	}
	for key, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("%w: %s must be RFC3339", ErrBadRequest, key)
		}
		*dst = t
	}
	return f, nil
}

func (s *Server) parseLimit(q url.Values) (int, error) {
	v := q.Get("limit")
	if v == "" {
		return s.maxHistoryLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest)
	}
	return min(n, s.maxHistoryLimit), nil
}

// handleHistory handles GET /api/v1/history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := s.parseHistoryFilter(q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if f.Limit, err = s.parseLimit(q); err != nil {
		writeServiceError(w, err)
		return
	}
	page, err := s.deps.History(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleHistoryExport handles GET /api/v1/history/export. Every matching
// event is streamed as gzip-compressed JSON, with no page limit.
func (s *Server) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	f, err := s.parseHistoryFilter(r.URL.Query())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	page, err := s.deps.History(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="loot-history.json.gz"`)
	w.WriteHeader(http.StatusOK)

	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(page.Events); err != nil {
		s.logger.Warn(r.Context(), "history export interrupted", logger.Error(err))
	}
	if err := zw.Close(); err != nil {
		s.logger.Warn(r.Context(), "history export close failed", logger.Error(err))
	}
}

// handleClearHistory handles DELETE /api/v1/history.
func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.ClearHistory(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
