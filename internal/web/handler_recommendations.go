package web

import (
	"net/http"
	"strconv"

	"github.com/vbonduro/bakutrack/internal/domain"
	"github.com/vbonduro/bakutrack/internal/service"
)

type assignRequest struct {
	ItemID string `json:"itemId"`
	Rank   int    `json:"rank"`
	Reason string `json:"reason"`
}

func (s *Server) handleListRecommendations(c domain.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slots, err := s.ranks.List(r.Context(), c)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"catalog": c, "slots": slots})
	}
}

func (s *Server) handleAssignRecommendation(c domain.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req assignRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		out, err := s.ranks.Assign(r.Context(), c, req.ItemID, req.Rank, req.Reason)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		status := http.StatusOK
		if out.Kind == service.AssignCreated {
			status = http.StatusCreated
		}
		writeJSON(w, status, out)
	}
}

func (s *Server) handleReleaseRecommendation(c domain.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rank, err := strconv.Atoi(r.PathValue("rank"))
		if err != nil {
			s.writeError(w, r, domain.Invalid("rank must be an integer"))
			return
		}
		if err := s.ranks.Release(r.Context(), c, rank); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
