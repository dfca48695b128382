package web

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/vbonduro/bakutrack/internal/service"
)

type holdingRequest struct {
	Quantity      int             `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	Notes         string          `json:"notes"`
}

func (s *Server) handleListPortfolio(w http.ResponseWriter, r *http.Request, email string) {
	view, err := s.collections.Portfolio(r.Context(), email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpsertHolding(w http.ResponseWriter, r *http.Request, email string) {
	var req holdingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	line, err := s.collections.UpsertHolding(r.Context(), email, r.PathValue("itemId"), service.PortfolioInput{
		Quantity:      req.Quantity,
		PurchasePrice: req.PurchasePrice,
		Notes:         req.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (s *Server) handleRemoveHolding(w http.ResponseWriter, r *http.Request, email string) {
	if err := s.collections.RemoveHolding(r.Context(), email, r.PathValue("itemId")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request, email string) {
	favorites, err := s.collections.Favorites(r.Context(), email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorites": favorites})
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request, email string) {
	if err := s.collections.AddFavorite(r.Context(), email, r.PathValue("itemId")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request, email string) {
	if err := s.collections.RemoveFavorite(r.Context(), email, r.PathValue("itemId")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
