package web

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vbonduro/bakutrack/internal/domain"
	"github.com/vbonduro/bakutrack/internal/service"
)

const defaultRecentPerItem = 5

type recordPriceRequest struct {
	Price        decimal.Decimal  `json:"price"`
	Timestamp    domain.PriceDate `json:"timestamp"`
	Notes        string           `json:"notes"`
	ReferenceURI string           `json:"referenceUri"`
}

type recordPriceResponse struct {
	Item  *domain.Item       `json:"item"`
	Entry *domain.PriceEntry `json:"entry"`
}

type priceHistoryResponse struct {
	ItemID  string               `json:"itemId"`
	Limit   int                  `json:"limit"`
	Entries []*domain.PriceEntry `json:"entries"`
}

type deletePriceResponse struct {
	ItemID    string               `json:"itemId"`
	Remaining []*domain.PriceEntry `json:"remaining"`
}

func (s *Server) handleRecordPrice(c domain.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recordPriceRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		item, entry, err := s.ledger.RecordPrice(r.Context(), c, r.PathValue("id"), service.PriceInput{
			Price:        req.Price,
			Timestamp:    req.Timestamp,
			Notes:        req.Notes,
			ReferenceURI: req.ReferenceURI,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, recordPriceResponse{Item: item, Entry: entry})
	}
}

// historyLimit is the most entries per item the caller's tier may see.
// Anonymous callers get the free tier.
func (s *Server) historyLimit(r *http.Request) (int, error) {
	email, err := s.identify(r)
	if err != nil {
		return 0, err
	}
	tier, err := s.accounts.EffectiveTier(r.Context(), email)
	if err != nil {
		return 0, err
	}
	return tier.HistoryLimit(), nil
}

// handleListPrices serves price history, capped by the caller's tier.
func (s *Server) handleListPrices(c domain.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maxLimit, err := s.historyLimit(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		limit, err := queryInt(r, "limit", service.DefaultHistoryPage)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		limit = min(limit, maxLimit)

		item, err := s.catalog.GetItem(r.Context(), c, r.PathValue("id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		entries, err := s.ledger.ListForItem(r.Context(), item.ID, limit)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, priceHistoryResponse{ItemID: item.ID, Limit: limit, Entries: entries})
	}
}

// handleRecentPrices serves the newest n entries per item, capped by the
// caller's tier like handleListPrices.
func (s *Server) handleRecentPrices(c domain.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := s.historyLimit(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		n, err := queryInt(r, "n", defaultRecentPerItem)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		n = min(n, limit)
		var ids []string
		if raw := r.URL.Query().Get("ids"); raw != "" {
			for _, id := range strings.Split(raw, ",") {
				if id = strings.TrimSpace(id); id != "" {
					ids = append(ids, id)
				}
			}
		}
		grouped, err := s.ledger.RecentForItems(r.Context(), c, ids, n)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": grouped})
	}
}

func (s *Server) handleDeletePrice(w http.ResponseWriter, r *http.Request) {
	itemID, remaining, err := s.ledger.DeleteEntry(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletePriceResponse{ItemID: itemID, Remaining: remaining})
}
