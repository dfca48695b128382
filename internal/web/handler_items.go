package web

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/vbonduro/bakutrack/internal/domain"
	"github.com/vbonduro/bakutrack/internal/service"
)

type createItemRequest struct {
	Names        []string         `json:"names"`
	Size         domain.Size      `json:"size"`
	Element      string           `json:"element"`
	Special      string           `json:"special"`
	Series       string           `json:"series"`
	ImageRef     string           `json:"imageRef"`
	Price        decimal.Decimal  `json:"price"`
	Date         domain.PriceDate `json:"date"`
	ReferenceURI string           `json:"referenceUri"`
	Notes        string           `json:"notes"`
}

type updateItemRequest struct {
	Names    *[]string    `json:"names"`
	Size     *domain.Size `json:"size"`
	Element  *string      `json:"element"`
	Special  *string      `json:"special"`
	Series   *string      `json:"series"`
	ImageRef *string      `json:"imageRef"`
}

func (s *Server) handleListItems(c domain.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", 0)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		q := r.URL.Query()
		items, err := s.catalog.ListItems(r.Context(), domain.ItemFilter{
			Catalog: c,
			Size:    domain.Size(q.Get("size")),
			Element: q.Get("element"),
			Series:  q.Get("series"),
			Query:   q.Get("q"),
			Limit:   limit,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if items == nil {
			items = []*domain.Item{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

func (s *Server) handleCreateItem(c domain.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createItemRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		item, err := s.catalog.CreateItem(r.Context(), c, service.ItemInput{
			Names:        req.Names,
			Size:         req.Size,
			Element:      req.Element,
			Special:      req.Special,
			Series:       req.Series,
			ImageRef:     req.ImageRef,
			Price:        req.Price,
			Date:         req.Date,
			ReferenceURI: req.ReferenceURI,
			Notes:        req.Notes,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	}
}

func (s *Server) handleGetItem(c domain.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := s.catalog.GetItem(r.Context(), c, r.PathValue("id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func (s *Server) handleUpdateItem(c domain.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateItemRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		item, err := s.catalog.UpdateItem(r.Context(), c, r.PathValue("id"), service.ItemPatch{
			Names:    req.Names,
			Size:     req.Size,
			Element:  req.Element,
			Special:  req.Special,
			Series:   req.Series,
			ImageRef: req.ImageRef,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func (s *Server) handleDeleteItem(c domain.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.catalog.DeleteItem(r.Context(), c, r.PathValue("id")); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
