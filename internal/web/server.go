package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/bakutrack/internal/domain"
	"github.com/vbonduro/bakutrack/internal/service"
)

// Services are the application services the HTTP layer exposes.
type Services struct {
	Catalog     *service.CatalogService
	Ledger      *service.PriceLedger
	Ranks       *service.SlotAssigner
	Accounts    *service.AccountService
	Collections *service.CollectionService
}

type Server struct {
	catalog     *service.CatalogService
	ledger      *service.PriceLedger
	ranks       *service.SlotAssigner
	accounts    *service.AccountService
	collections *service.CollectionService
	mux         *http.ServeMux
	logger      *slog.Logger
}

func NewServer(svcs Services, logger *slog.Logger) *Server {
	s := &Server{
		catalog:     svcs.Catalog,
		ledger:      svcs.Ledger,
		ranks:       svcs.Ranks,
		accounts:    svcs.Accounts,
		collections: svcs.Collections,
		mux:         http.NewServeMux(),
		logger:      logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Catalog routes are registered per catalog so an unknown catalog is a
	// plain 404 and the global routes below never overlap a wildcard.
	for _, c := range domain.Catalogs {
		p := "/" + string(c)
		s.mux.HandleFunc("GET "+p+"/items", s.handleListItems(c))
		s.mux.HandleFunc("POST "+p+"/items", s.handleCreateItem(c))
		s.mux.HandleFunc("GET "+p+"/items/{id}", s.handleGetItem(c))
		s.mux.HandleFunc("PATCH "+p+"/items/{id}", s.handleUpdateItem(c))
		s.mux.HandleFunc("DELETE "+p+"/items/{id}", s.handleDeleteItem(c))
		s.mux.HandleFunc("POST "+p+"/items/{id}/prices", s.handleRecordPrice(c))
		s.mux.HandleFunc("GET "+p+"/items/{id}/prices", s.handleListPrices(c))
		s.mux.HandleFunc("GET "+p+"/prices/recent", s.handleRecentPrices(c))
		s.mux.HandleFunc("GET "+p+"/recommendations", s.handleListRecommendations(c))
		s.mux.HandleFunc("PUT "+p+"/recommendations", s.handleAssignRecommendation(c))
		s.mux.HandleFunc("DELETE "+p+"/recommendations/{rank}", s.handleReleaseRecommendation(c))
	}

	s.mux.HandleFunc("DELETE /prices/{id}", s.handleDeletePrice)

	s.mux.HandleFunc("POST /auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /me", s.requireUser(s.handleMe))

	s.mux.HandleFunc("GET /portfolio", s.requireUser(s.handleListPortfolio))
	s.mux.HandleFunc("PUT /portfolio/{itemId}", s.requireUser(s.handleUpsertHolding))
	s.mux.HandleFunc("DELETE /portfolio/{itemId}", s.requireUser(s.handleRemoveHolding))

	s.mux.HandleFunc("GET /favorites", s.requireUser(s.handleListFavorites))
	s.mux.HandleFunc("PUT /favorites/{itemId}", s.requireUser(s.handleAddFavorite))
	s.mux.HandleFunc("DELETE /favorites/{itemId}", s.requireUser(s.handleRemoveFavorite))
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

const requestIDHeader = "X-Request-ID"

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
