package web_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/bakutrack/internal/auth"
	"github.com/vbonduro/bakutrack/internal/db"
	"github.com/vbonduro/bakutrack/internal/domain"
	"github.com/vbonduro/bakutrack/internal/service"
	"github.com/vbonduro/bakutrack/internal/store"
	"github.com/vbonduro/bakutrack/internal/web"
)

type testServer struct {
	*httptest.Server
	accounts *service.AccountService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	database, err := db.OpenForTesting()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	items := store.NewItemStore(database)
	prices := store.NewPriceStore(database)

	history, err := service.NewHistoryCache(16, 0, nil)
	require.NoError(t, err)
	listed, err := service.NewSlotCache(0, nil)
	require.NoError(t, err)
	issuer, err := auth.NewIssuer("integration-secret", time.Hour)
	require.NoError(t, err)

	ledger := service.NewPriceLedger(items, prices, history, logger)
	accounts := service.NewAccountService(store.NewUserStore(database), issuer, logger)
	srv := httptest.NewServer(web.NewServer(web.Services{
		Catalog:     service.NewCatalogService(items, ledger, logger),
		Ledger:      ledger,
		Ranks:       service.NewSlotAssigner(store.NewSlotStore(database), items, listed, logger),
		Accounts:    accounts,
		Collections: service.NewCollectionService(items, store.NewPortfolioStore(database), store.NewFavoriteStore(database), logger),
	}, logger))
	t.Cleanup(func() {
		srv.Close()
		_ = database.Close()
	})
	return &testServer{Server: srv, accounts: accounts}
}

// do sends body as JSON and decodes a JSON response into out when out is
// non-nil.
func (s *testServer) do(t *testing.T, method, path, token string, body, out any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (s *testServer) createItem(t *testing.T, catalog, name, price, date string) *domain.Item {
	t.Helper()
	var item domain.Item
	resp := s.do(t, http.MethodPost, "/"+catalog+"/items", "", map[string]any{
		"names":   []string{name},
		"size":    "B2",
		"element": "Pyrus",
		"series":  "Vestroia",
		"price":   price,
		"date":    date,
	}, &item)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return &item
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	var session service.Session
	resp := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    email,
		"password": "correct-horse",
	}, &session)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, session.Token)
	return session.Token
}

type slotsBody struct {
	Catalog string `json:"catalog"`
	Slots   []struct {
		Rank   int    `json:"rank"`
		ItemID string `json:"itemId"`
		Reason string `json:"reason"`
		Item   *struct {
			ID string `json:"id"`
		} `json:"item"`
	} `json:"slots"`
}

func TestIntegration_Healthz(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodGet, "/healthz", "", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestIntegration_RequestIDEchoed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "trace-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "trace-42", resp.Header.Get("X-Request-ID"))
}

func TestIntegration_UnknownCatalogIsNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodGet, "/pokemon/items", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIntegration_ItemLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	srv := newTestServer(t)
	item := srv.createItem(t, "bakugan", "Dragonoid", "25.50", "2024-03-01")

	var got domain.Item
	resp := srv.do(t, http.MethodGet, "/bakugan/items/"+item.ID, "", nil, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"Dragonoid"}, got.Names)
	assert.True(t, decimal.RequireFromString("25.5").Equal(got.CurrentPrice))

	// Items are scoped to their catalog.
	resp = srv.do(t, http.MethodGet, "/bakutech/items/"+item.ID, "", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var patched domain.Item
	resp = srv.do(t, http.MethodPatch, "/bakugan/items/"+item.ID, "", map[string]any{"element": "Darkus"}, &patched)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Darkus", patched.Element)

	var listed struct {
		Items []*domain.Item `json:"items"`
	}
	resp = srv.do(t, http.MethodGet, "/bakugan/items?element=Darkus", "", nil, &listed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, listed.Items, 1)

	resp = srv.do(t, http.MethodDelete, "/bakugan/items/"+item.ID, "", nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = srv.do(t, http.MethodGet, "/bakugan/items/"+item.ID, "", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIntegration_CreateItemValidation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	srv := newTestServer(t)

	var body struct {
		Error string `json:"error"`
	}
	resp := srv.do(t, http.MethodPost, "/bakugan/items", "", map[string]any{
		"names": []string{"Dragonoid"},
		"size":  "B9",
		"price": "10",
		"date":  "2024-03-01",
	}, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body.Error)

	resp = srv.do(t, http.MethodPost, "/bakugan/items", "", map[string]any{"bogus": true}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIntegration_PriceLedger(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	srv := newTestServer(t)
	item := srv.createItem(t, "bakugan", "Tigrerra", "100", "2024-01-01")
	path := "/bakugan/items/" + item.ID + "/prices"

	var recorded struct {
		Item  domain.Item       `json:"item"`
		Entry domain.PriceEntry `json:"entry"`
	}
	resp := srv.do(t, http.MethodPost, path, "", map[string]any{"price": "120", "timestamp": "2024-01-02"}, &recorded)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, decimal.NewFromInt(120).Equal(recorded.Item.CurrentPrice))

	// Backdated entries still win on record.
	resp = srv.do(t, http.MethodPost, path, "", map[string]any{"price": "90", "timestamp": "2023-12-01"}, &recorded)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, decimal.NewFromInt(90).Equal(recorded.Item.CurrentPrice))
	backdated := recorded.Entry.ID

	var deleted struct {
		ItemID    string              `json:"itemId"`
		Remaining []domain.PriceEntry `json:"remaining"`
	}
	resp = srv.do(t, http.MethodDelete, "/prices/"+backdated, "", nil, &deleted)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, item.ID, deleted.ItemID)
	assert.Len(t, deleted.Remaining, 2)

	var got domain.Item
	srv.do(t, http.MethodGet, "/bakugan/items/"+item.ID, "", nil, &got)
	assert.True(t, decimal.NewFromInt(120).Equal(got.CurrentPrice))
	assert.Equal(t, "2024-01-02", got.Date.String())

	var history struct {
		ItemID  string              `json:"itemId"`
		Entries []domain.PriceEntry `json:"entries"`
	}
	resp = srv.do(t, http.MethodGet, path, "", nil, &history)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, history.Entries, 2)
	assert.Empty(t, history.Entries[0].ItemID)

	resp = srv.do(t, http.MethodDelete, "/prices/"+backdated, "", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = srv.do(t, http.MethodPost, path, "", map[string]any{"price": "-1", "timestamp": "2024-01-03"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIntegration_RecentPrices(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	srv := newTestServer(t)
	a := srv.createItem(t, "bakugan", "Gorem", "10", "2024-01-01")
	b := srv.createItem(t, "bakugan", "Preyas", "20", "2024-01-01")
	for i := 2; i <= 4; i++ {
		srv.do(t, http.MethodPost, "/bakugan/items/"+a.ID+"/prices", "",
			map[string]any{"price": fmt.Sprint(10 + i), "timestamp": fmt.Sprintf("2024-01-0%d", i)}, nil)
	}

	var body struct {
		Items map[string][]domain.PriceEntry `json:"items"`
	}
	resp := srv.do(t, http.MethodGet, "/bakugan/prices/recent?n=2&ids="+a.ID+","+b.ID, "", nil, &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body.Items[a.ID], 2)
	assert.Len(t, body.Items[b.ID], 1)
}

func TestIntegration_RecentPricesFollowTier(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	srv := newTestServer(t)
	item := srv.createItem(t, "bakugan", "Centipoid", "1", "2024-01-01")
	for day := 2; day <= 15; day++ {
		resp := srv.do(t, http.MethodPost, "/bakugan/items/"+item.ID+"/prices", "", map[string]any{
			"price":     fmt.Sprint(day),
			"timestamp": fmt.Sprintf("2024-01-%02d", day),
		}, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	type recentBody struct {
		Items map[string][]domain.PriceEntry `json:"items"`
	}

	var anon recentBody
	resp := srv.do(t, http.MethodGet, "/bakugan/prices/recent?n=100", "", nil, &anon)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, anon.Items[item.ID], 10)

	token := srv.register(t, "alice@example.com")
	var free recentBody
	srv.do(t, http.MethodGet, "/bakugan/prices/recent?n=100", token, nil, &free)
	assert.Len(t, free.Items[item.ID], 10)

	until := time.Now().Add(24 * time.Hour)
	require.NoError(t, srv.accounts.GrantTier(t.Context(), "alice@example.com", domain.TierPremium, &until))
	var premium recentBody
	srv.do(t, http.MethodGet, "/bakugan/prices/recent?n=100", token, nil, &premium)
	assert.Len(t, premium.Items[item.ID], 15)

	resp = srv.do(t, http.MethodGet, "/bakugan/prices/recent?n=100", "garbage", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_RecommendationSwap(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	srv := newTestServer(t)
	a := srv.createItem(t, "bakugan", "Dragonoid", "10", "2024-01-01")
	b := srv.createItem(t, "bakugan", "Hydranoid", "20", "2024-01-01")

	var out service.AssignOutcome
	resp := srv.do(t, http.MethodPut, "/bakugan/recommendations", "", map[string]any{"itemId": a.ID, "rank": 1, "reason": "classic"}, &out)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, service.AssignCreated, out.Kind)

	resp = srv.do(t, http.MethodPut, "/bakugan/recommendations", "", map[string]any{"itemId": b.ID, "rank": 2, "reason": "rare"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = srv.do(t, http.MethodPut, "/bakugan/recommendations", "", map[string]any{"itemId": a.ID, "rank": 2}, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, service.AssignSwapped, out.Kind)

	var listed slotsBody
	resp = srv.do(t, http.MethodGet, "/bakugan/recommendations", "", nil, &listed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, listed.Slots, 2)
	assert.Equal(t, 1, listed.Slots[0].Rank)
	assert.Equal(t, b.ID, listed.Slots[0].ItemID)
	assert.Equal(t, "rare", listed.Slots[0].Reason)
	assert.Equal(t, a.ID, listed.Slots[1].ItemID)
	assert.Equal(t, "classic", listed.Slots[1].Reason)

	// The other catalog's list is untouched.
	var other slotsBody
	srv.do(t, http.MethodGet, "/bakutech/recommendations", "", nil, &other)
	assert.Empty(t, other.Slots)

	resp = srv.do(t, http.MethodPut, "/bakugan/recommendations", "", map[string]any{"itemId": a.ID, "rank": 6}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = srv.do(t, http.MethodDelete, "/bakugan/recommendations/1", "", nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = srv.do(t, http.MethodDelete, "/bakugan/recommendations/one", "", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	srv.do(t, http.MethodGet, "/bakugan/recommendations", "", nil, &listed)
	require.Len(t, listed.Slots, 1)
	assert.Equal(t, 2, listed.Slots[0].Rank)
}

func TestIntegration_DanglingSlotShowsNullItem(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	srv := newTestServer(t)
	a := srv.createItem(t, "bakugan", "Skyress", "10", "2024-01-01")
	srv.do(t, http.MethodPut, "/bakugan/recommendations", "", map[string]any{"itemId": a.ID, "rank": 3}, nil)
	srv.do(t, http.MethodDelete, "/bakugan/items/"+a.ID, "", nil, nil)

	var listed slotsBody
	resp := srv.do(t, http.MethodGet, "/bakugan/recommendations", "", nil, &listed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, listed.Slots, 1)
	assert.Equal(t, a.ID, listed.Slots[0].ItemID)
	assert.Nil(t, listed.Slots[0].Item)
}

func TestIntegration_Auth(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	srv := newTestServer(t)
	token := srv.register(t, "dan@example.com")

	resp := srv.do(t, http.MethodPost, "/auth/register", "", map[string]string{"email": "dan@example.com", "password": "another-one"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var session service.Session
	resp = srv.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "DAN@example.com", "password": "correct-horse"}, &session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, session.Token)

	resp = srv.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "dan@example.com", "password": "wrong-horse"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var profile struct {
		Email         string `json:"email"`
		EffectiveTier string `json:"effectiveTier"`
		HistoryLimit  int    `json:"historyLimit"`
	}
	resp = srv.do(t, http.MethodGet, "/me", token, nil, &profile)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "dan@example.com", profile.Email)
	assert.Equal(t, "free", profile.EffectiveTier)
	assert.Equal(t, 10, profile.HistoryLimit)

	resp = srv.do(t, http.MethodGet, "/me", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("WWW-Authenticate"))

	resp = srv.do(t, http.MethodGet, "/me", "not-a-token", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_HistoryLimitFollowsTier(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	srv := newTestServer(t)
	item := srv.createItem(t, "bakugan", "Drago", "1", "2024-01-01")
	path := "/bakugan/items/" + item.ID + "/prices"
	for day := 2; day <= 15; day++ {
		resp := srv.do(t, http.MethodPost, path, "", map[string]any{
			"price":     fmt.Sprint(day),
			"timestamp": fmt.Sprintf("2024-01-%02d", day),
		}, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	type historyBody struct {
		Limit   int                 `json:"limit"`
		Entries []domain.PriceEntry `json:"entries"`
	}

	var anon historyBody
	srv.do(t, http.MethodGet, path+"?limit=50", "", nil, &anon)
	assert.Equal(t, 10, anon.Limit)
	assert.Len(t, anon.Entries, 10)

	token := srv.register(t, "runo@example.com")
	until := time.Now().Add(24 * time.Hour)
	require.NoError(t, srv.accounts.GrantTier(t.Context(), "runo@example.com", domain.TierPremium, &until))

	var premium historyBody
	srv.do(t, http.MethodGet, path+"?limit=50", token, nil, &premium)
	assert.Equal(t, 50, premium.Limit)
	assert.Len(t, premium.Entries, 15)

	resp := srv.do(t, http.MethodGet, path, "garbage", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_PortfolioAndFavorites(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	srv := newTestServer(t)
	item := srv.createItem(t, "bakugan", "Dragonoid", "30", "2024-01-01")
	token := srv.register(t, "julie@example.com")

	resp := srv.do(t, http.MethodPut, "/portfolio/"+item.ID, "", map[string]any{"quantity": 1}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = srv.do(t, http.MethodPut, "/portfolio/"+item.ID, token, map[string]any{
		"quantity":      2,
		"purchasePrice": "25",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view struct {
		Lines      []json.RawMessage `json:"lines"`
		TotalValue decimal.Decimal   `json:"totalValue"`
		TotalCost  decimal.Decimal   `json:"totalCost"`
	}
	resp = srv.do(t, http.MethodGet, "/portfolio", token, nil, &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, view.Lines, 1)
	assert.True(t, decimal.NewFromInt(60).Equal(view.TotalValue))
	assert.True(t, decimal.NewFromInt(50).Equal(view.TotalCost))

	resp = srv.do(t, http.MethodDelete, "/portfolio/"+item.ID, token, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = srv.do(t, http.MethodPut, "/favorites/"+item.ID, token, nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	var favs struct {
		Favorites []struct {
			ItemID string `json:"itemId"`
		} `json:"favorites"`
	}
	srv.do(t, http.MethodGet, "/favorites", token, nil, &favs)
	require.Len(t, favs.Favorites, 1)
	assert.Equal(t, item.ID, favs.Favorites[0].ItemID)

	resp = srv.do(t, http.MethodDelete, "/favorites/"+item.ID, token, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = srv.do(t, http.MethodPut, "/favorites/missing", token, nil, nil)
	assert.NotEqual(t, http.StatusNoContent, resp.StatusCode)
}
