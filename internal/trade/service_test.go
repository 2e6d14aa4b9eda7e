package trade_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/FinnSolly2/TradeQuest1/internal/feed"
	"github.com/FinnSolly2/TradeQuest1/internal/ledger"
	"github.com/FinnSolly2/TradeQuest1/internal/model"
	"github.com/FinnSolly2/TradeQuest1/internal/store"
	"github.com/FinnSolly2/TradeQuest1/internal/trade"
)

var (
	anchor = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	now    = anchor.Add(3*time.Minute + 20*time.Second)
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

type testEnv struct {
	svc    *trade.Service
	store  *store.MemoryStore
	feed   *feed.Feed
	router chi.Router
}

type fixedStats model.ReadinessStats

func (f fixedStats) Stats() model.ReadinessStats { return model.ReadinessStats(f) }

// newTestEnv creates a Service over an in-memory store and a feed holding
// flat paths at the given prices, plus a chi router.
func newTestEnv(t *testing.T, prices map[string]float64) *testEnv {
	t.Helper()
	ms := store.NewMemoryStore()
	f := feed.New()
	publishFlat(f, prices)

	clock := func() time.Time { return now }
	l := ledger.New(ms, f, ledger.WithClock(clock))
	svc := trade.NewService(l, f, fixedStats{TotalAssets: 2, FullWindows: 2, Ready: true}, nil, trade.WithClock(clock))

	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)

	return &testEnv{svc: svc, store: ms, feed: f, router: r}
}

// publishFlat publishes a batch where every symbol holds one price for the
// whole window. A negative price publishes a null entry.
func publishFlat(f *feed.Feed, prices map[string]float64) {
	b := &model.Batch{AnchorTime: anchor, Assets: make(map[string]*model.AssetPath)}
	for sym, p := range prices {
		if p < 0 {
			b.Assets[sym] = nil
			continue
		}
		pts := make([]model.PricePoint, model.BatchSeconds)
		for i := range pts {
			pts[i] = model.PricePoint{Second: i, Timestamp: anchor.Add(time.Duration(i) * time.Second), Price: d(p)}
		}
		b.Assets[sym] = &model.AssetPath{
			Symbol: sym,
			Points: pts,
			Summary: model.PathSummary{
				StartPrice: d(p), EndPrice: d(p), PeriodHigh: d(p), PeriodLow: d(p),
			},
		}
	}
	f.Publish(b)
}

func doTrade(t *testing.T, router chi.Router, req trade.TradeRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(req)
	httpReq := httptest.NewRequest("POST", "/api/v1/trade", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httpReq)
	return w
}

func doGet(t *testing.T, router chi.Router, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

func errorKind(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body["message"] == "" {
		t.Errorf("error body has no message: %v", body)
	}
	return body["error"]
}

// --- Trade execution tests ---

func TestExecuteTrade_Buy(t *testing.T) {
	env := newTestEnv(t, map[string]float64{"AAPL": 150})

	w := doTrade(t, env.router, trade.TradeRequest{
		UserID:   "user1",
		Symbol:   "aapl",
		Action:   model.ActionBuy,
		Quantity: 5,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var conf ledger.Confirmation
	if err := json.NewDecoder(w.Body).Decode(&conf); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if conf.TradeID == "" {
		t.Error("expected trade_id")
	}
	if conf.Symbol != "AAPL" {
		t.Errorf("expected normalized symbol AAPL, got %s", conf.Symbol)
	}
	if !conf.Price.Equal(d(150)) {
		t.Errorf("expected price 150, got %s", conf.Price)
	}
	if !conf.TotalValue.Equal(d(750)) {
		t.Errorf("expected total 750, got %s", conf.TotalValue)
	}
	if !conf.NewBalance.Equal(d(99250)) {
		t.Errorf("expected balance 99250, got %s", conf.NewBalance)
	}
}

func TestExecuteTrade_BuyThenSellScenario(t *testing.T) {
	env := newTestEnv(t, map[string]float64{"AAPL": 150})

	if w := doTrade(t, env.router, trade.TradeRequest{UserID: "u", Symbol: "AAPL", Action: model.ActionBuy, Quantity: 5}); w.Code != http.StatusOK {
		t.Fatalf("buy failed: %d %s", w.Code, w.Body.String())
	}

	publishFlat(env.feed, map[string]float64{"AAPL": 160})

	w := doTrade(t, env.router, trade.TradeRequest{UserID: "u", Symbol: "AAPL", Action: model.ActionSell, Quantity: 5})
	if w.Code != http.StatusOK {
		t.Fatalf("sell failed: %d %s", w.Code, w.Body.String())
	}

	w = doGet(t, env.router, "/api/v1/portfolio/u")
	var p model.Portfolio
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatalf("decode portfolio: %v", err)
	}
	if !p.Balance.Equal(d(100050)) {
		t.Errorf("expected balance 100050, got %s", p.Balance)
	}
	if !p.ProfitLoss.Equal(d(50)) {
		t.Errorf("expected profit 50, got %s", p.ProfitLoss)
	}
	if len(p.Positions) != 0 {
		t.Errorf("expected no positions, got %v", p.Positions)
	}
	if p.TotalTrades != 2 {
		t.Errorf("expected 2 trades, got %d", p.TotalTrades)
	}
}

func TestExecuteTrade_Rejections(t *testing.T) {
	env := newTestEnv(t, map[string]float64{"AAPL": 150, "DEAD": -1})

	cases := []struct {
		name   string
		req    trade.TradeRequest
		status int
		kind   string
	}{
		{"zero quantity", trade.TradeRequest{UserID: "u", Symbol: "AAPL", Action: model.ActionBuy}, http.StatusBadRequest, model.KindInvalidQuantity},
		{"negative quantity", trade.TradeRequest{UserID: "u", Symbol: "AAPL", Action: model.ActionBuy, Quantity: -3}, http.StatusBadRequest, model.KindInvalidQuantity},
		{"bad action", trade.TradeRequest{UserID: "u", Symbol: "AAPL", Action: "hold", Quantity: 1}, http.StatusBadRequest, model.KindInvalidAction},
		{"missing user", trade.TradeRequest{Symbol: "AAPL", Action: model.ActionBuy, Quantity: 1}, http.StatusBadRequest, model.KindInvalidInput},
		{"malformed symbol", trade.TradeRequest{UserID: "u", Symbol: "not a ticker", Action: model.ActionBuy, Quantity: 1}, http.StatusBadRequest, model.KindInvalidInput},
		{"unknown symbol", trade.TradeRequest{UserID: "u", Symbol: "MSFT", Action: model.ActionBuy, Quantity: 1}, http.StatusNotFound, model.KindSymbolUnavailable},
		{"null symbol", trade.TradeRequest{UserID: "u", Symbol: "DEAD", Action: model.ActionBuy, Quantity: 1}, http.StatusNotFound, model.KindSymbolUnavailable},
		{"insufficient funds", trade.TradeRequest{UserID: "u", Symbol: "AAPL", Action: model.ActionBuy, Quantity: 1000}, http.StatusConflict, model.KindInsufficientFunds},
		{"insufficient shares", trade.TradeRequest{UserID: "u", Symbol: "AAPL", Action: model.ActionSell, Quantity: 1}, http.StatusConflict, model.KindInsufficientShares},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := doTrade(t, env.router, c.req)
			if w.Code != c.status {
				t.Fatalf("expected %d, got %d: %s", c.status, w.Code, w.Body.String())
			}
			if kind := errorKind(t, w); kind != c.kind {
				t.Errorf("expected kind %s, got %s", c.kind, kind)
			}
		})
	}

	// Nothing was committed by any rejection.
	if accts, _ := env.store.ScanAccounts(context.Background()); len(accts) != 0 {
		t.Errorf("expected no accounts, got %d", len(accts))
	}
}

func TestExecuteTrade_InvalidBody(t *testing.T) {
	env := newTestEnv(t, nil)

	httpReq := httptest.NewRequest("POST", "/api/v1/trade", bytes.NewReader([]byte(`{"quantity": 1.5`)))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httpReq)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if kind := errorKind(t, w); kind != model.KindInvalidInput {
		t.Errorf("expected invalid_input, got %s", kind)
	}
}

// --- Portfolio tests ---

func TestGetPortfolio_UnseenUser(t *testing.T) {
	env := newTestEnv(t, nil)

	w := doGet(t, env.router, "/api/v1/portfolio/ghost")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var p model.Portfolio
	json.NewDecoder(w.Body).Decode(&p)
	if !p.TotalValue.Equal(model.InitialBalance) {
		t.Errorf("expected default total value, got %s", p.TotalValue)
	}

	// The default view is not persisted.
	if accts, _ := env.store.ScanAccounts(context.Background()); len(accts) != 0 {
		t.Errorf("default view created an account")
	}
}

func TestGetPortfolio_Positions(t *testing.T) {
	env := newTestEnv(t, map[string]float64{"AAPL": 100, "MSFT": 50})

	doTrade(t, env.router, trade.TradeRequest{UserID: "u", Symbol: "AAPL", Action: model.ActionBuy, Quantity: 1})
	doTrade(t, env.router, trade.TradeRequest{UserID: "u", Symbol: "MSFT", Action: model.ActionBuy, Quantity: 10})

	publishFlat(env.feed, map[string]float64{"AAPL": 110, "MSFT": 45})

	w := doGet(t, env.router, "/api/v1/portfolio/u")
	var p model.Portfolio
	json.NewDecoder(w.Body).Decode(&p)

	if len(p.Positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(p.Positions))
	}
	if p.Positions[0].Symbol != "MSFT" {
		t.Errorf("expected largest market value first, got %s", p.Positions[0].Symbol)
	}
	if !p.PortfolioValue.Equal(d(560)) {
		t.Errorf("expected portfolio value 560, got %s", p.PortfolioValue)
	}
	if !p.ProfitLoss.Equal(d(-40)) {
		t.Errorf("expected P/L -40, got %s", p.ProfitLoss)
	}
}

func TestGetPortfolio_UnpricedHolding(t *testing.T) {
	env := newTestEnv(t, map[string]float64{"AAPL": 100})
	doTrade(t, env.router, trade.TradeRequest{UserID: "u", Symbol: "AAPL", Action: model.ActionBuy, Quantity: 1})

	publishFlat(env.feed, map[string]float64{"MSFT": 10})

	w := doGet(t, env.router, "/api/v1/portfolio/u")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if kind := errorKind(t, w); kind != model.KindSymbolUnavailable {
		t.Errorf("expected symbol_unavailable, got %s", kind)
	}
}

func TestGetTrades(t *testing.T) {
	env := newTestEnv(t, map[string]float64{"AAPL": 100})
	for i := 0; i < 3; i++ {
		doTrade(t, env.router, trade.TradeRequest{UserID: "u", Symbol: "AAPL", Action: model.ActionBuy, Quantity: 1})
	}

	w := doGet(t, env.router, "/api/v1/portfolio/u/trades?limit=2")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Trades []model.Trade `json:"trades"`
	}
	json.NewDecoder(w.Body).Decode(&body)
	if len(body.Trades) != 2 {
		t.Errorf("expected 2 trades, got %d", len(body.Trades))
	}

	w = doGet(t, env.router, "/api/v1/portfolio/u/trades?limit=abc")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", w.Code)
	}
}

// --- Leaderboard tests ---

func TestGetLeaderboard(t *testing.T) {
	env := newTestEnv(t, map[string]float64{"AAPL": 100})

	doTrade(t, env.router, trade.TradeRequest{UserID: "winner", Symbol: "AAPL", Action: model.ActionBuy, Quantity: 10})
	doTrade(t, env.router, trade.TradeRequest{UserID: "loser", Symbol: "AAPL", Action: model.ActionBuy, Quantity: 10})
	doTrade(t, env.router, trade.TradeRequest{UserID: "loser", Symbol: "AAPL", Action: model.ActionSell, Quantity: 10})

	publishFlat(env.feed, map[string]float64{"AAPL": 120})

	w := doGet(t, env.router, "/api/v1/leaderboard")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var lb model.Leaderboard
	json.NewDecoder(w.Body).Decode(&lb)

	if lb.TotalUsers != 2 || len(lb.Entries) != 2 {
		t.Fatalf("expected 2 users, got %+v", lb)
	}
	if lb.Entries[0].UserID != "winner" || lb.Entries[0].Rank != 1 {
		t.Errorf("expected winner ranked first, got %+v", lb.Entries[0])
	}
	if !lb.Entries[0].ProfitLoss.Equal(d(200)) {
		t.Errorf("expected winner P/L 200, got %s", lb.Entries[0].ProfitLoss)
	}
	if lb.Entries[1].Rank != 2 || !lb.Entries[1].ProfitLoss.IsZero() {
		t.Errorf("unexpected second entry %+v", lb.Entries[1])
	}
}

// --- Feed tests ---

func TestGetPrices(t *testing.T) {
	env := newTestEnv(t, map[string]float64{"AAPL": 150, "DEAD": -1})

	w := doGet(t, env.router, "/api/v1/prices")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var snap feed.Snapshot
	json.NewDecoder(w.Body).Decode(&snap)
	if len(snap.Assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(snap.Assets))
	}
	if !snap.Assets[0].Available || !snap.Assets[0].Price.Equal(d(150)) {
		t.Errorf("unexpected AAPL row %+v", snap.Assets[0])
	}
	if snap.Assets[1].Available {
		t.Errorf("expected DEAD unavailable")
	}
	if snap.Assets[0].SecondIndex != 200 {
		t.Errorf("expected second index 200, got %d", snap.Assets[0].SecondIndex)
	}

	w = doGet(t, env.router, "/api/v1/prices/aapl")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestGetPrices_NoBatch(t *testing.T) {
	ms := store.NewMemoryStore()
	f := feed.New()
	svc := trade.NewService(ledger.New(ms, f), f, nil, nil)
	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)

	w := doGet(t, r, "/api/v1/prices")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestGetStatus(t *testing.T) {
	env := newTestEnv(t, map[string]float64{"AAPL": 150})

	w := doGet(t, env.router, "/api/v1/status")
	var st trade.StatusResponse
	json.NewDecoder(w.Body).Decode(&st)

	if !st.History.Ready || st.BatchVersion != 1 || st.Simulated != 1 || st.Stale {
		t.Errorf("unexpected status %+v", st)
	}
}
