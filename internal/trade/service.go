// Package trade provides the HTTP handlers for executing trades and
// querying portfolios, the leaderboard and the simulated price feed.
//
// All monetary values use shopspring/decimal — never float64 for money.
package trade

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/FinnSolly2/TradeQuest1/internal/feed"
	"github.com/FinnSolly2/TradeQuest1/internal/ledger"
	"github.com/FinnSolly2/TradeQuest1/internal/metrics"
	"github.com/FinnSolly2/TradeQuest1/internal/model"
	"github.com/FinnSolly2/TradeQuest1/internal/symbol"
	"github.com/FinnSolly2/TradeQuest1/internal/valuation"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistoryStats reports history readiness for the status endpoint.
type HistoryStats interface {
	Stats() model.ReadinessStats
}

// Service serves the trading API. Trade execution is serialized per
// account inside the ledger; requests for different accounts never block
// each other.
type Service struct {
	ledger   *ledger.Ledger
	feed     *feed.Feed
	history  HistoryStats
	wsHub    *WSHub // optional WebSocket hub for real-time broadcasts
	validate *validator.Validate
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock used for price lookups.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new trade service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(l *ledger.Ledger, f *feed.Feed, hist HistoryStats, hub *WSHub, opts ...Option) *Service {
	s := &Service{
		ledger:   l,
		feed:     f,
		history:  hist,
		wsHub:    hub,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes mounts the API handlers on r.
func (s *Service) Routes(r chi.Router) {
	r.Post("/trade", s.ExecuteTrade)
	r.Get("/portfolio/{userID}", s.GetPortfolio)
	r.Get("/portfolio/{userID}/trades", s.GetTrades)
	r.Get("/leaderboard", s.GetLeaderboard)
	r.Get("/prices", s.GetPrices)
	r.Get("/prices/{symbol}", s.GetPrice)
	r.Get("/status", s.GetStatus)
}

// --- Request/Response types ---

// TradeRequest is the JSON body for POST /trade.
type TradeRequest struct {
	UserID   string       `json:"user_id" validate:"required,max=128"`
	Username string       `json:"username,omitempty" validate:"max=64"`
	Symbol   string       `json:"symbol" validate:"required"`
	Action   model.Action `json:"action" validate:"oneof=buy sell"`
	Quantity int64        `json:"quantity" validate:"gt=0"`
}

// StatusResponse is the JSON body returned from GET /status.
type StatusResponse struct {
	History      model.ReadinessStats `json:"history"`
	BatchVersion uint64               `json:"batch_version"`
	BatchStart   *time.Time           `json:"batch_start,omitempty"`
	BatchEnd     *time.Time           `json:"batch_end,omitempty"`
	Simulated    int                  `json:"simulated_assets"`
	Stale        bool                 `json:"stale"`
	SecondIndex  int                  `json:"second_index"`
	ServerTime   time.Time            `json:"server_time"`
}

// --- HTTP Handlers ---

// ExecuteTrade handles POST /api/v1/trade
// Executes a market order at the current feed price.
func (s *Service) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reject(w, fmt.Errorf("%w: invalid request body", model.ErrInvalidInput))
		return
	}
	req.Symbol = symbol.Normalize(req.Symbol)

	// --- Input validation ---
	if err := s.validateTrade(req); err != nil {
		s.reject(w, err)
		return
	}

	conf, err := s.ledger.ExecuteTrade(r.Context(), ledger.TradeRequest{
		UserID:   req.UserID,
		Username: req.Username,
		Symbol:   req.Symbol,
		Action:   req.Action,
		Quantity: req.Quantity,
	})
	if err != nil {
		s.reject(w, err)
		return
	}

	action := string(conf.Action)
	metrics.TradesTotal.WithLabelValues(action).Inc()
	metrics.TradeLatency.WithLabelValues(action).Observe(time.Since(start).Seconds())
	metrics.TradeVolume.WithLabelValues(conf.Symbol, action).Add(float64(conf.Quantity))

	slog.Info("trade executed",
		"trade_id", conf.TradeID,
		"user", conf.UserID,
		"symbol", conf.Symbol,
		"action", action,
		"qty", conf.Quantity,
		"price", conf.Price.String(),
		"total", conf.TotalValue.String(),
		"balance", conf.NewBalance.String(),
	)

	// Broadcast the execution via WebSocket.
	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:     MsgTradeExecuted,
			UserID:   conf.UserID,
			Symbol:   conf.Symbol,
			Action:   conf.Action,
			Quantity: conf.Quantity,
			Price:    conf.Price.String(),
		})
	}

	writeJSON(w, http.StatusOK, conf)
}

// validateTrade runs struct validation and maps field failures onto the
// matching error kinds.
func (s *Service) validateTrade(req TradeRequest) error {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			failed := make(map[string]bool, len(verrs))
			for _, fe := range verrs {
				failed[fe.Field()] = true
			}
			switch {
			case failed["Quantity"]:
				return fmt.Errorf("%w: got %d", model.ErrInvalidQuantity, req.Quantity)
			case failed["Action"]:
				return fmt.Errorf("%w: got %q", model.ErrInvalidAction, req.Action)
			default:
				fe := verrs[0]
				return fmt.Errorf("%w: %s failed %s validation", model.ErrInvalidInput, fe.Field(), fe.Tag())
			}
		}
		return fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}
	if _, err := symbol.Parse(req.Symbol); err != nil {
		return err
	}
	return nil
}

// GetPortfolio handles GET /api/v1/portfolio/{userID}
// A user that never traded gets the default view; nothing is persisted.
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	acct, err := s.ledger.Account(r.Context(), userID)
	if errors.Is(err, model.ErrNotFound) {
		writeJSON(w, http.StatusOK, valuation.DefaultPortfolio(userID))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := valuation.Portfolio(acct, s.feed, s.now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetTrades handles GET /api/v1/portfolio/{userID}/trades?limit=N
// Returns the user's trades, newest first.
func (s *Service) GetTrades(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit, err := queryLimit(r, defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	trades, err := s.ledger.History(r.Context(), userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"trades":  trades,
	})
}

// GetLeaderboard handles GET /api/v1/leaderboard?limit=N
func (s *Service) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, model.LeaderboardSize, model.LeaderboardSize)
	if err != nil {
		writeError(w, err)
		return
	}

	accounts, err := s.ledger.Accounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, valuation.Leaderboard(accounts, s.feed, s.now(), limit))
}

// GetPrices handles GET /api/v1/prices
// Returns every asset of the current batch at the current second.
func (s *Service) GetPrices(w http.ResponseWriter, r *http.Request) {
	snap, err := s.feed.Prices(s.now())
	if err != nil {
		writeErrorStatus(w, err, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetPrice handles GET /api/v1/prices/{symbol}
func (s *Service) GetPrice(w http.ResponseWriter, r *http.Request) {
	sym := symbol.Normalize(chi.URLParam(r, "symbol"))

	q, err := s.feed.CurrentPrice(sym, s.now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// GetStatus handles GET /api/v1/status
// Reports history readiness and the published batch.
func (s *Service) GetStatus(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	resp := StatusResponse{
		SecondIndex: feed.SecondIndex(now),
		ServerTime:  now,
	}
	if s.history != nil {
		resp.History = s.history.Stats()
	}
	if b := s.feed.Current(); b != nil {
		start, end := b.AnchorTime, b.EndTime()
		resp.BatchVersion = b.Version
		resp.BatchStart = &start
		resp.BatchEnd = &end
		resp.Simulated = b.Simulated()
		resp.Stale = !now.Before(end)
	}
	writeJSON(w, http.StatusOK, resp)
}

func queryLimit(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", model.ErrInvalidInput)
	}
	if n > max {
		n = max
	}
	return n, nil
}

// reject records a failed trade and writes the error.
func (s *Service) reject(w http.ResponseWriter, err error) {
	kind := model.KindOf(err)
	metrics.TradeRejections.WithLabelValues(kind).Inc()
	if kind == model.KindPersistence || kind == model.KindInternal {
		slog.Error("trade failed", "kind", kind, "err", err)
	}
	writeError(w, err)
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(kind string) int {
	switch kind {
	case model.KindInvalidInput, model.KindInvalidQuantity, model.KindInvalidAction:
		return http.StatusBadRequest
	case model.KindSymbolUnavailable, model.KindNotFound:
		return http.StatusNotFound
	case model.KindInsufficientFunds, model.KindInsufficientShares:
		return http.StatusConflict
	case model.KindPersistence, model.KindSourceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a JSON error response with the error's kind.
func writeError(w http.ResponseWriter, err error) {
	writeErrorStatus(w, err, statusFor(model.KindOf(err)))
}

func writeErrorStatus(w http.ResponseWriter, err error, status int) {
	kind := model.KindOf(err)
	msg := err.Error()
	switch kind {
	case model.KindPersistence:
		msg = "storage temporarily unavailable"
	case model.KindInternal:
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": kind, "message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

var (
	_ ledger.PriceSource    = (*feed.Feed)(nil)
	_ valuation.PriceSource = (*feed.Feed)(nil)
)
