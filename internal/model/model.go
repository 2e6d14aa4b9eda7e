// Package model defines the core domain types shared across the market engine.
// All monetary values use shopspring/decimal; float64 is only used inside
// the statistics and simulation math before prices are rounded to PriceScale.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// WindowSize is the number of one-minute quotes kept per asset.
	WindowSize = 60

	// BatchSeconds is the length of one simulated path, one price per second.
	BatchSeconds = 600

	// PriceScale is the number of decimal places kept for feed prices.
	PriceScale int32 = 4

	// LeaderboardSize caps the number of ranked entries returned.
	LeaderboardSize = 100
)

// InitialBalance is the cash every account starts with, and the fixed
// investment profit/loss is measured against.
var InitialBalance = decimal.NewFromInt(100000)

// Quote is one tick returned by a quote source.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Open          float64   `json:"open"`
	PreviousClose float64   `json:"previous_close"`
	Timestamp     time.Time `json:"timestamp"`
}

// QuotePoint is a recorded quote inside an asset's rolling window.
// Immutable once recorded.
type QuotePoint struct {
	Timestamp     time.Time `json:"timestamp"`
	Price         float64   `json:"price"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Open          float64   `json:"open"`
	PreviousClose float64   `json:"previous_close"`
}

// PointFromQuote converts a fetched quote to a window point.
func PointFromQuote(q Quote) QuotePoint {
	return QuotePoint{
		Timestamp:     q.Timestamp,
		Price:         q.Price,
		High:          q.High,
		Low:           q.Low,
		Open:          q.Open,
		PreviousClose: q.PreviousClose,
	}
}

// AssetHistory is the persisted form of one symbol's window, oldest first.
type AssetHistory struct {
	Symbol string       `json:"symbol"`
	Points []QuotePoint `json:"data_points"`
}

// HistorySnapshot is the blob persisted by the history collector.
type HistorySnapshot struct {
	UpdatedAt time.Time               `json:"last_updated"`
	Assets    map[string]AssetHistory `json:"assets"`
	Stats     ReadinessStats          `json:"stats"`
}

// ReadinessStats summarizes how many tracked symbols have a full window.
type ReadinessStats struct {
	TotalAssets int  `json:"total_assets"`
	FullWindows int  `json:"assets_with_full_hour"`
	Ready       bool `json:"ready_for_simulation"`
}

// Statistics are the parameters estimated from a close series.
type Statistics struct {
	MeanReturn float64 `json:"historical_mean_return"`
	Volatility float64 `json:"historical_volatility"`
	Trend      float64 `json:"historical_trend"`
	LastPrice  float64 `json:"historical_last_price"`
}

// PricePoint is one second of a simulated path.
type PricePoint struct {
	Second    int             `json:"second"`
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

// PathSummary describes a simulated path as a whole.
type PathSummary struct {
	StartPrice          decimal.Decimal `json:"start_price"`
	EndPrice            decimal.Decimal `json:"end_price"`
	PeriodHigh          decimal.Decimal `json:"period_high"`
	PeriodLow           decimal.Decimal `json:"period_low"`
	PeriodChange        decimal.Decimal `json:"period_change"`
	PeriodChangePercent decimal.Decimal `json:"period_change_percent"`
}

// AssetPath is one asset's entry in a batch.
type AssetPath struct {
	Symbol  string       `json:"symbol"`
	Points  []PricePoint `json:"seconds"`
	Summary PathSummary  `json:"summary"`
	BasedOn Statistics   `json:"based_on"`
}

// Batch is a complete simulated price feed for every tracked asset.
// A nil entry in Assets means the asset could not be simulated.
// Batches are immutable once published.
type Batch struct {
	Version    uint64                `json:"version"`
	AnchorTime time.Time             `json:"start_timestamp"`
	CreatedAt  time.Time             `json:"created_at"`
	Assets     map[string]*AssetPath `json:"assets"`
}

// EndTime is the first instant not covered by the batch.
func (b *Batch) EndTime() time.Time {
	return b.AnchorTime.Add(BatchSeconds * time.Second)
}

// Simulated counts assets with a usable path.
func (b *Batch) Simulated() int {
	n := 0
	for _, a := range b.Assets {
		if a != nil {
			n++
		}
	}
	return n
}

// Action is the side of a market order.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Valid reports whether a is a supported action.
func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// Position is a holding in one asset. Quantity is always positive;
// a position that reaches zero is removed from the portfolio.
type Position struct {
	Quantity int64           `json:"quantity"`
	AvgPrice decimal.Decimal `json:"avg_price"`
}

// Account is a trader's cash and holdings.
type Account struct {
	UserID      string              `json:"user_id"`
	Username    string              `json:"username"`
	Balance     decimal.Decimal     `json:"balance"`
	Portfolio   map[string]Position `json:"portfolio"`
	TotalTrades int64               `json:"total_trades"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// NewAccount returns a fresh account funded with InitialBalance.
// Username defaults to the first 8 characters of the user id.
func NewAccount(userID, username string, now time.Time) *Account {
	if username == "" {
		username = userID
		if len(username) > 8 {
			username = username[:8]
		}
	}
	return &Account{
		UserID:    userID,
		Username:  username,
		Balance:   InitialBalance,
		Portfolio: make(map[string]Position),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (a *Account) Clone() *Account {
	c := *a
	c.Portfolio = make(map[string]Position, len(a.Portfolio))
	for k, v := range a.Portfolio {
		c.Portfolio[k] = v
	}
	return &c
}

// Trade is an immutable record of an executed order.
// Once created, these are never modified or deleted.
type Trade struct {
	ID         string          `json:"trade_id"`
	UserID     string          `json:"user_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Symbol     string          `json:"symbol"`
	Action     Action          `json:"action"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// PositionView is a valued position in a portfolio response.
type PositionView struct {
	Symbol            string          `json:"symbol"`
	Quantity          int64           `json:"quantity"`
	AvgPrice          decimal.Decimal `json:"avg_price"`
	CurrentPrice      decimal.Decimal `json:"current_price"`
	MarketValue       decimal.Decimal `json:"market_value"`
	CostBasis         decimal.Decimal `json:"cost_basis"`
	ProfitLoss        decimal.Decimal `json:"profit_loss"`
	ProfitLossPercent decimal.Decimal `json:"profit_loss_percent"`
}

// Portfolio aggregates an account's positions with P&L.
type Portfolio struct {
	UserID            string          `json:"user_id"`
	Balance           decimal.Decimal `json:"balance"`
	PortfolioValue    decimal.Decimal `json:"portfolio_value"`
	TotalValue        decimal.Decimal `json:"total_value"`
	ProfitLoss        decimal.Decimal `json:"total_profit_loss"`
	ProfitLossPercent decimal.Decimal `json:"total_profit_loss_percent"`
	TotalTrades       int64           `json:"total_trades"`
	Positions         []PositionView  `json:"positions"`
}

// LeaderboardEntry is a derived ranking row; never persisted.
type LeaderboardEntry struct {
	Rank              int             `json:"rank"`
	UserID            string          `json:"user_id"`
	Username          string          `json:"username"`
	TotalValue        decimal.Decimal `json:"total_value"`
	ProfitLoss        decimal.Decimal `json:"profit_loss"`
	ProfitLossPercent decimal.Decimal `json:"profit_loss_percent"`
	TotalTrades       int64           `json:"total_trades"`
	Balance           decimal.Decimal `json:"balance"`
	PortfolioValue    decimal.Decimal `json:"portfolio_value"`
}

// Leaderboard is the ranked view over all accounts.
type Leaderboard struct {
	Entries    []LeaderboardEntry `json:"leaderboard"`
	TotalUsers int                `json:"total_users"`
}
