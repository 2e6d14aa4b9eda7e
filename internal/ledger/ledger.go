// Package ledger executes market orders against trader accounts.
//
// A trade is a read-modify-write of one account. Mutations of the same
// account are serialized by a per-account lock; different accounts never
// contend. The account write is authoritative: once it succeeds the trade
// is executed, and the trade-history append that follows is best-effort.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FinnSolly2/TradeQuest1/internal/metrics"
	"github.com/FinnSolly2/TradeQuest1/internal/model"
	"github.com/FinnSolly2/TradeQuest1/internal/store"
)

// avgPriceScale is the number of decimal places kept for average cost.
// Views round it for display; the stored value keeps the full weighted
// average so cost basis does not drift across repeated buys.
const avgPriceScale int32 = 16

// DefaultStoreTimeout bounds each store call made during a trade.
const DefaultStoreTimeout = 5 * time.Second

// PriceSource resolves the current price of a symbol.
type PriceSource interface {
	Price(symbol string, now time.Time) (decimal.Decimal, error)
}

// TradeRequest is a market order.
type TradeRequest struct {
	UserID   string
	Username string
	Symbol   string
	Action   model.Action
	Quantity int64
}

// Confirmation is returned for an executed trade. RecordWarning is set
// when the account was committed but the trade-history append failed.
type Confirmation struct {
	TradeID       string          `json:"trade_id"`
	UserID        string          `json:"user_id"`
	Symbol        string          `json:"symbol"`
	Action        model.Action    `json:"action"`
	Quantity      int64           `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	TotalValue    decimal.Decimal `json:"total_value"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	Timestamp     time.Time       `json:"timestamp"`
	RecordWarning string          `json:"record_warning,omitempty"`
}

// Ledger executes trades.
type Ledger struct {
	store   store.Store
	prices  PriceSource
	locks   *keyedMutex
	now     func() time.Time
	timeout time.Duration
	newID   func() string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the wall clock used for prices and timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithStoreTimeout bounds each store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithIDGenerator overrides trade id generation.
func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) { l.newID = fn }
}

// New creates a ledger over st, pricing trades from prices.
func New(st store.Store, prices PriceSource, opts ...Option) *Ledger {
	l := &Ledger{
		store:   st,
		prices:  prices,
		locks:   newKeyedMutex(),
		now:     func() time.Time { return time.Now().UTC() },
		timeout: DefaultStoreTimeout,
		newID:   func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Validate checks a request without touching state.
func Validate(req TradeRequest) error {
	if req.Quantity <= 0 {
		return fmt.Errorf("%w: got %d", model.ErrInvalidQuantity, req.Quantity)
	}
	if !req.Action.Valid() {
		return fmt.Errorf("%w: got %q", model.ErrInvalidAction, req.Action)
	}
	if req.UserID == "" {
		return fmt.Errorf("%w: user_id is required", model.ErrInvalidInput)
	}
	if req.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", model.ErrInvalidInput)
	}
	return nil
}

// ExecuteTrade runs a market order at the feed's current price. Any error
// means the account is unchanged.
func (l *Ledger) ExecuteTrade(ctx context.Context, req TradeRequest) (*Confirmation, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	now := l.now()
	price, err := l.prices.Price(req.Symbol, now)
	if err != nil {
		return nil, err
	}

	unlock := l.locks.Lock(req.UserID)
	defer unlock()

	acct, err := l.load(ctx, req.UserID, req.Username, now)
	if err != nil {
		return nil, err
	}

	total := price.Mul(decimal.NewFromInt(req.Quantity))
	if err := apply(acct, req, price, total); err != nil {
		return nil, err
	}
	acct.TotalTrades++
	acct.UpdatedAt = now

	if err := l.put(ctx, acct); err != nil {
		return nil, err
	}

	trade := &model.Trade{
		ID:         l.newID(),
		UserID:     req.UserID,
		Timestamp:  now,
		Symbol:     req.Symbol,
		Action:     req.Action,
		Quantity:   req.Quantity,
		Price:      price,
		TotalValue: total,
	}
	conf := &Confirmation{
		TradeID:    trade.ID,
		UserID:     req.UserID,
		Symbol:     req.Symbol,
		Action:     req.Action,
		Quantity:   req.Quantity,
		Price:      price,
		TotalValue: total,
		NewBalance: acct.Balance,
		Timestamp:  now,
	}

	if err := l.record(ctx, trade); err != nil {
		metrics.TradeRecordFailures.Inc()
		slog.Warn("trade committed but not recorded",
			"trade_id", trade.ID,
			"user", req.UserID,
			"symbol", req.Symbol,
			"err", err,
		)
		conf.RecordWarning = "trade executed but history record failed: " + err.Error()
	}

	return conf, nil
}

// apply mutates acct for the order or returns an error leaving it as is.
func apply(acct *model.Account, req TradeRequest, price, total decimal.Decimal) error {
	pos, held := acct.Portfolio[req.Symbol]

	switch req.Action {
	case model.ActionBuy:
		if acct.Balance.LessThan(total) {
			return fmt.Errorf("%w: need %s, have %s", model.ErrInsufficientFunds, total, acct.Balance)
		}
		acct.Balance = acct.Balance.Sub(total)
		if held {
			oldQty := decimal.NewFromInt(pos.Quantity)
			newQty := pos.Quantity + req.Quantity
			pos.AvgPrice = pos.AvgPrice.Mul(oldQty).Add(total).
				DivRound(decimal.NewFromInt(newQty), avgPriceScale)
			pos.Quantity = newQty
		} else {
			pos = model.Position{Quantity: req.Quantity, AvgPrice: price}
		}
		acct.Portfolio[req.Symbol] = pos

	case model.ActionSell:
		if pos.Quantity < req.Quantity {
			return fmt.Errorf("%w: hold %d %s, selling %d",
				model.ErrInsufficientShares, pos.Quantity, req.Symbol, req.Quantity)
		}
		acct.Balance = acct.Balance.Add(total)
		pos.Quantity -= req.Quantity
		if pos.Quantity == 0 {
			delete(acct.Portfolio, req.Symbol)
		} else {
			acct.Portfolio[req.Symbol] = pos
		}
	}
	return nil
}

// Account returns the stored account, or model.ErrNotFound.
func (l *Ledger) Account(ctx context.Context, userID string) (*model.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	acct, err := l.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, asPersistence(err)
	}
	return acct, nil
}

// Accounts returns every stored account.
func (l *Ledger) Accounts(ctx context.Context) ([]model.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	accts, err := l.store.ScanAccounts(ctx)
	if err != nil {
		return nil, asPersistence(err)
	}
	return accts, nil
}

// History returns a user's trades, newest first.
func (l *Ledger) History(ctx context.Context, userID string, limit int) ([]model.Trade, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	trades, err := l.store.TradesByUser(ctx, userID, limit)
	if err != nil {
		return nil, asPersistence(err)
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	return trades, nil
}

// load reads the authoritative account for a trade, creating it on first
// touch. It never goes through a read cache.
func (l *Ledger) load(ctx context.Context, userID, username string, now time.Time) (*model.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	acct, err := l.store.GetAccountForUpdate(ctx, userID)
	err = asPersistence(err)
	if errors.Is(err, model.ErrNotFound) {
		return model.NewAccount(userID, username, now), nil
	}
	if err != nil {
		return nil, err
	}
	if acct.Portfolio == nil {
		acct.Portfolio = make(map[string]model.Position)
	}
	return acct, nil
}

func (l *Ledger) put(ctx context.Context, acct *model.Account) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return asPersistence(l.store.PutAccount(ctx, acct))
}

func (l *Ledger) record(ctx context.Context, t *model.Trade) error {
	// The account is already committed; a cancelled request must not
	// skip the history append.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()
	return l.store.InsertTrade(ctx, t)
}

// asPersistence makes sure any store failure other than a missing record
// carries model.ErrPersistence.
func asPersistence(err error) error {
	if err == nil || errors.Is(err, model.ErrPersistence) || errors.Is(err, model.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrPersistence, err)
}
