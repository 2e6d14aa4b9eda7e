// Package store defines the persistence interfaces for the trading engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache and blob store), and in-memory (for testing and development).
package store

import (
	"context"

	"github.com/FinnSolly2/TradeQuest1/internal/model"
)

// Store is the account and trade persistence interface. Every backend
// failure wraps model.ErrPersistence; a missing account is model.ErrNotFound.
type Store interface {
	// --- Accounts ---

	// GetAccount retrieves an account by user id. Cached implementations
	// may serve a slightly stale copy.
	GetAccount(ctx context.Context, userID string) (*model.Account, error)

	// GetAccountForUpdate reads the authoritative record, bypassing any
	// cache. Read-modify-write callers must use it.
	GetAccountForUpdate(ctx context.Context, userID string) (*model.Account, error)

	// PutAccount writes the full account record, replacing any previous one.
	PutAccount(ctx context.Context, acct *model.Account) error

	// ScanAccounts returns every account.
	ScanAccounts(ctx context.Context) ([]model.Account, error)

	// --- Immutable trade history ---

	// InsertTrade appends an immutable trade record.
	InsertTrade(ctx context.Context, trade *model.Trade) error

	// TradesByUser returns a user's trades, newest first. limit <= 0 means all.
	TradesByUser(ctx context.Context, userID string, limit int) ([]model.Trade, error)
}

// Objects is a key/blob store for the history snapshot and simulated
// batches. Get returns model.ErrNotFound for missing keys.
type Objects interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}
