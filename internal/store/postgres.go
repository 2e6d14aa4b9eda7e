package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/FinnSolly2/TradeQuest1/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	user_id      TEXT PRIMARY KEY,
	username     TEXT NOT NULL,
	balance      NUMERIC NOT NULL,
	portfolio    JSONB NOT NULL DEFAULT '{}',
	total_trades BIGINT NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	action      TEXT NOT NULL,
	quantity    BIGINT NOT NULL,
	price       NUMERIC NOT NULL,
	total_value NUMERIC NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS trades_user_ts ON trades (user_id, timestamp DESC);

CREATE TABLE IF NOT EXISTS objects (
	key        TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// InitSchema creates the tables used by PostgresStore and PostgresObjects.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%w: init schema: %w", model.ErrPersistence, err)
	}
	return nil
}

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Monetary values are stored as NUMERIC; the portfolio map is JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetAccount(ctx context.Context, userID string) (*model.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT user_id, username, balance::TEXT, portfolio::TEXT,
		        total_trades, created_at, updated_at
		 FROM accounts WHERE user_id = $1`, userID)

	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", userID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get account %s: %w", model.ErrPersistence, userID, err)
	}
	return a, nil
}

// GetAccountForUpdate is GetAccount: the table is the source of truth.
func (s *PostgresStore) GetAccountForUpdate(ctx context.Context, userID string) (*model.Account, error) {
	return s.GetAccount(ctx, userID)
}

func (s *PostgresStore) PutAccount(ctx context.Context, a *model.Account) error {
	portfolio, err := json.Marshal(a.Portfolio)
	if err != nil {
		return fmt.Errorf("%w: encode portfolio: %w", model.ErrPersistence, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO accounts (user_id, username, balance, portfolio, total_trades, created_at, updated_at)
		 VALUES ($1, $2, $3::NUMERIC, $4::JSONB, $5, $6, $7)
		 ON CONFLICT (user_id) DO UPDATE
		 SET username = EXCLUDED.username,
		     balance = EXCLUDED.balance,
		     portfolio = EXCLUDED.portfolio,
		     total_trades = EXCLUDED.total_trades,
		     updated_at = EXCLUDED.updated_at`,
		a.UserID, a.Username, a.Balance.String(), string(portfolio),
		a.TotalTrades, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: put account %s: %w", model.ErrPersistence, a.UserID, err)
	}
	return nil
}

func (s *PostgresStore) ScanAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, username, balance::TEXT, portfolio::TEXT,
		        total_trades, created_at, updated_at
		 FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("%w: scan accounts: %w", model.ErrPersistence, err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan accounts: %w", model.ErrPersistence, err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan accounts: %w", model.ErrPersistence, err)
	}
	return accounts, nil
}

func (s *PostgresStore) InsertTrade(ctx context.Context, t *model.Trade) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trades (id, user_id, symbol, action, quantity, price, total_value, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8)`,
		t.ID, t.UserID, t.Symbol, string(t.Action), t.Quantity,
		t.Price.String(), t.TotalValue.String(), t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("%w: insert trade %s: %w", model.ErrPersistence, t.ID, err)
	}
	return nil
}

func (s *PostgresStore) TradesByUser(ctx context.Context, userID string, limit int) ([]model.Trade, error) {
	query := `SELECT id, user_id, symbol, action, quantity,
	                 price::TEXT, total_value::TEXT, timestamp
	          FROM trades WHERE user_id = $1 ORDER BY timestamp DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: trades for %s: %w", model.ErrPersistence, userID, err)
	}
	defer rows.Close()

	trades, err := scanTrades(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: trades for %s: %w", model.ErrPersistence, userID, err)
	}
	return trades, nil
}

// PostgresObjects implements Objects on the objects table.
type PostgresObjects struct {
	pool *pgxpool.Pool
}

// NewPostgresObjects creates a PostgreSQL-backed blob store.
func NewPostgresObjects(pool *pgxpool.Pool) *PostgresObjects {
	return &PostgresObjects{pool: pool}
}

func (o *PostgresObjects) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := o.pool.QueryRow(ctx, `SELECT data FROM objects WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("object %s: %w", key, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get object %s: %w", model.ErrPersistence, key, err)
	}
	return data, nil
}

func (o *PostgresObjects) Put(ctx context.Context, key string, data []byte) error {
	_, err := o.pool.Exec(ctx,
		`INSERT INTO objects (key, data, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		key, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: put object %s: %w", model.ErrPersistence, key, err)
	}
	return nil
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var a model.Account
	var balanceS, portfolioS string

	if err := row.Scan(&a.UserID, &a.Username, &balanceS, &portfolioS,
		&a.TotalTrades, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}

	balance, err := decimal.NewFromString(balanceS)
	if err != nil {
		return nil, fmt.Errorf("balance %q: %w", balanceS, err)
	}
	a.Balance = balance

	a.Portfolio = make(map[string]model.Position)
	if err := json.Unmarshal([]byte(portfolioS), &a.Portfolio); err != nil {
		return nil, fmt.Errorf("portfolio: %w", err)
	}
	return &a, nil
}

// pgxRows is the subset of pgx.Rows used by scanTrades.
type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanTrades(rows pgxRows) ([]model.Trade, error) {
	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		var action, priceS, totalS string

		if err := rows.Scan(&t.ID, &t.UserID, &t.Symbol, &action, &t.Quantity,
			&priceS, &totalS, &t.Timestamp); err != nil {
			return nil, err
		}

		t.Action = model.Action(action)
		var err error
		if t.Price, err = decimal.NewFromString(priceS); err != nil {
			return nil, fmt.Errorf("trade %s price %q: %w", t.ID, priceS, err)
		}
		if t.TotalValue, err = decimal.NewFromString(totalS); err != nil {
			return nil, fmt.Errorf("trade %s total %q: %w", t.ID, totalS, err)
		}

		trades = append(trades, t)
	}
	return trades, rows.Err()
}
