package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/FinnSolly2/TradeQuest1/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*model.Account
	trades   []model.Trade
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*model.Account),
	}
}

func (s *MemoryStore) GetAccount(_ context.Context, userID string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[userID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", userID, model.ErrNotFound)
	}
	return a.Clone(), nil
}

func (s *MemoryStore) GetAccountForUpdate(ctx context.Context, userID string) (*model.Account, error) {
	return s.GetAccount(ctx, userID)
}

func (s *MemoryStore) PutAccount(_ context.Context, acct *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	s.accounts[acct.UserID] = acct.Clone()
	return nil
}

func (s *MemoryStore) ScanAccounts(_ context.Context) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]model.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, *a.Clone())
	}
	return accounts, nil
}

func (s *MemoryStore) InsertTrade(_ context.Context, t *model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = append(s.trades, *t)
	return nil
}

func (s *MemoryStore) TradesByUser(_ context.Context, userID string, limit int) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Trade
	for _, t := range s.trades {
		if t.UserID == userID {
			result = append(result, t)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MemoryObjects implements Objects with a map.
type MemoryObjects struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryObjects creates an empty in-memory blob store.
func NewMemoryObjects() *MemoryObjects {
	return &MemoryObjects{data: make(map[string][]byte)}
}

func (o *MemoryObjects) Get(_ context.Context, key string) ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	b, ok := o.data[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, model.ErrNotFound)
	}
	return append([]byte(nil), b...), nil
}

func (o *MemoryObjects) Put(_ context.Context, key string, data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.data[key] = append([]byte(nil), data...)
	return nil
}

// Keys lists stored keys in lexical order.
func (o *MemoryObjects) Keys() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	keys := make([]string, 0, len(o.data))
	for k := range o.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
