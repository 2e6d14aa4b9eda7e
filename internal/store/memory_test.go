package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FinnSolly2/TradeQuest1/internal/model"
)

func TestMemoryStoreAccountCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

	if _, err := s.GetAccount(ctx, "u1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	a := model.NewAccount("u1", "", now)
	a.Portfolio["AAPL"] = model.Position{Quantity: 10, AvgPrice: decimal.NewFromInt(150)}
	if err := s.PutAccount(ctx, a); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	a.Portfolio["AAPL"] = model.Position{Quantity: 99}
	a.Balance = decimal.Zero

	got, err := s.GetAccount(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Portfolio["AAPL"].Quantity != 10 {
		t.Errorf("expected stored quantity 10, got %d", got.Portfolio["AAPL"].Quantity)
	}
	if !got.Balance.Equal(model.InitialBalance) {
		t.Errorf("expected balance %s, got %s", model.InitialBalance, got.Balance)
	}

	all, _ := s.ScanAccounts(ctx)
	if len(all) != 1 {
		t.Fatalf("expected 1 account, got %d", len(all))
	}
}

func TestMemoryStoreTradesNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

	for i, id := range []string{"t1", "t2", "t3"} {
		_ = s.InsertTrade(ctx, &model.Trade{ID: id, UserID: "u1", Timestamp: base.Add(time.Duration(i) * time.Second)})
	}
	_ = s.InsertTrade(ctx, &model.Trade{ID: "other", UserID: "u2", Timestamp: base})

	trades, _ := s.TradesByUser(ctx, "u1", 0)
	if len(trades) != 3 || trades[0].ID != "t3" || trades[2].ID != "t1" {
		t.Fatalf("unexpected order: %+v", trades)
	}

	trades, _ = s.TradesByUser(ctx, "u1", 2)
	if len(trades) != 2 || trades[0].ID != "t3" {
		t.Fatalf("limit not applied: %+v", trades)
	}
}

func TestMemoryObjects(t *testing.T) {
	o := NewMemoryObjects()
	ctx := context.Background()

	if _, err := o.Get(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	buf := []byte("hello")
	_ = o.Put(ctx, "b", buf)
	_ = o.Put(ctx, "a", []byte("x"))
	buf[0] = 'j'

	got, err := o.Get(ctx, "b")
	if err != nil || string(got) != "hello" {
		t.Fatalf("got %q, %v", got, err)
	}
	if keys := o.Keys(); len(keys) != 2 || keys[0] != "a" {
		t.Fatalf("unexpected keys %v", keys)
	}
}
