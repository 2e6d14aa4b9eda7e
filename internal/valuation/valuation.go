// Package valuation marks accounts to the current feed and ranks them.
package valuation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FinnSolly2/TradeQuest1/internal/model"
)

// percentScale is the number of decimal places kept for percentages.
const percentScale int32 = 2

var hundred = decimal.NewFromInt(100)

// PriceSource resolves the current price of a symbol.
type PriceSource interface {
	Price(symbol string, now time.Time) (decimal.Decimal, error)
}

// PortfolioValue sums quantity × current price over held positions. In
// strict mode an unresolvable symbol fails the call; otherwise it
// contributes zero.
func PortfolioValue(acct *model.Account, prices PriceSource, now time.Time, strict bool) (decimal.Decimal, error) {
	total := decimal.Zero
	for sym, pos := range acct.Portfolio {
		p, err := prices.Price(sym, now)
		if err != nil {
			if strict {
				return decimal.Zero, err
			}
			continue
		}
		total = total.Add(p.Mul(decimal.NewFromInt(pos.Quantity)))
	}
	return total, nil
}

// ProfitLoss returns totalValue − InitialBalance and the matching percentage.
func ProfitLoss(totalValue decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	pl := totalValue.Sub(model.InitialBalance)
	return pl, pl.Div(model.InitialBalance).Mul(hundred).Round(percentScale)
}

// Portfolio builds the detailed view of acct. Every held symbol must
// resolve. Positions are sorted by market value, largest first.
func Portfolio(acct *model.Account, prices PriceSource, now time.Time) (*model.Portfolio, error) {
	views := make([]model.PositionView, 0, len(acct.Portfolio))
	value := decimal.Zero

	for sym, pos := range acct.Portfolio {
		price, err := prices.Price(sym, now)
		if err != nil {
			return nil, err
		}
		qty := decimal.NewFromInt(pos.Quantity)
		mv := price.Mul(qty)
		cost := pos.AvgPrice.Mul(qty).Round(model.PriceScale)
		pl := mv.Sub(cost)

		v := model.PositionView{
			Symbol:            sym,
			Quantity:          pos.Quantity,
			AvgPrice:          pos.AvgPrice.Round(model.PriceScale),
			CurrentPrice:      price,
			MarketValue:       mv,
			CostBasis:         cost,
			ProfitLoss:        pl,
			ProfitLossPercent: decimal.Zero,
		}
		if cost.IsPositive() {
			v.ProfitLossPercent = pl.Div(cost).Mul(hundred).Round(percentScale)
		}
		views = append(views, v)
		value = value.Add(mv)
	}

	sort.Slice(views, func(i, j int) bool {
		if c := views[i].MarketValue.Cmp(views[j].MarketValue); c != 0 {
			return c > 0
		}
		return views[i].Symbol < views[j].Symbol
	})

	total := acct.Balance.Add(value)
	pl, plPct := ProfitLoss(total)
	return &model.Portfolio{
		UserID:            acct.UserID,
		Balance:           acct.Balance,
		PortfolioValue:    value,
		TotalValue:        total,
		ProfitLoss:        pl,
		ProfitLossPercent: plPct,
		TotalTrades:       acct.TotalTrades,
		Positions:         views,
	}, nil
}

// DefaultPortfolio is the view of a user who has never traded. It is not
// persisted.
func DefaultPortfolio(userID string) *model.Portfolio {
	return &model.Portfolio{
		UserID:            userID,
		Balance:           model.InitialBalance,
		PortfolioValue:    decimal.Zero,
		TotalValue:        model.InitialBalance,
		ProfitLoss:        decimal.Zero,
		ProfitLossPercent: decimal.Zero,
		Positions:         []model.PositionView{},
	}
}

// Leaderboard ranks accounts by profit/loss, highest first, ties broken by
// ascending user id. limit <= 0 selects model.LeaderboardSize. TotalUsers
// counts every account, ranked or not.
func Leaderboard(accounts []model.Account, prices PriceSource, now time.Time, limit int) model.Leaderboard {
	if limit <= 0 {
		limit = model.LeaderboardSize
	}

	entries := make([]model.LeaderboardEntry, 0, len(accounts))
	for i := range accounts {
		a := &accounts[i]
		value, _ := PortfolioValue(a, prices, now, false)
		total := a.Balance.Add(value)
		pl, plPct := ProfitLoss(total)

		entries = append(entries, model.LeaderboardEntry{
			UserID:            a.UserID,
			Username:          a.Username,
			TotalValue:        total,
			ProfitLoss:        pl,
			ProfitLossPercent: plPct,
			TotalTrades:       a.TotalTrades,
			Balance:           a.Balance,
			PortfolioValue:    value,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if c := entries[i].ProfitLoss.Cmp(entries[j].ProfitLoss); c != 0 {
			return c > 0
		}
		return entries[i].UserID < entries[j].UserID
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	return model.Leaderboard{Entries: entries, TotalUsers: len(accounts)}
}
