// Package earnings simulates returns on a balance from crypto price moves.
// The balance is treated as spread evenly across the quoted coins; nothing
// is actually invested.
package earnings

import (
	"time"

	"github.com/frizbank/frizbank/internal/market"
)

// HistoryLimit is the number of accruals kept per user.
const HistoryLimit = 30

// HistoryEntry is one non-zero accrual, in the base currency.
type HistoryEntry struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// State is what is persisted per user.
type State struct {
	Earnings   float64
	History    []HistoryEntry
	LastPrices map[string]float64
}

// Accrue applies one round of price changes to state. For each quote with
// a previously seen price, the balance share allotted to it earns the
// relative price change. Every quote's price is recorded for the next round.
// It returns the new state and the amount accrued.
func Accrue(state State, balance float64, quotes []market.Quote, now time.Time) (State, float64) {
	next := State{
		Earnings:   state.Earnings,
		History:    append([]HistoryEntry(nil), state.History...),
		LastPrices: make(map[string]float64, len(state.LastPrices)+len(quotes)),
	}
	for id, p := range state.LastPrices {
		next.LastPrices[id] = p
	}
	if len(quotes) == 0 {
		return next, 0
	}

	share := balance / float64(len(quotes))
	var accrued float64
	for _, q := range quotes {
		if prev := next.LastPrices[q.ID]; prev != 0 {
			deltaPct := (q.CurrentPrice - prev) / prev * 100
			accrued += share * deltaPct / 100
		}
		next.LastPrices[q.ID] = q.CurrentPrice
	}

	if accrued != 0 {
		next.Earnings += accrued
		next.History = append(next.History, HistoryEntry{Date: now.UTC(), Amount: accrued})
		if len(next.History) > HistoryLimit {
			next.History = next.History[len(next.History)-HistoryLimit:]
		}
	}
	return next, accrued
}

// TotalReturn is cumulative earnings as a percentage of balance, 0 for an empty balance.
func (s State) TotalReturn(balance float64) float64 {
	if balance <= 0 {
		return 0
	}
	return s.Earnings / balance * 100
}

// WeeklyChange compares the average of the last seven accruals with the
// seven before them. ok is false when there is nothing to compare against.
func (s State) WeeklyChange() (change float64, ok bool) {
	n := len(s.History)
	if n < 2 {
		return 0, false
	}
	last := s.History[max(0, n-7):]
	prev := s.History[max(0, n-14):max(0, n-7)]
	if len(prev) == 0 {
		return 0, false
	}
	prevAvg := average(prev)
	if prevAvg <= 0 {
		return 0, false
	}
	return (average(last) - prevAvg) / prevAvg * 100, true
}

func average(entries []HistoryEntry) float64 {
	var sum float64
	for _, e := range entries {
		sum += e.Amount
	}
	return sum / float64(len(entries))
}
