package earnings

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/frizbank/frizbank/internal/kv"
)

// Store keeps earnings state in the key-value store under the per-user keys.
type Store struct {
	kv     kv.Store
	logger *slog.Logger
}

func NewStore(store kv.Store, logger *slog.Logger) *Store {
	return &Store{kv: store, logger: logger}
}

// Load returns the saved state for email. Missing or malformed keys start empty.
func (s *Store) Load(ctx context.Context, email string) (State, error) {
	var st State
	if _, err := kv.GetJSON(ctx, s.kv, s.logger, kv.EarningsKey(email), &st.Earnings); err != nil {
		return State{}, fmt.Errorf("load earnings: %w", err)
	}
	if _, err := kv.GetJSON(ctx, s.kv, s.logger, kv.EarningsHistoryKey(email), &st.History); err != nil {
		return State{}, fmt.Errorf("load earnings history: %w", err)
	}
	if _, err := kv.GetJSON(ctx, s.kv, s.logger, kv.LastCryptoPricesKey(email), &st.LastPrices); err != nil {
		return State{}, fmt.Errorf("load last prices: %w", err)
	}
	if st.LastPrices == nil {
		st.LastPrices = map[string]float64{}
	}
	return st, nil
}

// Save writes the state together with a snapshot of the balance it was
// computed from, all in one SetMany.
func (s *Store) Save(ctx context.Context, email string, st State, balance float64) error {
	b := kv.Batch{}
	if err := b.Put(kv.EarningsKey(email), st.Earnings); err != nil {
		return err
	}
	history := st.History
	if history == nil {
		history = []HistoryEntry{}
	}
	if err := b.Put(kv.EarningsHistoryKey(email), history); err != nil {
		return err
	}
	if err := b.Put(kv.LastCryptoPricesKey(email), st.LastPrices); err != nil {
		return err
	}
	b[kv.BalanceKey(email)] = strconv.FormatFloat(balance, 'f', 2, 64)
	return s.kv.SetMany(ctx, b)
}
