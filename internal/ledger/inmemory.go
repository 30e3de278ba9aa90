package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	line StatementLine
	seq  int
}

type inMemoryLedger struct {
	mu           sync.RWMutex
	balances     map[string]int64
	entries      map[string][]memoryEntry
	transactions map[string]TransactionResult
	seq          int
	now          func() time.Time
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests
// and for running the API without PostgreSQL.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances:     make(map[string]int64),
		entries:      make(map[string][]memoryEntry),
		transactions: make(map[string]TransactionResult),
		now:          time.Now,
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[code]; !exists {
		l.balances[code] = 0
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, code string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, exists := l.balances[code]
	if !exists {
		return 0, ErrAccountNotFound
	}
	return balance, nil
}

func (l *inMemoryLedger) Post(_ context.Context, p Posting) (TransactionResult, error) {
	if p.Amount <= 0 {
		return TransactionResult{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := txKey(p.Kind, p.ClientTxID)
	if res, exists := l.transactions[key]; exists {
		return res, ErrDuplicateTransaction
	}

	fromBalance, ok := l.balances[p.FromCode]
	if !ok {
		return TransactionResult{}, ErrAccountNotFound
	}
	toBalance, ok := l.balances[p.ToCode]
	if !ok {
		return TransactionResult{}, ErrAccountNotFound
	}
	if !IsSystemAccount(p.FromCode) && fromBalance < p.Amount {
		return TransactionResult{}, ErrInsufficientFunds
	}
	if err := checkRange(fromBalance, toBalance, p.Amount); err != nil {
		return TransactionResult{}, err
	}

	fromBalance -= p.Amount
	toBalance += p.Amount
	l.balances[p.FromCode] = fromBalance
	l.balances[p.ToCode] = toBalance

	now := l.now().UTC()
	txID := uuid.NewString()
	l.appendLine(p.FromCode, StatementLine{
		TransactionID: txID,
		Type:          lineType(p.Kind, -p.Amount),
		Amount:        -p.Amount,
		Description:   p.Debit.Description,
		Counterparty:  p.Debit.Counterparty,
		CreatedAt:     now,
	})
	l.appendLine(p.ToCode, StatementLine{
		TransactionID: txID,
		Type:          lineType(p.Kind, p.Amount),
		Amount:        p.Amount,
		Description:   p.Credit.Description,
		Counterparty:  p.Credit.Counterparty,
		CreatedAt:     now,
	})

	res := TransactionResult{
		TransactionID: txID,
		FromBalance:   fromBalance,
		ToBalance:     toBalance,
		CreatedAt:     now,
	}
	l.transactions[key] = res
	return res, nil
}

func (l *inMemoryLedger) appendLine(code string, line StatementLine) {
	l.seq++
	l.entries[code] = append(l.entries[code], memoryEntry{line: line, seq: l.seq})
}

func (l *inMemoryLedger) Statement(_ context.Context, code string, limit int) ([]StatementLine, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, exists := l.balances[code]; !exists {
		return nil, ErrAccountNotFound
	}

	entries := append([]memoryEntry(nil), l.entries[code]...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq > entries[j].seq })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	lines := make([]StatementLine, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.line)
	}
	return lines, nil
}
