package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested posting.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateTransaction indicates the provided client transaction identifier
	// already exists and therefore the operation should be treated as idempotent.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrAccountNotFound is returned when a posting references an unknown account code.
	ErrAccountNotFound = errors.New("ledger account not found")

	// ErrInvalidAmount rejects zero or negative postings.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrBalanceOverflow rejects postings that would take a balance outside int64.
	ErrBalanceOverflow = fmt.Errorf("%w: balance out of range", ErrInvalidAmount)
)

const (
	KindDeposit  = "deposit"
	KindTransfer = "transfer"
	KindPayout   = "payout"

	// DepositsAccountCode funds every balance addition.
	DepositsAccountCode = "external:deposits"
	// PayoutsAccountCode receives sends to keys outside the bank.
	PayoutsAccountCode = "external:payouts"

	StatusCompleted = "completed"
)

// Line types as they appear on a statement.
const (
	LineDeposit = "deposit"
	LineSend    = "send"
	LineReceive = "receive"
)

// Memo is the text attached to one side of a posting.
type Memo struct {
	Description  string
	Counterparty string
}

// Posting moves Amount from one account to another as a single transaction.
type Posting struct {
	Kind       string
	ClientTxID string
	FromCode   string
	ToCode     string
	Amount     int64
	Debit      Memo
	Credit     Memo
}

// TransactionResult captures the outcome of a ledger posting.
type TransactionResult struct {
	TransactionID string
	FromBalance   int64
	ToBalance     int64
	CreatedAt     time.Time
}

// StatementLine is one entry of an account as the account holder sees it.
type StatementLine struct {
	TransactionID string
	Type          string
	Amount        int64
	Description   string
	Counterparty  string
	CreatedAt     time.Time
}

// Ledger defines the contract implemented by ledger backends.
type Ledger interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (int64, error)
	// Post records the transaction and both entries atomically.
	Post(ctx context.Context, p Posting) (TransactionResult, error)
	// Statement lists entries for code, most recent first. limit <= 0 means all.
	Statement(ctx context.Context, code string, limit int) ([]StatementLine, error)
}

// IsSystemAccount reports whether code is a bank-side account allowed to go negative.
func IsSystemAccount(code string) bool {
	return strings.HasPrefix(code, "external:")
}

// checkRange returns ErrBalanceOverflow when moving amount would take either
// balance outside int64.
func checkRange(fromBalance, toBalance, amount int64) error {
	if toBalance > math.MaxInt64-amount || fromBalance < math.MinInt64+amount {
		return ErrBalanceOverflow
	}
	return nil
}

func lineType(kind string, amount int64) string {
	if kind == KindDeposit && amount > 0 {
		return LineDeposit
	}
	if amount < 0 {
		return LineSend
	}
	return LineReceive
}

func txKey(kind, clientTxID string) string {
	return kind + ":" + clientTxID
}
