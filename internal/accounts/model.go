package accounts

import (
	"errors"
	"time"

	"github.com/frizbank/frizbank/internal/ledger"
)

var (
	ErrNotFound      = errors.New("account not found")
	ErrAccountExists = errors.New("user already has an account")
	ErrForbidden     = errors.New("account belongs to another user")
)

// Account is a customer's stored-value account backed by the ledger.
type Account struct {
	ID          string
	OwnerID     string
	AccountCode string
	Currency    string
	Status      string
	CreatedAt   time.Time
}

// Balance encapsulates available funds for an account, in minor units.
type Balance struct {
	AccountID string
	Amount    int64
	Currency  string
	AsOf      time.Time
}

// Statement is a balance together with its most recent transactions.
type Statement struct {
	Balance Balance
	Lines   []ledger.StatementLine
}
