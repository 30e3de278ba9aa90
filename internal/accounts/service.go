package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/frizbank/frizbank/internal/ledger"
)

const (
	statusActive = "active"

	// BaseCurrency is the currency every balance is held in.
	BaseCurrency = "USD"

	// RecentLimit is the number of transactions shown on the dashboard.
	RecentLimit = 10
)

// Service exposes account operations backed by the ledger.
type Service struct {
	repo   Repository
	ledger ledger.Ledger
	now    func() time.Time
}

// NewService builds an account service instance.
func NewService(repo Repository, ledger ledger.Ledger) *Service {
	return &Service{repo: repo, ledger: ledger, now: time.Now}
}

// Create provisions an account and its ledger account for ownerID.
func (s *Service) Create(ctx context.Context, ownerID string) (Account, error) {
	if _, err := uuid.Parse(ownerID); err != nil {
		return Account{}, fmt.Errorf("invalid owner id: %w", err)
	}

	accountID := uuid.New().String()
	accountCode := fmt.Sprintf("account:%s", accountID)
	if err := s.ledger.EnsureAccount(ctx, accountCode); err != nil {
		return Account{}, err
	}

	account := Account{
		ID:          accountID,
		OwnerID:     ownerID,
		AccountCode: accountCode,
		Currency:    BaseCurrency,
		Status:      statusActive,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return Account{}, err
	}
	return account, nil
}

// EnsureForOwner returns the owner's account, creating it on first use.
func (s *Service) EnsureForOwner(ctx context.Context, ownerID string) (Account, error) {
	account, err := s.repo.GetByOwner(ctx, ownerID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Account{}, err
	}
	account, err = s.Create(ctx, ownerID)
	if errors.Is(err, ErrAccountExists) {
		return s.repo.GetByOwner(ctx, ownerID)
	}
	return account, err
}

// Get retrieves account metadata.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.repo.Get(ctx, strings.TrimSpace(id))
}

// GetByOwner retrieves the account held by ownerID.
func (s *Service) GetByOwner(ctx context.Context, ownerID string) (Account, error) {
	return s.repo.GetByOwner(ctx, ownerID)
}

// Owned returns the account when it belongs to ownerID.
func (s *Service) Owned(ctx context.Context, id, ownerID string) (Account, error) {
	account, err := s.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if account.OwnerID != ownerID {
		return Account{}, ErrForbidden
	}
	return account, nil
}

// Balance returns the ledger balance for the account.
func (s *Service) Balance(ctx context.Context, id string) (Balance, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	amount, err := s.ledger.Balance(ctx, account.AccountCode)
	if err != nil {
		return Balance{}, err
	}
	return Balance{AccountID: account.ID, Amount: amount, Currency: account.Currency, AsOf: s.now().UTC()}, nil
}

// Statement returns the balance and up to limit recent transactions, newest first.
func (s *Service) Statement(ctx context.Context, id string, limit int) (Statement, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return Statement{}, err
	}
	amount, err := s.ledger.Balance(ctx, account.AccountCode)
	if err != nil {
		return Statement{}, err
	}
	lines, err := s.ledger.Statement(ctx, account.AccountCode, limit)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Balance: Balance{AccountID: account.ID, Amount: amount, Currency: account.Currency, AsOf: s.now().UTC()},
		Lines:   lines,
	}, nil
}

// BalanceByOwner returns the balance of ownerID's account in minor units.
// Owners without an account hold nothing.
func (s *Service) BalanceByOwner(ctx context.Context, ownerID string) (int64, error) {
	account, err := s.repo.GetByOwner(ctx, ownerID)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return s.ledger.Balance(ctx, account.AccountCode)
}
