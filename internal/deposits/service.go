package deposits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/frizbank/frizbank/internal/accounts"
	"github.com/frizbank/frizbank/internal/ledger"
	"github.com/frizbank/frizbank/internal/money"
	"github.com/frizbank/frizbank/internal/notification"
)

var (
	ErrUnknownMethod = errors.New("unknown payment method")
	ErrDeclined      = errors.New("payment declined")
)

// Method is how the customer pays for a balance addition.
type Method string

const (
	MethodPix  Method = "pix"
	MethodCard Method = "card"
	MethodBank Method = "bank"
)

var methodLabels = map[Method]string{
	MethodPix:  "PIX",
	MethodCard: "Credit Card",
	MethodBank: "Bank Transfer",
}

// ParseMethod accepts the method names used by the clients. Empty means PIX.
func ParseMethod(raw string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "pix":
		return MethodPix, nil
	case "card", "cartao", "credit_card":
		return MethodCard, nil
	case "bank", "transfer", "transferencia":
		return MethodBank, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, raw)
}

// Label is the human readable method name used in descriptions.
func (m Method) Label() string { return methodLabels[m] }

// Service adds balance to accounts through the ledger.
type Service struct {
	ledger     ledger.Ledger
	accounts   *accounts.Service
	authorizer Authorizer
	notifier   notification.Notifier
	now        func() time.Time
}

// NewService prepares a deposit service ensuring the deposits system account exists.
func NewService(ctx context.Context, led ledger.Ledger, accts *accounts.Service, authorizer Authorizer, notifier notification.Notifier) (*Service, error) {
	if accts == nil {
		return nil, fmt.Errorf("account service is required")
	}
	if authorizer == nil {
		authorizer = StaticAuthorizer{}
	}
	if err := led.EnsureAccount(ctx, ledger.DepositsAccountCode); err != nil {
		return nil, err
	}
	return &Service{ledger: led, accounts: accts, authorizer: authorizer, notifier: notifier, now: time.Now}, nil
}

// Input describes one balance addition.
type Input struct {
	OwnerID    string
	AccountID  string
	Amount     int64
	Method     Method
	ClientTxID string
}

// Result is the outcome of AddBalance.
type Result struct {
	TransactionID string
	Balance       int64
	Reference     string
	Description   string
	CompletedAt   time.Time
}

// AddBalance authorizes and records a deposit into the caller's account.
func (s *Service) AddBalance(ctx context.Context, in Input) (Result, error) {
	if in.Amount <= 0 || in.Amount > money.MaxAmount {
		return Result{}, money.ErrInvalidAmount
	}
	if _, ok := methodLabels[in.Method]; !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownMethod, in.Method)
	}
	if in.ClientTxID == "" {
		in.ClientTxID = uuid.NewString()
	}

	account, err := s.accounts.Owned(ctx, in.AccountID, in.OwnerID)
	if err != nil {
		return Result{}, err
	}

	decision, err := s.authorizer.Authorize(ctx, Authorization{AccountID: account.ID, Method: in.Method, Amount: in.Amount})
	if err != nil {
		return Result{}, fmt.Errorf("authorize deposit: %w", err)
	}
	if decision.Status != "approved" {
		return Result{}, ErrDeclined
	}

	description := "Balance added via " + in.Method.Label()
	res, err := s.ledger.Post(ctx, ledger.Posting{
		Kind:       ledger.KindDeposit,
		ClientTxID: in.ClientTxID,
		FromCode:   ledger.DepositsAccountCode,
		ToCode:     account.AccountCode,
		Amount:     in.Amount,
		Debit:      ledger.Memo{Description: "Deposit to " + account.ID, Counterparty: account.ID},
		Credit:     ledger.Memo{Description: description},
	})
	if err != nil {
		return Result{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Deposit(account.OwnerID, res.TransactionID, in.Amount, account.Currency, in.Method.Label()))
	}

	return Result{
		TransactionID: res.TransactionID,
		Balance:       res.ToBalance,
		Reference:     decision.Reference,
		Description:   description,
		CompletedAt:   s.now().UTC(),
	}, nil
}
