package transfers

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
	"github.com/frizbank/frizbank/internal/users"
)

var (
	ErrMissingDestination = errors.New("destination is required")
	ErrSameAccount        = errors.New("cannot send to the same account")
)

// UserDirectory resolves recipients by email. *users.Service satisfies it.
type UserDirectory interface {
	Get(ctx context.Context, id string) (users.User, error)
	GetByEmail(ctx context.Context, email string) (users.User, error)
}

// Service moves funds out of a customer's account.
type Service struct {
	ledger   ledger.Ledger
	accounts *accounts.Service
	users    UserDirectory
	notifier notification.Notifier
	now      func() time.Time
}

// NewService constructs a transfer service ensuring the payouts system account exists.
func NewService(ctx context.Context, led ledger.Ledger, accts *accounts.Service, dir UserDirectory, notifier notification.Notifier) (*Service, error) {
	if err := led.EnsureAccount(ctx, ledger.PayoutsAccountCode); err != nil {
		return nil, err
	}
	return &Service{ledger: led, accounts: accts, users: dir, notifier: notifier, now: time.Now}, nil
}

// Input captures the data needed to send funds.
type Input struct {
	OwnerID     string
	AccountID   string
	Destination string
	Amount      int64
	ClientTxID  string
}

// Result describes the ledger outcome of a send.
type Result struct {
	TransactionID string
	Balance       int64
	Internal      bool
	RecipientID   string
	Description   string
	CompletedAt   time.Time
}

type recipient struct {
	account accounts.Account
	label   string
}

// Send debits the caller's account. The destination is an account id, the
// email of a registered user (whose account is created on demand), or any
// other key, which is treated as a payout leaving the bank.
func (s *Service) Send(ctx context.Context, in Input) (Result, error) {
	if in.Amount <= 0 || in.Amount > money.MaxAmount {
		return Result{}, money.ErrInvalidAmount
	}
	dest := strings.TrimSpace(in.Destination)
	if dest == "" {
		return Result{}, ErrMissingDestination
	}
	if in.ClientTxID == "" {
		in.ClientTxID = uuid.NewString()
	}

	source, err := s.accounts.Owned(ctx, in.AccountID, in.OwnerID)
	if err != nil {
		return Result{}, err
	}
	sender, err := s.users.Get(ctx, source.OwnerID)
	if err != nil {
		return Result{}, fmt.Errorf("load sender: %w", err)
	}

	to, err := s.resolve(ctx, dest)
	if err != nil {
		return Result{}, err
	}

	posting := ledger.Posting{
		ClientTxID: in.ClientTxID,
		FromCode:   source.AccountCode,
		Amount:     in.Amount,
	}
	if to == nil {
		posting.Kind = ledger.KindPayout
		posting.ToCode = ledger.PayoutsAccountCode
		posting.Debit = ledger.Memo{Description: fmt.Sprintf("Sent to external key/account (%s)", dest), Counterparty: dest}
		posting.Credit = ledger.Memo{Description: "Payout from " + source.ID, Counterparty: source.ID}
	} else {
		if to.account.ID == source.ID {
			return Result{}, ErrSameAccount
		}
		posting.Kind = ledger.KindTransfer
		posting.ToCode = to.account.AccountCode
		posting.Debit = ledger.Memo{Description: "Transferred to " + to.label, Counterparty: to.account.ID}
		posting.Credit = ledger.Memo{Description: "Received from " + sender.Email, Counterparty: source.ID}
	}

	res, err := s.ledger.Post(ctx, posting)
	if err != nil {
		return Result{}, err
	}

	out := Result{
		TransactionID: res.TransactionID,
		Balance:       res.FromBalance,
		Internal:      to != nil,
		Description:   posting.Debit.Description,
		CompletedAt:   s.now().UTC(),
	}
	if to != nil {
		out.RecipientID = to.account.OwnerID
		if s.notifier != nil {
			_ = s.notifier.Send(ctx, notification.TransferReceived(to.account.OwnerID, res.TransactionID, in.Amount, source.Currency, sender.Email))
		}
	}
	return out, nil
}

// resolve returns nil for destinations outside the bank.
func (s *Service) resolve(ctx context.Context, dest string) (*recipient, error) {
	if _, err := uuid.Parse(dest); err == nil {
		account, err := s.accounts.Get(ctx, dest)
		if err != nil {
			return nil, err
		}
		label := "account " + account.ID
		if owner, err := s.users.Get(ctx, account.OwnerID); err == nil {
			label = owner.Email
		}
		return &recipient{account: account, label: label}, nil
	}

	if strings.Contains(dest, "@") {
		owner, err := s.users.GetByEmail(ctx, dest)
		switch {
		case err == nil:
			account, err := s.accounts.EnsureForOwner(ctx, owner.ID)
			if err != nil {
				return nil, err
			}
			return &recipient{account: account, label: owner.Email}, nil
		case errors.Is(err, users.ErrNotFound), errors.Is(err, users.ErrInvalidInput):
		default:
			return nil, err
		}
	}
	return nil, nil
}
