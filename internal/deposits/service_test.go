package deposits

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/frizbank/frizbank/internal/accounts"
	"github.com/frizbank/frizbank/internal/ledger"
	"github.com/frizbank/frizbank/internal/money"
)

type declineAll struct{}

func (declineAll) Authorize(context.Context, Authorization) (Decision, error) {
	return Decision{Status: "declined"}, nil
}

func setup(t *testing.T, authorizer Authorizer) (*Service, *accounts.Service, accounts.Account) {
	t.Helper()
	ctx := context.Background()
	led := ledger.NewInMemory()
	accts := accounts.NewService(accounts.NewMemoryRepository(), led)
	account, err := accts.Create(ctx, uuid.NewString())
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	svc, err := NewService(ctx, led, accts, authorizer, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, accts, account
}

func TestAddBalanceToEmptyAccount(t *testing.T) {
	ctx := context.Background()
	svc, accts, account := setup(t, StaticAuthorizer{})

	amount, err := money.Parse("100.00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res, err := svc.AddBalance(ctx, Input{OwnerID: account.OwnerID, AccountID: account.ID, Amount: amount, Method: MethodPix})
	if err != nil {
		t.Fatalf("add balance: %v", err)
	}
	if money.Format(res.Balance) != "100.00" {
		t.Fatalf("expected balance 100.00, got %s", money.Format(res.Balance))
	}

	st, err := accts.Statement(ctx, account.ID, accounts.RecentLimit)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if len(st.Lines) != 1 {
		t.Fatalf("expected one transaction, got %d", len(st.Lines))
	}
	line := st.Lines[0]
	if line.Type != ledger.LineDeposit || line.Amount != 10_000 || line.Description != "Balance added via PIX" {
		t.Fatalf("unexpected line %+v", line)
	}
}

func TestAddBalanceRejections(t *testing.T) {
	ctx := context.Background()
	svc, accts, account := setup(t, StaticAuthorizer{})

	if _, err := svc.AddBalance(ctx, Input{OwnerID: account.OwnerID, AccountID: account.ID, Amount: 0, Method: MethodCard}); !errors.Is(err, money.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.AddBalance(ctx, Input{OwnerID: account.OwnerID, AccountID: account.ID, Amount: 100, Method: "cash"}); !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("expected ErrUnknownMethod, got %v", err)
	}
	if _, err := svc.AddBalance(ctx, Input{OwnerID: uuid.NewString(), AccountID: account.ID, Amount: 100, Method: MethodCard}); !errors.Is(err, accounts.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	in := Input{OwnerID: account.OwnerID, AccountID: account.ID, Amount: 500, Method: MethodBank, ClientTxID: "dup"}
	if _, err := svc.AddBalance(ctx, in); err != nil {
		t.Fatalf("first deposit: %v", err)
	}
	if _, err := svc.AddBalance(ctx, in); !errors.Is(err, ledger.ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if bal, _ := accts.Balance(ctx, account.ID); bal.Amount != 500 {
		t.Fatalf("expected balance 500 after duplicate, got %d", bal.Amount)
	}
}

func TestAddBalanceDeclined(t *testing.T) {
	ctx := context.Background()
	svc, accts, account := setup(t, declineAll{})

	if _, err := svc.AddBalance(ctx, Input{OwnerID: account.OwnerID, AccountID: account.ID, Amount: 100, Method: MethodCard}); !errors.Is(err, ErrDeclined) {
		t.Fatalf("expected ErrDeclined, got %v", err)
	}
	if bal, _ := accts.Balance(ctx, account.ID); bal.Amount != 0 {
		t.Fatalf("declined deposit changed balance to %d", bal.Amount)
	}
}

func TestParseMethod(t *testing.T) {
	tests := map[string]Method{"": MethodPix, "PIX": MethodPix, "card": MethodCard, "transfer": MethodBank, "bank": MethodBank}
	for raw, want := range tests {
		got, err := ParseMethod(raw)
		if err != nil || got != want {
			t.Fatalf("ParseMethod(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}
	if _, err := ParseMethod("bitcoin"); !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("expected ErrUnknownMethod, got %v", err)
	}
}

func TestAddBalanceCapsEachDeposit(t *testing.T) {
	ctx := context.Background()
	svc, accts, account := setup(t, StaticAuthorizer{})

	res, err := svc.AddBalance(ctx, Input{OwnerID: account.OwnerID, AccountID: account.ID, Amount: money.MaxAmount, Method: MethodPix})
	if err != nil {
		t.Fatalf("deposit at the limit: %v", err)
	}
	if _, err := svc.AddBalance(ctx, Input{OwnerID: account.OwnerID, AccountID: account.ID, Amount: money.MaxAmount + 1, Method: MethodPix}); !errors.Is(err, money.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := money.Parse("92233720368547756.00"); !errors.Is(err, money.ErrInvalidAmount) {
		t.Fatalf("expected oversized amount to be rejected, got %v", err)
	}

	balance, err := accts.Balance(ctx, account.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Amount != res.Balance || balance.Amount != money.MaxAmount {
		t.Fatalf("expected balance %d, got %d", money.MaxAmount, balance.Amount)
	}
}
