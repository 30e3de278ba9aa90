package accounts

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/frizbank/frizbank/internal/ledger"
)

func TestServiceCreateAndBalance(t *testing.T) {
	repo := NewMemoryRepository()
	led := ledger.NewInMemory()
	svc := NewService(repo, led)

	ctx := context.Background()
	ownerID := uuid.NewString()
	account, err := svc.Create(ctx, ownerID)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if account.Currency != BaseCurrency {
		t.Fatalf("expected base currency %s, got %s", BaseCurrency, account.Currency)
	}

	fetched, err := svc.Get(ctx, account.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if fetched.ID != account.ID || fetched.OwnerID != ownerID {
		t.Fatalf("expected account ID %s, got %s", account.ID, fetched.ID)
	}

	ledger.SeedBalance(led, account.AccountCode, 2_500)

	balance, err := svc.Balance(ctx, account.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Amount != 2_500 {
		t.Fatalf("expected balance 2500, got %d", balance.Amount)
	}

	if _, err := svc.Create(ctx, ownerID); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestEnsureForOwnerCreatesOnce(t *testing.T) {
	svc := NewService(NewMemoryRepository(), ledger.NewInMemory())
	ctx := context.Background()
	ownerID := uuid.NewString()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]bool{}
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := svc.EnsureForOwner(ctx, ownerID)
			if err != nil {
				t.Errorf("ensure: %v", err)
				return
			}
			mu.Lock()
			ids[a.ID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(ids) != 1 {
		t.Fatalf("expected one account, got %d", len(ids))
	}
}

func TestOwnedRejectsOtherUsers(t *testing.T) {
	svc := NewService(NewMemoryRepository(), ledger.NewInMemory())
	ctx := context.Background()
	account, _ := svc.Create(ctx, uuid.NewString())

	if _, err := svc.Owned(ctx, account.ID, uuid.NewString()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Owned(ctx, uuid.NewString(), account.OwnerID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatementListsRecentFirst(t *testing.T) {
	led := ledger.NewInMemory()
	svc := NewService(NewMemoryRepository(), led)
	ctx := context.Background()
	_ = led.EnsureAccount(ctx, ledger.DepositsAccountCode)
	account, _ := svc.Create(ctx, uuid.NewString())

	for i, amount := range []int64{100, 200, 300} {
		_, err := led.Post(ctx, ledger.Posting{
			Kind:       ledger.KindDeposit,
			ClientTxID: uuid.NewString(),
			FromCode:   ledger.DepositsAccountCode,
			ToCode:     account.AccountCode,
			Amount:     amount,
			Credit:     ledger.Memo{Description: "deposit"},
		})
		if err != nil {
			t.Fatalf("deposit %d: %v", i, err)
		}
	}

	st, err := svc.Statement(ctx, account.ID, 2)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if st.Balance.Amount != 600 {
		t.Fatalf("expected balance 600, got %d", st.Balance.Amount)
	}
	if len(st.Lines) != 2 || st.Lines[0].Amount != 300 || st.Lines[1].Amount != 200 {
		t.Fatalf("unexpected lines %+v", st.Lines)
	}
}

func TestFormatExtrato(t *testing.T) {
	lines := []ledger.StatementLine{
		{Amount: -5_000, Description: "Transferred to bob@x.com"},
		{Amount: 10_000, Description: "Balance added via PIX"},
	}
	want := "[-50.00]: Transferred to bob@x.com;[+100.00]: Balance added via PIX;"
	if got := FormatExtrato(lines); got != want {
		t.Fatalf("FormatExtrato = %q, want %q", got, want)
	}
}

func TestBalanceByOwner(t *testing.T) {
	led := ledger.NewInMemory()
	svc := NewService(NewMemoryRepository(), led)
	ctx := context.Background()

	owner := uuid.NewString()
	if bal, err := svc.BalanceByOwner(ctx, owner); err != nil || bal != 0 {
		t.Fatalf("expected zero balance without account, got %d %v", bal, err)
	}
	account, err := svc.Create(ctx, owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ledger.SeedBalance(led, account.AccountCode, 700)
	if bal, err := svc.BalanceByOwner(ctx, owner); err != nil || bal != 700 {
		t.Fatalf("expected 700, got %d %v", bal, err)
	}
}
