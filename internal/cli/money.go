package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/frizbank/frizbank/internal/accounts"
	"github.com/frizbank/frizbank/internal/deposits"
	"github.com/frizbank/frizbank/internal/market"
	"github.com/frizbank/frizbank/internal/money"
	"github.com/frizbank/frizbank/internal/transfers"
)

// Deposit adds balance to the user's account.
func (a *App) Deposit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("deposit", flag.ContinueOnError)
	fs.SetOutput(a.out)
	method := fs.String("method", "pix", "pix, card or bank")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := deposits.ParseMethod(*method); err != nil {
		return err
	}
	raw, err := a.required(fs.Arg(0), "Amount")
	if err != nil {
		return err
	}
	amount, err := canonicalAmount(raw)
	if err != nil {
		return err
	}

	accountID, err := a.accountID(ctx)
	if err != nil {
		return err
	}
	var res deposits.Response
	err = a.authed(ctx, func() (err error) {
		res, err = a.api.Deposit(ctx, accountID, amount, *method)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s. New balance: %s\n", res.Description, res.Balance)
	return nil
}

// Send transfers to an account id, a registered email or an external key.
func (a *App) Send(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(a.out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	dest, err := a.required(fs.Arg(0), "Destination (account id, email or key)")
	if err != nil {
		return err
	}
	raw, err := a.required(fs.Arg(1), "Amount")
	if err != nil {
		return err
	}
	amount, err := canonicalAmount(raw)
	if err != nil {
		return err
	}

	accountID, err := a.accountID(ctx)
	if err != nil {
		return err
	}
	var res transfers.Response
	err = a.authed(ctx, func() (err error) {
		res, err = a.api.Send(ctx, accountID, dest, amount)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s. New balance: %s\n", res.Description, res.Balance)
	return nil
}

// Statement prints the latest transactions and the legacy extrato line.
func (a *App) Statement(ctx context.Context, _ []string) error {
	accountID, err := a.accountID(ctx)
	if err != nil {
		return err
	}
	var acct accounts.Response
	err = a.authed(ctx, func() (err error) {
		acct, err = a.api.Account(ctx, accountID)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprint(a.out, RenderStatement(acct, a.theme(ctx)))
	return nil
}

// Markets lists crypto prices. It needs no login.
func (a *App) Markets(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("markets", flag.ContinueOnError)
	fs.SetOutput(a.out)
	vs := fs.String("vs", strings.ToLower(a.cfg.Currency), "quote currency")
	n := fs.Int("n", market.DefaultPerPage, "number of coins")
	if err := fs.Parse(args); err != nil {
		return err
	}
	quotes, err := a.api.Markets(ctx, *vs, *n)
	if err != nil {
		return err
	}
	currency := strings.ToUpper(*vs)
	if currency == "" {
		currency = market.DefaultVsCurrency
	}
	fmt.Fprint(a.out, RenderMarkets(quotes, currency, a.theme(ctx)))
	return nil
}

// canonicalAmount validates raw locally and renders it as "123.45".
func canonicalAmount(raw string) (string, error) {
	cents, err := money.Parse(raw)
	if err != nil {
		return "", err
	}
	return money.Format(cents), nil
}
