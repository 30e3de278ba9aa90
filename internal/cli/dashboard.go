package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/frizbank/frizbank/internal/dashboard"
)

// Dashboard renders the dashboard and re-renders it every poll interval
// until ctx is cancelled. With -once it renders a single time.
func (a *App) Dashboard(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	fs.SetOutput(a.out)
	currency := fs.String("currency", a.cfg.Currency, "display currency (ISO code)")
	once := fs.Bool("once", false, "render once and exit")
	interval := fs.Duration("interval", a.cfg.PollInterval, "refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := a.current(); err != nil {
		return err
	}

	if err := a.renderDashboard(ctx, *currency); err != nil {
		return err
	}
	if *once {
		return nil
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.renderDashboard(ctx, *currency); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				fmt.Fprintf(a.out, "refresh failed: %v\n", err)
			}
		}
	}
}

func (a *App) renderDashboard(ctx context.Context, currency string) error {
	var view dashboard.View
	err := a.authed(ctx, func() (err error) {
		view, err = a.api.Dashboard(ctx, currency)
		return err
	})
	if err != nil {
		return err
	}
	if u, ok := a.session.Current(); ok && u.AccountID == "" && view.AccountID != "" {
		u.AccountID = view.AccountID
		_ = a.session.Update(ctx, u)
	}
	fmt.Fprint(a.out, RenderDashboard(view, a.theme(ctx)))
	return nil
}
