package cli

import (
	"fmt"
	"strings"

	"github.com/frizbank/frizbank/internal/accounts"
	"github.com/frizbank/frizbank/internal/dashboard"
	"github.com/frizbank/frizbank/internal/fx"
	"github.com/frizbank/frizbank/internal/market"
	"github.com/frizbank/frizbank/internal/users"
)

const (
	historyRows = 7
	dateLayout  = "2006-01-02 15:04"
)

// Theme styles section headings.
type Theme struct {
	Name  string
	Dark  bool
	open  string
	close string
}

func themeFor(dark bool) Theme {
	if dark {
		return Theme{Name: "dark", Dark: true, open: "\x1b[1;97;40m", close: "\x1b[0m"}
	}
	return Theme{Name: "light", open: "\x1b[1;30;47m", close: "\x1b[0m"}
}

func (t Theme) heading(b *strings.Builder, title string) {
	fmt.Fprintf(b, "\n%s %s %s\n", t.open, title, t.close)
}

// RenderDashboard draws the whole dashboard view.
func RenderDashboard(v dashboard.View, t Theme) string {
	var b strings.Builder
	t.heading(&b, "FrizBank")
	fmt.Fprintf(&b, "Hello, %s <%s>\n", v.User.Name, v.User.Email)
	if v.Country != "" {
		fmt.Fprintf(&b, "Region: %s (%s)\n", v.Country, v.Currency)
	}

	t.heading(&b, "Balance")
	fmt.Fprintf(&b, "%s\n", v.Balance.Formatted)
	if v.Rate != 1 {
		fmt.Fprintf(&b, "rate %.4f, base %.2f\n", v.Rate, v.Balance.Base)
	}

	t.heading(&b, "Earnings")
	fmt.Fprintf(&b, "Total:        %s\n", v.Earnings.Total.Formatted)
	fmt.Fprintf(&b, "Total return: %s\n", signedPercent(v.Earnings.TotalReturn))
	if v.Earnings.WeeklyChange != nil {
		fmt.Fprintf(&b, "Weekly:       %s\n", signedPercent(*v.Earnings.WeeklyChange))
	}
	history := v.Earnings.History
	if len(history) > historyRows {
		history = history[len(history)-historyRows:]
	}
	for _, h := range history {
		fmt.Fprintf(&b, "  %s  %s\n", h.Date.Local().Format(dateLayout), fx.Format(h.Amount, v.Currency))
	}

	t.heading(&b, "Markets")
	writeQuotes(&b, v.Quotes, v.Currency)

	t.heading(&b, "Recent transactions")
	writeTransactions(&b, v.Transactions)
	return b.String()
}

// RenderMarkets draws a price table.
func RenderMarkets(quotes []market.Quote, currency string, t Theme) string {
	var b strings.Builder
	t.heading(&b, "Markets ("+currency+")")
	writeQuotes(&b, quotes, currency)
	return b.String()
}

// RenderStatement draws an account with its transactions.
func RenderStatement(a accounts.Response, t Theme) string {
	var b strings.Builder
	t.heading(&b, "Account "+a.ID)
	fmt.Fprintf(&b, "Balance: %s %s\n", a.Balance, a.Currency)
	t.heading(&b, "Transactions")
	writeTransactions(&b, a.Transactions)
	return b.String()
}

// RenderProfile draws the user's profile.
func RenderProfile(u users.Response, t Theme) string {
	var b strings.Builder
	t.heading(&b, "Profile")
	fmt.Fprintf(&b, "Name:  %s\nEmail: %s\n", u.Name, u.Email)
	face := "not enrolled"
	if u.HasFace {
		face = "enrolled"
	}
	fmt.Fprintf(&b, "Face:  %s\n", face)
	if u.LastLogin != nil {
		fmt.Fprintf(&b, "Last login: %s\n", u.LastLogin.Local().Format(dateLayout))
	}
	return b.String()
}

func writeQuotes(b *strings.Builder, quotes []market.Quote, currency string) {
	if len(quotes) == 0 {
		b.WriteString("market data unavailable\n")
		return
	}
	for _, q := range quotes {
		fmt.Fprintf(b, "%-16s %-6s %18s %9s\n",
			q.Name, strings.ToUpper(q.Symbol), fx.Format(q.CurrentPrice, currency), signedPercent(q.PriceChangePercentage24h))
	}
}

func writeTransactions(b *strings.Builder, txs []accounts.TransactionResponse) {
	if len(txs) == 0 {
		b.WriteString("no transactions yet\n")
		return
	}
	for _, tx := range txs {
		amount := tx.Amount
		if !strings.HasPrefix(amount, "-") {
			amount = "+" + amount
		}
		fmt.Fprintf(b, "%s %12s  %s\n", tx.Date.Local().Format(dateLayout), amount, tx.Description)
	}
}

func signedPercent(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}
