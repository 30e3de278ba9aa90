package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/frizbank/frizbank/internal/accounts"
	"github.com/frizbank/frizbank/internal/dashboard"
	"github.com/frizbank/frizbank/internal/earnings"
	"github.com/frizbank/frizbank/internal/users"
)

func TestRenderDashboardShowsEveryPanel(t *testing.T) {
	weekly := 2.5
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	history := make([]earnings.HistoryEntry, 10)
	for i := range history {
		history[i] = earnings.HistoryEntry{Date: at.Add(time.Duration(i) * time.Minute), Amount: float64(i)}
	}
	v := dashboard.View{
		User:     users.Response{Name: "Ana", Email: "ana@x.com"},
		Currency: "USD",
		Rate:     1,
		Balance:  dashboard.Amount{Base: 100, Converted: 100, Formatted: "$ 100.00"},
		Earnings: dashboard.EarningsView{
			Total:        dashboard.Amount{Formatted: "$ 1.25"},
			TotalReturn:  1.25,
			WeeklyChange: &weekly,
			History:      history,
		},
		Transactions: []accounts.TransactionResponse{
			{Amount: "100.00", Description: "Balance added via PIX", Date: at.AddDate(0, 2, 0)},
			{Amount: "-20.00", Description: "Transferred to bob@x.com", Date: at.AddDate(0, 2, 0)},
		},
	}

	out := RenderDashboard(v, themeFor(false))
	assert.Contains(t, out, "Hello, Ana <ana@x.com>")
	assert.Contains(t, out, "$ 100.00")
	assert.Contains(t, out, "Total return: +1.25%")
	assert.Contains(t, out, "Weekly:       +2.50%")
	assert.Contains(t, out, "market data unavailable")
	assert.Contains(t, out, "+100.00  Balance added via PIX")
	assert.Contains(t, out, "-20.00  Transferred to bob@x.com")
	assert.NotContains(t, out, "rate ")

	// Only the latest history rows are listed.
	assert.Equal(t, historyRows, strings.Count(out, "2026-03-"))
}

func TestRenderDashboardWithoutWeeklyChange(t *testing.T) {
	out := RenderDashboard(dashboard.View{Currency: "BRL", Rate: 5.1}, themeFor(true))
	assert.NotContains(t, out, "Weekly")
	assert.Contains(t, out, "rate 5.1000")
	assert.Contains(t, out, "no transactions yet")
	assert.Contains(t, out, "\x1b[1;97;40m")
}

func TestRenderProfile(t *testing.T) {
	out := RenderProfile(users.Response{Name: "Ana", Email: "ana@x.com", HasFace: true}, themeFor(false))
	assert.Contains(t, out, "Face:  enrolled")
	assert.NotContains(t, out, "Last login")
}
