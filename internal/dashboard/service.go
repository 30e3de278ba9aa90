package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frizbank/frizbank/internal/accounts"
	"github.com/frizbank/frizbank/internal/earnings"
	"github.com/frizbank/frizbank/internal/fx"
	"github.com/frizbank/frizbank/internal/kv"
	"github.com/frizbank/frizbank/internal/ledger"
	"github.com/frizbank/frizbank/internal/market"
	"github.com/frizbank/frizbank/internal/money"
	"github.com/frizbank/frizbank/internal/users"
)

// QuotesPerPage is the number of coins shown on the dashboard.
const QuotesPerPage = 10

// Rates converts between currencies and locates users. *fx.Service satisfies it.
type Rates interface {
	Rate(ctx context.Context, from, to string) float64
	CurrencyForCoordinates(ctx context.Context, lat, lon float64) (country, code string)
}

// ActivityTracker is told which users are looking at their dashboard.
type ActivityTracker interface {
	Track(userID, email string)
}

// Service assembles the dashboard view.
type Service struct {
	users    *users.Service
	accounts *accounts.Service
	earnings *earnings.Store
	quotes   earnings.QuoteSource
	rates    Rates
	prefs    kv.Store
	tracker  ActivityTracker
	base     string
	logger   *slog.Logger
}

// Deps groups the collaborators of Service.
type Deps struct {
	Users        *users.Service
	Accounts     *accounts.Service
	Earnings     *earnings.Store
	Quotes       earnings.QuoteSource
	Rates        Rates
	Preferences  kv.Store
	Tracker      ActivityTracker
	BaseCurrency string
	Logger       *slog.Logger
}

func NewService(d Deps) *Service {
	base := strings.ToUpper(d.BaseCurrency)
	if base == "" {
		base = accounts.BaseCurrency
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    d.Users,
		accounts: d.Accounts,
		earnings: d.Earnings,
		quotes:   d.Quotes,
		rates:    d.Rates,
		prefs:    d.Preferences,
		tracker:  d.Tracker,
		base:     base,
		logger:   logger,
	}
}

// Options selects the display currency: an explicit code wins over coordinates.
type Options struct {
	Currency string
	Lat, Lon *float64
}

// Amount is a value in the base currency and in the display currency.
type Amount struct {
	Base      float64 `json:"base"`
	Converted float64 `json:"converted"`
	Formatted string  `json:"formatted"`
}

// EarningsView summarizes simulated returns.
type EarningsView struct {
	Total        Amount                  `json:"total"`
	TotalReturn  float64                 `json:"total_return"`
	WeeklyChange *float64                `json:"weekly_change,omitempty"`
	History      []earnings.HistoryEntry `json:"history"`
}

// View is everything the dashboard shows.
type View struct {
	User         users.Response                 `json:"user"`
	AccountID    string                         `json:"account_id"`
	Currency     string                         `json:"currency"`
	Country      string                         `json:"country,omitempty"`
	Rate         float64                        `json:"rate"`
	Balance      Amount                         `json:"balance"`
	Earnings     EarningsView                   `json:"earnings"`
	Quotes       []market.Quote                 `json:"quotes"`
	Transactions []accounts.TransactionResponse `json:"transactions"`
	DarkMode     bool                           `json:"dark_mode"`
	GeneratedAt  time.Time                      `json:"generated_at"`
}

// Build loads the dashboard for userID, creating the account on first load.
// Market data failures leave the quote list empty.
func (s *Service) Build(ctx context.Context, userID string, opts Options) (View, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return View{}, err
	}
	account, err := s.accounts.EnsureForOwner(ctx, user.ID)
	if err != nil {
		return View{}, fmt.Errorf("ensure account: %w", err)
	}
	st, err := s.accounts.Statement(ctx, account.ID, accounts.RecentLimit)
	if err != nil {
		return View{}, err
	}

	view := View{User: users.ToResponse(user), AccountID: account.ID, Currency: s.base, GeneratedAt: time.Now().UTC()}
	switch {
	case opts.Currency != "":
		code, err := fx.ParseCurrency(opts.Currency)
		if err != nil {
			return View{}, err
		}
		view.Currency = code
	case opts.Lat != nil && opts.Lon != nil:
		view.Country, view.Currency = s.rates.CurrencyForCoordinates(ctx, *opts.Lat, *opts.Lon)
	}
	view.Rate = s.rates.Rate(ctx, s.base, view.Currency)

	balance := money.ToFloat(st.Balance.Amount)
	view.Balance = s.amount(balance, view.Rate, view.Currency)

	state, err := s.earnings.Load(ctx, user.Email)
	if err != nil {
		return View{}, err
	}
	view.Earnings = EarningsView{
		Total:       s.amount(state.Earnings, view.Rate, view.Currency),
		TotalReturn: state.TotalReturn(balance),
		History:     make([]earnings.HistoryEntry, 0, len(state.History)),
	}
	if change, ok := state.WeeklyChange(); ok {
		view.Earnings.WeeklyChange = &change
	}
	for _, h := range state.History {
		view.Earnings.History = append(view.Earnings.History, earnings.HistoryEntry{Date: h.Date, Amount: fx.Convert(h.Amount, view.Rate)})
	}

	quotes, err := s.quotes.FetchMarkets(ctx, view.Currency, QuotesPerPage)
	if err != nil {
		s.logger.Warn("dashboard quotes unavailable", slog.String("currency", view.Currency), slog.Any("error", err))
		quotes = nil
	}
	if quotes == nil {
		quotes = []market.Quote{}
	}
	view.Quotes = quotes

	lines := st.Lines
	if lines == nil {
		lines = []ledger.StatementLine{}
	}
	view.Transactions = accounts.ToTransactionResponses(lines)

	if view.DarkMode, err = s.DarkMode(ctx, user.Email); err != nil {
		return View{}, err
	}

	if s.tracker != nil {
		s.tracker.Track(user.ID, user.Email)
	}
	return view, nil
}

func (s *Service) amount(base, rate float64, code string) Amount {
	converted := fx.Convert(base, rate)
	return Amount{Base: base, Converted: converted, Formatted: fx.Format(converted, code)}
}

// DarkMode reports the saved theme preference; light by default.
func (s *Service) DarkMode(ctx context.Context, email string) (bool, error) {
	var on bool
	if _, err := kv.GetJSON(ctx, s.prefs, s.logger, kv.UserDarkModeKey(email), &on); err != nil {
		return false, err
	}
	return on, nil
}

// SetDarkMode saves the theme preference.
func (s *Service) SetDarkMode(ctx context.Context, email string, on bool) error {
	return kv.SetJSON(ctx, s.prefs, kv.UserDarkModeKey(email), on, 0)
}
