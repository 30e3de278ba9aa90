package earnings

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/frizbank/frizbank/internal/market"
	"github.com/frizbank/frizbank/internal/money"
	"github.com/frizbank/frizbank/internal/session"
)

// DefaultSchedule runs one accrual round every 30 seconds.
const DefaultSchedule = "@every 30s"

// QuoteSource lists market quotes. *market.Client satisfies it.
type QuoteSource interface {
	FetchMarkets(ctx context.Context, vsCurrency string, perPage int) ([]market.Quote, error)
}

// BalanceSource reports an owner's balance in minor units. *accounts.Service satisfies it.
type BalanceSource interface {
	BalanceByOwner(ctx context.Context, ownerID string) (int64, error)
}

// SchedulerConfig tunes the accrual job.
type SchedulerConfig struct {
	Spec         string
	BaseCurrency string
	PerPage      int
}

// Scheduler accrues earnings for logged-in users on a cron schedule. Users
// become active on login and inactive on logout.
type Scheduler struct {
	cfg      SchedulerConfig
	cron     *cron.Cron
	store    *Store
	quotes   QuoteSource
	balances BalanceSource
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	active  map[string]string
	unsub   func()
	started bool
}

// NewScheduler wires the job and subscribes to bus for session changes.
func NewScheduler(cfg SchedulerConfig, store *Store, quotes QuoteSource, balances BalanceSource, bus *session.Bus, logger *slog.Logger) *Scheduler {
	if cfg.Spec == "" {
		cfg.Spec = DefaultSchedule
	}
	if cfg.BaseCurrency == "" {
		cfg.BaseCurrency = "usd"
	}
	if logger == nil {
		logger = slog.Default()
	}
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	s := &Scheduler{
		cfg:      cfg,
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		store:    store,
		quotes:   quotes,
		balances: balances,
		logger:   logger,
		now:      time.Now,
		active:   map[string]string{},
	}
	if bus != nil {
		s.unsub = bus.Subscribe(s.onSession)
	}
	return s
}

func (s *Scheduler) onSession(ev session.Event) {
	switch ev.Type {
	case session.EventLogin:
		s.Track(ev.UserID, ev.Email)
	case session.EventLogout:
		s.Untrack(ev.UserID)
	}
}

// Track marks a user as active.
func (s *Scheduler) Track(userID, email string) {
	if userID == "" || email == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[userID] = email
}

// Untrack stops accruing for a user.
func (s *Scheduler) Untrack(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, userID)
}

// Active lists the tracked user ids in sorted order.
func (s *Scheduler) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Start schedules the job. Calling it twice is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if _, err := s.cron.AddFunc(s.cfg.Spec, func() { s.Tick(context.Background()) }); err != nil {
		return fmt.Errorf("schedule earnings job %q: %w", s.cfg.Spec, err)
	}
	s.cron.Start()
	s.started = true
	s.logger.Info("scheduled earnings job", "schedule", s.cfg.Spec)
	return nil
}

// Stop halts the schedule and unsubscribes from the bus. The returned
// context is done once a running tick has finished.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	return s.cron.Stop()
}

// Tick runs one accrual round: quotes are fetched once and applied to every
// active user. Per-user failures are logged and do not stop the round.
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	users := make(map[string]string, len(s.active))
	for id, email := range s.active {
		users[id] = email
	}
	s.mu.Unlock()
	if len(users) == 0 {
		return
	}

	quotes, err := s.quotes.FetchMarkets(ctx, s.cfg.BaseCurrency, s.cfg.PerPage)
	if err != nil {
		s.logger.Warn("earnings round skipped", slog.Any("error", err))
		return
	}
	if len(quotes) == 0 {
		return
	}

	now := s.now()
	for id, email := range users {
		if err := s.accrueFor(ctx, id, email, quotes, now); err != nil {
			s.logger.Error("accrue earnings", slog.String("user_id", id), slog.Any("error", err))
		}
	}
}

func (s *Scheduler) accrueFor(ctx context.Context, userID, email string, quotes []market.Quote, now time.Time) error {
	cents, err := s.balances.BalanceByOwner(ctx, userID)
	if err != nil {
		return err
	}
	balance := money.ToFloat(cents)
	state, err := s.store.Load(ctx, email)
	if err != nil {
		return err
	}
	next, _ := Accrue(state, balance, quotes, now)
	return s.store.Save(ctx, email, next, balance)
}
