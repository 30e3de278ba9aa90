package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/frizbank/frizbank/internal/accounts"
	"github.com/frizbank/frizbank/internal/auth"
	"github.com/frizbank/frizbank/internal/config"
	"github.com/frizbank/frizbank/internal/dashboard"
	"github.com/frizbank/frizbank/internal/deposits"
	"github.com/frizbank/frizbank/internal/earnings"
	"github.com/frizbank/frizbank/internal/face"
	"github.com/frizbank/frizbank/internal/fx"
	"github.com/frizbank/frizbank/internal/kv"
	"github.com/frizbank/frizbank/internal/ledger"
	"github.com/frizbank/frizbank/internal/market"
	"github.com/frizbank/frizbank/internal/middleware"
	"github.com/frizbank/frizbank/internal/notification"
	"github.com/frizbank/frizbank/internal/session"
	"github.com/frizbank/frizbank/internal/transfers"
	"github.com/frizbank/frizbank/internal/users"
)

// Deps aggregates shared dependencies required to wire routes. DB and Cache
// may be nil in development, in which case in-memory stores are used.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Notifier notification.Notifier
	// HTTPClient is used for market, exchange-rate, geolocation and model lookups.
	HTTPClient *http.Client
}

// Runtime holds the background pieces Setup creates for the server to manage.
type Runtime struct {
	Bus       *session.Bus
	Scheduler *earnings.Scheduler
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*Runtime, error) {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}
	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{Timeout: d.Cfg.HTTPClientTimeout}
	}

	// A nil *redis.Client must not leak into an interface as non-nil.
	var cache redis.Cmdable
	var store kv.Store
	if d.Cache != nil {
		cache = d.Cache
		store = kv.NewRedis(d.Cache, "frizbank:")
	} else {
		store = kv.NewMemory()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	ctx := context.Background()
	var (
		led      ledger.Ledger
		userRepo users.Repository
		acctRepo accounts.Repository
	)
	if d.DB != nil {
		led = ledger.NewPostgresLedger(d.DB)
		userRepo = users.NewPostgresRepository(d.DB)
		acctRepo = accounts.NewPostgresRepository(d.DB)
	} else {
		led = ledger.NewInMemory()
		userRepo = users.NewMemoryRepository()
		acctRepo = accounts.NewMemoryRepository()
	}

	bus := session.NewBus(d.Logger)
	userSvc := users.NewService(userRepo, face.NewMatcher(d.Cfg.FaceMatchThreshold))
	acctSvc := accounts.NewService(acctRepo, led)
	authSvc := auth.NewService(d.Cfg, userSvc, bus)

	depositSvc, err := deposits.NewService(ctx, led, acctSvc, deposits.StaticAuthorizer{}, d.Notifier)
	if err != nil {
		return nil, err
	}
	transferSvc, err := transfers.NewService(ctx, led, acctSvc, userSvc, d.Notifier)
	if err != nil {
		return nil, err
	}

	marketClient := market.NewClient(d.Cfg.MarketAPIURL, d.HTTPClient, store, d.Cfg.MarketCacheTTL, d.Logger)
	fxSvc := fx.NewService(d.Cfg.ExchangeAPIURL, d.Cfg.GeoAPIURL, d.HTTPClient, store, d.Cfg.RateCacheTTL, d.Logger)
	earningsStore := earnings.NewStore(store, d.Logger)
	scheduler := earnings.NewScheduler(earnings.SchedulerConfig{
		Spec:         d.Cfg.EarningsSchedule,
		BaseCurrency: d.Cfg.BaseCurrency,
		PerPage:      dashboard.QuotesPerPage,
	}, earningsStore, marketClient, acctSvc, bus, d.Logger)

	dashSvc := dashboard.NewService(dashboard.Deps{
		Users:        userSvc,
		Accounts:     acctSvc,
		Earnings:     earningsStore,
		Quotes:       marketClient,
		Rates:        fxSvc,
		Preferences:  store,
		Tracker:      scheduler,
		BaseCurrency: d.Cfg.BaseCurrency,
		Logger:       d.Logger,
	})

	mw := Guards{
		Auth:        middleware.JWTAuth(authSvc),
		Face:        middleware.RequireFace(),
		Idempotency: middleware.Idempotency(cache, middleware.IdempotencyConfig{TTL: d.Cfg.IdempotencyTTL}, d.Logger),
		LoginLimit:  middleware.LoginRateLimit(cache, d.Cfg.LoginRateLimit),
	}

	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDOf(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	authHandler := auth.NewHandler(authSvc, acctSvc)
	dashHandler := dashboard.NewHandler(dashSvc)
	models := face.NewModelLoader(d.Cfg.FaceModelSources, d.HTTPClient, d.Logger)

	RegisterUserRoutes(app, users.NewHandler(userSvc), authHandler, dashHandler, mw)
	RegisterAuthRoutes(app, authHandler, mw)
	RegisterAccountRoutes(app, accounts.NewHandler(acctSvc), deposits.NewHandler(depositSvc), transfers.NewHandler(transferSvc), mw)
	RegisterMarketRoutes(app, market.NewHandler(marketClient), fx.NewHandler(fxSvc), face.NewModelsHandler(models))
	RegisterDashboardRoutes(app, dashHandler, mw)

	return &Runtime{Bus: bus, Scheduler: scheduler}, nil
}

// Guards are the route-level middlewares shared by the route groups.
type Guards struct {
	Auth        fiber.Handler
	Face        fiber.Handler
	Idempotency fiber.Handler
	LoginLimit  fiber.Handler
}
