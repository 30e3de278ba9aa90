// Package cli implements the frizbank terminal client: one sub-command per
// screen of the app, local state in a JSON file, face capture from a frame
// directory.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/frizbank/frizbank/internal/client"
	"github.com/frizbank/frizbank/internal/config"
	"github.com/frizbank/frizbank/internal/face"
	"github.com/frizbank/frizbank/internal/kv"
	"github.com/frizbank/frizbank/internal/session"
)

const (
	DefaultPollInterval = 30 * time.Second
	stateFileName       = "state.json"
)

// Config holds the client's runtime settings.
type Config struct {
	BaseURL      string
	StatePath    string
	CameraDir    string
	DetectorURL  string
	Currency     string
	PollInterval time.Duration
}

// DefaultConfig reads FRIZBANK_* environment variables.
func DefaultConfig() Config {
	cfg := Config{
		BaseURL:      client.BaseURLFromEnv(),
		CameraDir:    os.Getenv("FRIZBANK_CAMERA_DIR"),
		DetectorURL:  os.Getenv("FRIZBANK_DETECTOR_URL"),
		Currency:     strings.ToUpper(os.Getenv("FRIZBANK_CURRENCY")),
		PollInterval: DefaultPollInterval,
		StatePath:    os.Getenv("FRIZBANK_STATE"),
	}
	if cfg.StatePath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		cfg.StatePath = filepath.Join(dir, "frizbank", stateFileName)
	}
	return cfg
}

type command struct {
	usage string
	run   func(a *App, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"register":  {"create a user", (*App).Register},
	"login":     {"log in with password and face", (*App).Login},
	"enroll":    {"capture and store your face", (*App).Enroll},
	"verify":    {"check your face against the enrolled one", (*App).Verify},
	"logout":    {"end the session", (*App).Logout},
	"dashboard": {"show balance, earnings and markets (refreshes every 30s)", (*App).Dashboard},
	"deposit":   {"add balance: deposit [-method pix|card|bank] <amount>", (*App).Deposit},
	"send":      {"send money: send <account id|email|key> <amount>", (*App).Send},
	"statement": {"list the latest transactions", (*App).Statement},
	"markets":   {"list crypto prices: markets [-vs usd] [-n 10]", (*App).Markets},
	"profile":   {"show or edit the profile: profile [-name N] [-email E]", (*App).Profile},
	"password":  {"change the password", (*App).Password},
	"theme":     {"switch theme: theme [dark|light]", (*App).Theme},
}

// App is one client process. Create it with New and call Run once.
type App struct {
	cfg     Config
	api     *client.Client
	session *session.Store
	store   kv.Store
	logger  *slog.Logger

	in         *bufio.Reader
	out        io.Writer
	passwordFD int

	// newCapture builds the capture session used by enroll and verify.
	newCapture func(ctx context.Context) (*face.Capture, error)
}

// New opens the local state file and wires the API client.
func New(cfg Config, in io.Reader, out io.Writer, logger *slog.Logger) (*App, error) {
	store, err := kv.OpenFile(cfg.StatePath)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, store, client.New(cfg.BaseURL, &http.Client{Timeout: 30 * time.Second}), in, out, logger), nil
}

func newApp(cfg Config, store kv.Store, api *client.Client, in io.Reader, out io.Writer, logger *slog.Logger) *App {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	a := &App{
		cfg:        cfg,
		api:        api,
		store:      store,
		logger:     logger,
		in:         bufio.NewReader(in),
		out:        out,
		passwordFD: -1,
		session:    session.NewStore(session.KVPersister{Store: store, Logger: logger}, session.NewBus(logger)),
	}
	if f, ok := in.(*os.File); ok && isTerminal(int(f.Fd())) {
		a.passwordFD = int(f.Fd())
	}
	a.newCapture = a.cameraCapture
	a.session.Bus().Subscribe(func(ev session.Event) {
		logger.Debug("session event", slog.String("type", string(ev.Type)), slog.String("email", ev.Email))
	})
	return a
}

// Run restores the persisted session and executes one command.
func (a *App) Run(ctx context.Context, args []string) error {
	defer a.session.Reset()

	if len(args) == 0 || args[0] == "help" || args[0] == "-h" {
		a.usage()
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		a.usage()
		return fmt.Errorf("unknown command %q", args[0])
	}

	if u, err := a.session.CheckAuth(ctx); err == nil {
		a.api.SetToken(u.AccessToken)
	} else if !errors.Is(err, session.ErrNotAuthenticated) {
		return err
	}
	return cmd.run(a, ctx, args[1:])
}

func (a *App) usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(a.out, "usage: frizbank [-api URL] <command> [flags]")
	fmt.Fprintln(a.out)
	for _, name := range names {
		fmt.Fprintf(a.out, "  %-10s %s\n", name, commands[name].usage)
	}
}

// current returns the logged-in user or ErrNotAuthenticated.
func (a *App) current() (session.User, error) {
	u, ok := a.session.Current()
	if !ok {
		return session.User{}, fmt.Errorf("%w: run `frizbank login` first", session.ErrNotAuthenticated)
	}
	return u, nil
}

// authed runs call and, when the access token has expired, refreshes it once
// and retries.
func (a *App) authed(ctx context.Context, call func() error) error {
	err := call()
	if client.StatusOf(err) != http.StatusUnauthorized {
		return err
	}
	u, ok := a.session.Current()
	if !ok || u.RefreshToken == "" {
		return err
	}
	pair, rerr := a.api.Refresh(ctx, u.RefreshToken)
	if rerr != nil {
		// Revoked elsewhere: drop the stale local session.
		_ = a.session.Logout(ctx)
		return fmt.Errorf("session expired, log in again: %w", err)
	}
	u.AccessToken = pair.AccessToken
	if uerr := a.session.Update(ctx, u); uerr != nil {
		return uerr
	}
	return call()
}

// accountID returns the cached account id, asking the API when unknown.
func (a *App) accountID(ctx context.Context) (string, error) {
	u, err := a.current()
	if err != nil {
		return "", err
	}
	if u.AccountID != "" {
		return u.AccountID, nil
	}
	err = a.authed(ctx, func() error {
		acct, err := a.api.AccountByOwner(ctx, u.ID)
		u.AccountID = acct.ID
		return err
	})
	if err != nil {
		return "", err
	}
	return u.AccountID, a.session.Update(ctx, u)
}

func (a *App) cameraCapture(ctx context.Context) (*face.Capture, error) {
	if a.cfg.CameraDir == "" {
		return nil, fmt.Errorf("%w: set FRIZBANK_CAMERA_DIR to a directory of frames", face.ErrCamera)
	}
	if a.cfg.DetectorURL == "" {
		return nil, errors.New("set FRIZBANK_DETECTOR_URL to the face embedding service")
	}

	sources := config.DefaultFaceModelSources
	threshold := face.DefaultThreshold
	if m, err := a.api.FaceModels(ctx); err == nil && m.Source != "" {
		sources = append([]string{m.Source}, sources...)
		if m.Threshold > 0 {
			threshold = m.Threshold
		}
	}
	httpClient := &http.Client{Timeout: 15 * time.Second}
	loader := face.NewModelLoader(sources, httpClient, a.logger)

	return &face.Capture{
		Camera:     &face.DirCamera{Dir: a.cfg.CameraDir},
		Detector:   &face.HTTPDetector{BaseURL: a.cfg.DetectorURL, Models: loader, Client: httpClient},
		Models:     loader,
		Matcher:    face.NewMatcher(threshold),
		OnProgress: a.progress,
	}, nil
}

func (a *App) progress(p face.Progress) {
	fmt.Fprintf(a.out, "\r%-16s %3d%%", p.State, p.Percent)
	switch p.State {
	case face.Matched, face.TimedOut, face.Failed:
		fmt.Fprintln(a.out)
	}
}
