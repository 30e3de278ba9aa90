package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/frizbank/frizbank/internal/kv"
)

// ErrNotAuthenticated is returned when no user is logged in.
var ErrNotAuthenticated = errors.New("not authenticated")

// User is the session's view of the logged-in account holder.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	AccountID    string `json:"account_id,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Persister saves and restores the current user across restarts.
type Persister interface {
	Save(ctx context.Context, u User) error
	Load(ctx context.Context) (User, bool, error)
	Clear(ctx context.Context) error
}

// KVPersister keeps the current user under the currentUser key.
type KVPersister struct {
	Store  kv.Store
	Logger *slog.Logger
}

func (p KVPersister) Save(ctx context.Context, u User) error {
	return kv.SetJSON(ctx, p.Store, kv.CurrentUserKey, u, 0)
}

func (p KVPersister) Load(ctx context.Context) (User, bool, error) {
	var u User
	ok, err := kv.GetJSON(ctx, p.Store, p.Logger, kv.CurrentUserKey, &u)
	if err != nil || !ok || u.Email == "" {
		return User{}, false, err
	}
	return u, true, nil
}

func (p KVPersister) Clear(ctx context.Context) error {
	return p.Store.Remove(ctx, kv.CurrentUserKey)
}

// Store holds the single logged-in user of a client process. Create one at
// start-up and pass it to whatever needs it.
type Store struct {
	mu        sync.RWMutex
	user      *User
	persister Persister
	bus       *Bus
}

// NewStore builds a session store publishing on bus.
func NewStore(persister Persister, bus *Bus) *Store {
	if bus == nil {
		bus = NewBus(nil)
	}
	return &Store{persister: persister, bus: bus}
}

// Bus exposes the event bus for subscriptions.
func (s *Store) Bus() *Bus { return s.bus }

// Login sets, persists and announces u.
func (s *Store) Login(ctx context.Context, u User) error {
	if err := s.persister.Save(ctx, u); err != nil {
		return err
	}
	s.mu.Lock()
	held := u
	s.user = &held
	s.mu.Unlock()
	s.bus.Publish(Event{Type: EventLogin, UserID: u.ID, Email: u.Email})
	return nil
}

// Logout clears the held and persisted user and announces it.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	prev := s.user
	s.user = nil
	s.mu.Unlock()

	err := s.persister.Clear(ctx)

	ev := Event{Type: EventLogout}
	if prev != nil {
		ev.UserID, ev.Email = prev.ID, prev.Email
	}
	s.bus.Publish(ev)
	return err
}

// Register announces a new registration without logging the user in.
func (s *Store) Register(u User) {
	s.bus.Publish(Event{Type: EventRegister, UserID: u.ID, Email: u.Email})
}

// Update replaces the held user, e.g. after a token refresh or profile edit.
func (s *Store) Update(ctx context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return ErrNotAuthenticated
	}
	if err := s.persister.Save(ctx, u); err != nil {
		return err
	}
	held := u
	s.user = &held
	return nil
}

// Current returns the held user.
func (s *Store) Current() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// CheckAuth reloads the persisted user.
func (s *Store) CheckAuth(ctx context.Context) (User, error) {
	u, ok, err := s.persister.Load(ctx)
	if err != nil {
		return User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok {
		s.user = nil
		return User{}, ErrNotAuthenticated
	}
	s.user = &u
	return u, nil
}

// Reset drops every observer. The held user is kept.
func (s *Store) Reset() {
	s.bus.Reset()
}
