package session

import (
	"fmt"
	"log/slog"
	"sync"
)

// EventType names a session lifecycle change.
type EventType string

const (
	EventLogin    EventType = "login"
	EventLogout   EventType = "logout"
	EventRegister EventType = "register"
)

// Event is delivered to every observer of a Bus.
type Event struct {
	Type   EventType
	UserID string
	Email  string
}

type subscriber struct {
	id int
	fn func(Event)
}

// Bus fans events out to observers synchronously, in subscription order.
type Bus struct {
	mu     sync.Mutex
	subs   []subscriber
	nextID int
	logger *slog.Logger
}

// NewBus creates an empty bus. A nil logger falls back to slog.Default.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Event)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers ev to a snapshot of the current observers. A panicking
// observer is logged and skipped.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	subs := append([]subscriber(nil), b.subs...)
	b.mu.Unlock()

	for _, s := range subs {
		b.deliver(s, ev)
	}
}

// Reset drops every observer.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
}

// Len reports the number of observers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bus) deliver(s subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("session observer panicked",
				slog.String("event", string(ev.Type)),
				slog.String("panic", fmt.Sprint(r)))
		}
	}()
	s.fn(ev)
}
