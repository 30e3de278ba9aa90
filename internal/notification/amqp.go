package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange notifications are published to.
const DefaultExchange = "frizbank.notifications"

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPNotifier publishes messages as JSON to a topic exchange. The routing
// key is "notification.<kind>".
type AMQPNotifier struct {
	exchange string
	channel  Channel
	conn     *amqp.Connection
	logger   *slog.Logger

	declareOnce sync.Once
	declareErr  error
}

// NormalizeAMQPURL trims quotes and whitespace and checks the scheme.
func NormalizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// DialAMQP connects to the broker at rawURL and opens a publishing channel.
func DialAMQP(rawURL, exchange string, logger *slog.Logger) (*AMQPNotifier, error) {
	clean, err := NormalizeAMQPURL(rawURL)
	if err != nil {
		return nil, err
	}
	conn, err := amqp.Dial(clean)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	n := NewAMQPNotifier(ch, exchange, logger)
	n.conn = conn
	return n, nil
}

// NewAMQPNotifier publishes on an already open channel.
func NewAMQPNotifier(ch Channel, exchange string, logger *slog.Logger) *AMQPNotifier {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPNotifier{exchange: exchange, channel: ch, logger: logger}
}

// Send declares the exchange on first use and publishes message.
func (n *AMQPNotifier) Send(ctx context.Context, message Message) error {
	n.declareOnce.Do(func() {
		n.declareErr = n.channel.ExchangeDeclare(n.exchange, "topic", true, false, false, false, nil)
	})
	if n.declareErr != nil {
		return fmt.Errorf("declare exchange %s: %w", n.exchange, n.declareErr)
	}

	if message.At.IsZero() {
		message.At = time.Now().UTC()
	}
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}
	key := "notification." + message.Kind
	if err := n.channel.PublishWithContext(ctx, n.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    message.At,
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	n.logger.Debug("notification published", slog.String("routing_key", key), slog.String("destination", message.Destination))
	return nil
}

// Close releases the channel and, when dialed here, the connection.
func (n *AMQPNotifier) Close() error {
	err := n.channel.Close()
	if n.conn != nil {
		if cerr := n.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Fanout delivers to every notifier and joins their errors.
type Fanout []Notifier

func (f Fanout) Send(ctx context.Context, message Message) error {
	var errs []error
	for _, n := range f {
		if err := n.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
