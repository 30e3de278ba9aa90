package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frizbank/frizbank/internal/money"
)

// Kinds of account notification. Each is published under "notification.<kind>".
const (
	KindDeposit          = "deposit"
	KindTransferReceived = "transfer_received"
)

// Message tells an account holder about money that reached their account.
type Message struct {
	Kind string `json:"kind"`
	// Destination is the user id of the account holder.
	Destination   string    `json:"destination"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	Body          string    `json:"body"`
	At            time.Time `json:"at"`
}

// Deposit confirms a balance addition made through method.
func Deposit(ownerID, txID string, cents int64, currency, method string) Message {
	amount := money.Format(cents)
	return Message{
		Kind:          KindDeposit,
		Destination:   ownerID,
		TransactionID: txID,
		Amount:        amount,
		Currency:      currency,
		Body:          fmt.Sprintf("%s %s added via %s", amount, currency, method),
	}
}

// TransferReceived tells recipientID that sender sent them money.
func TransferReceived(recipientID, txID string, cents int64, currency, sender string) Message {
	amount := money.Format(cents)
	return Message{
		Kind:          KindTransferReceived,
		Destination:   recipientID,
		TransactionID: txID,
		Amount:        amount,
		Currency:      currency,
		Body:          fmt.Sprintf("You received %s %s from %s", amount, currency, sender),
	}
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured log. It is the only
// notifier when no broker is configured.
type LoggerNotifier struct {
	logger *slog.Logger
}

func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

func (n *LoggerNotifier) Send(ctx context.Context, m Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.LogAttrs(ctx, slog.LevelInfo, "notification",
		slog.String("kind", m.Kind),
		slog.String("user_id", m.Destination),
		slog.String("transaction_id", m.TransactionID),
		slog.String("amount", m.Amount),
		slog.String("currency", m.Currency),
	)
	return nil
}
