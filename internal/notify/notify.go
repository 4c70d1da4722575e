// Package notify delivers user facing events produced by the market engine
// after a transaction has committed.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var ErrDeliveryRejected = errors.New("notification delivery rejected")

type Kind string

const (
	KindOrderCreated         Kind = "order.created"
	KindOrderStatusChanged   Kind = "order.status_changed"
	KindRentalExpired        Kind = "order.rental_expired"
	KindAccountReclaimed     Kind = "account.reclaimed"
	KindTransactionCreated   Kind = "wallet.transaction_created"
	KindTransactionApproved  Kind = "wallet.transaction_approved"
	KindTransactionRejected  Kind = "wallet.transaction_rejected"
	KindAccountVisibilitySet Kind = "account.visibility_set"
)

type Event struct {
	Kind    Kind              `json:"kind"`
	UserID  string            `json:"user_id"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data,omitempty"`
	SentAt  time.Time         `json:"sent_at"`
}

// Notifier is a delivery channel. Errors are reported to the caller, who
// decides whether they matter.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

// Log writes events to a structured logger. It is the fallback sink when no
// remote channel is configured.
type Log struct {
	log *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{
		log: logger.With(slog.String("module", "notify")),
	}
}

func (n *Log) Notify(_ context.Context, evt Event) error {
	n.log.Info("Notification",
		slog.String("kind", string(evt.Kind)),
		slog.String("user_id", evt.UserID),
		slog.String("title", evt.Title),
		slog.String("message", evt.Message),
	)

	return nil
}

// Multi fans an event out to every sink and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, evt Event) error {
	var errs []error

	for _, n := range m {
		if err := n.Notify(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error {
	return nil
}
