// Package bus hands rendered mail to the outbound mail service over the event bus.
package bus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/rentflow/pkg/eventbus"
	"github.com/dukex/rentflow/pkg/events"
	"github.com/dukex/rentflow/pkg/protocol"
	"github.com/google/uuid"
)

// Mailer implements protocol.Mailer by publishing mail.requested events. The
// publisher is expected to be bound to events.MailTopic.
type Mailer struct {
	publisher eventbus.EventPublisher
	logger    *slog.Logger
	newID     func() string
}

func NewMailer(publisher eventbus.EventPublisher, logger *slog.Logger) *Mailer {
	return &Mailer{
		publisher: publisher,
		logger:    logger.With("module", "bus_mailer"),
		newID:     uuid.NewString,
	}
}

func (m *Mailer) SendMail(ctx context.Context, mail protocol.Mail) error {
	event := &events.MailRequested{
		BaseEvent: events.NewBaseEvent(m.newID(), events.MailRequestedEvent, ""),
		To:        mail.To,
		Subject:   mail.Subject,
		Body:      mail.Body,
	}

	err := m.publisher.Publish(ctx, mail.To, event)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to publish mail request", "to", mail.To, "error", err)

		return fmt.Errorf("failed to hand off mail: %w", err)
	}

	m.logger.DebugContext(ctx, "Mail handed off", "to", mail.To, "event_id", event.ID)

	return nil
}
