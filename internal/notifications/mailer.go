package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/medledger-backend/pkg/enums"
	"github.com/angelmondragon/medledger-backend/pkg/logger"
)

const emailPublishTimeout = 10 * time.Second

// EmailMessage is the payload the external email dispatcher renders.
type EmailMessage struct {
	Type   enums.EmailType `json:"type"`
	To     string          `json:"to"`
	Data   map[string]any  `json:"data,omitempty"`
	SentAt time.Time       `json:"sent_at"`
}

type emailPublisher interface {
	Publish(context.Context, *gcppubsub.Message) emailPublishResult
}

type emailPublishResult interface {
	Get(context.Context) (string, error)
}

// Mailer hands templated emails to the dispatcher topic.
type Mailer struct {
	publisher emailPublisher
	logg      *logger.Logger
	now       func() time.Time
}

// NewMailer wraps the email topic publisher.
func NewMailer(publisher *gcppubsub.Publisher, logg *logger.Logger) (*Mailer, error) {
	if publisher == nil {
		return nil, errors.New("email publisher required")
	}
	return newMailer(gcpEmailPublisher{publisher: publisher}, logg)
}

func newMailer(publisher emailPublisher, logg *logger.Logger) (*Mailer, error) {
	if publisher == nil {
		return nil, errors.New("email publisher required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Mailer{publisher: publisher, logg: logg, now: time.Now}, nil
}

// Send publishes one email and waits for the broker to accept it.
func (m *Mailer) Send(ctx context.Context, emailType enums.EmailType, recipient string, data map[string]any) error {
	if !emailType.IsValid() {
		return fmt.Errorf("unsupported email type %q", emailType)
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return errors.New("email recipient required")
	}

	body, err := json.Marshal(EmailMessage{
		Type:   emailType,
		To:     recipient,
		Data:   data,
		SentAt: m.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, emailPublishTimeout)
	defer cancel()
	result := m.publisher.Publish(publishCtx, &gcppubsub.Message{
		Data:       body,
		Attributes: map[string]string{"email_type": string(emailType)},
	})
	if result == nil {
		return errors.New("email publisher returned no result")
	}
	id, err := result.Get(publishCtx)
	if err != nil {
		return fmt.Errorf("publish email: %w", err)
	}
	m.logg.Debug(m.logg.WithFields(ctx, map[string]any{
		"email_type": emailType,
		"message_id": id,
	}), "email queued")
	return nil
}

type gcpEmailPublisher struct {
	publisher *gcppubsub.Publisher
}

func (p gcpEmailPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) emailPublishResult {
	return p.publisher.Publish(ctx, msg)
}
