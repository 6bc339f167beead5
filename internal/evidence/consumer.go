package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/medledger-backend/pkg/enums"
	"github.com/angelmondragon/medledger-backend/pkg/logger"
	"github.com/angelmondragon/medledger-backend/pkg/outbox"
	"github.com/angelmondragon/medledger-backend/pkg/outbox/payloads"
)

const deletionConsumerName = "evidence-deletion"

type objectDeleter interface {
	DeleteObject(ctx context.Context, bucket, object string) error
}

type processedTracker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// DeletionConsumer removes released evidence objects from GCS.
type DeletionConsumer struct {
	store        objectDeleter
	bucket       string
	idempotency  processedTracker
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

// NewDeletionConsumer wires the consumer to its subscription.
func NewDeletionConsumer(store objectDeleter, bucket string, tracker processedTracker, subscription *pubsub.Subscriber, logg *logger.Logger) (*DeletionConsumer, error) {
	if store == nil {
		return nil, errors.New("object store is required")
	}
	if bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	if tracker == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if subscription == nil {
		return nil, errors.New("evidence deletion subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &DeletionConsumer{
		store:        store,
		bucket:       bucket,
		idempotency:  tracker,
		subscription: subscription,
		logg:         logg,
	}, nil
}

// Run processes deletion events until the context is canceled.
func (c *DeletionConsumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *DeletionConsumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	if eventType != string(enums.EventEvidenceReleased) {
		c.logg.Info(logCtx, "skipping non-release event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	var payload payloads.EvidenceReleasedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}
	if payload.GCSKey == "" {
		c.logg.Error(logCtx, "payload missing gcs key", fmt.Errorf("empty gcs_key"))
		return processResult{ack: true}
	}
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"evidence_id": payload.EvidenceID.String(),
		"gcs_key":     payload.GCSKey,
		"reason":      payload.Reason,
	})

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, deletionConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.store.DeleteObject(ctx, c.bucket, payload.GCSKey); err != nil {
		c.logg.Error(logCtx, "evidence object deletion failed", err)
		_ = c.idempotency.Delete(ctx, deletionConsumerName, eventID)
		return processResult{nack: true}
	}

	c.logg.Info(logCtx, "evidence object deleted")
	return processResult{ack: true}
}
