package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/medledger-backend/pkg/enums"
	"github.com/angelmondragon/medledger-backend/pkg/logger"
)

type fakeEmailResult struct {
	err error
}

func (f fakeEmailResult) Get(context.Context) (string, error) {
	return "server-id", f.err
}

type fakeEmailPublisher struct {
	messages []*gcppubsub.Message
	err      error
}

func (f *fakeEmailPublisher) Publish(_ context.Context, msg *gcppubsub.Message) emailPublishResult {
	f.messages = append(f.messages, msg)
	return fakeEmailResult{err: f.err}
}

func newTestMailer(t *testing.T, pub *fakeEmailPublisher) *Mailer {
	t.Helper()
	m, err := newMailer(pub, logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}))
	require.NoError(t, err)
	m.now = func() time.Time { return time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC) }
	return m
}

func TestMailerPublishesMessage(t *testing.T) {
	pub := &fakeEmailPublisher{}
	m := newTestMailer(t, pub)

	err := m.Send(context.Background(), enums.EmailTransferSent, " ana@example.com ", map[string]any{"amount": "25.00"})
	require.NoError(t, err)
	require.Len(t, pub.messages, 1)
	assert.Equal(t, "transfer_sent", pub.messages[0].Attributes["email_type"])

	var decoded EmailMessage
	require.NoError(t, json.Unmarshal(pub.messages[0].Data, &decoded))
	assert.Equal(t, enums.EmailTransferSent, decoded.Type)
	assert.Equal(t, "ana@example.com", decoded.To)
	assert.Equal(t, "25.00", decoded.Data["amount"])
}

func TestMailerRejectsInvalidInput(t *testing.T) {
	pub := &fakeEmailPublisher{}
	m := newTestMailer(t, pub)

	assert.Error(t, m.Send(context.Background(), "newsletter", "ana@example.com", nil))
	assert.Error(t, m.Send(context.Background(), enums.EmailDepositApproved, "  ", nil))
	assert.Empty(t, pub.messages)
}

func TestMailerSurfacesPublishErrors(t *testing.T) {
	m := newTestMailer(t, &fakeEmailPublisher{err: errors.New("unavailable")})

	err := m.Send(context.Background(), enums.EmailDepositApproved, "ana@example.com", nil)
	assert.ErrorContains(t, err, "unavailable")
}
