package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	writer := &recordingWriter{}
	publisher := newKafkaPublisher(writer, time.Second)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	publisher.now = func() time.Time { return fixed }

	err := publisher.Publish(context.Background(), Event{Type: TypeLoginSucceeded, UserID: 7, AccountID: 9, IP: "10.0.0.1"})
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "9", string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, TypeLoginSucceeded, string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.NotEmpty(t, decoded.ID)
	assert.Equal(t, uint(7), decoded.UserID)
	assert.True(t, decoded.OccurredAt.Equal(fixed))
}

func TestKafkaPublisher_KeyFallsBackToUser(t *testing.T) {
	writer := &recordingWriter{}
	publisher := newKafkaPublisher(writer, 0)

	require.NoError(t, publisher.Publish(context.Background(), Event{Type: TypeLoginFailed, UserID: 3}))
	assert.Equal(t, "3", string(writer.messages[0].Key))
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	writer := &recordingWriter{err: errors.New("broker down")}
	publisher := newKafkaPublisher(writer, time.Second)

	err := publisher.Publish(context.Background(), Event{Type: TypeLogout})
	require.Error(t, err)
	assert.Contains(t, err.Error(), TypeLogout)

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}
