package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neargud/catalog/pkg/logger"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: logger.Discard()}

	event, err := NewEvent("category.created", "cat-1", "category", "catalog", map[string]string{"name": "Shoes"})
	require.NoError(t, err)
	event.WithCorrelationID("req-9")

	require.NoError(t, p.Publish(context.Background(), "catalog.category", event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "catalog.category", msg.Topic)
	assert.Equal(t, []byte("cat-1"), msg.Key)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "category.created", headers["event_type"])
	assert.Equal(t, "req-9", headers["correlation_id"])

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	var payload map[string]string
	require.NoError(t, decoded.UnmarshalData(&payload))
	assert.Equal(t, "Shoes", payload["name"])
	assert.Equal(t, 1, decoded.Version)
}

func TestProducer_PublishError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("leader not available")}, logger: logger.Discard()}
	event, err := NewEvent("product.created", "p-1", "product", "catalog", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), "catalog.product", event)
	assert.ErrorContains(t, err, "publish event to catalog.product")
}

func TestProducer_PingWithoutBrokers(t *testing.T) {
	p := &Producer{writer: &fakeWriter{}, logger: logger.Discard()}
	assert.Error(t, p.Ping(context.Background()))
}
