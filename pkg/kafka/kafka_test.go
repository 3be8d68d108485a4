package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestNewClient(t *testing.T) {
	c := NewClient(" k1:9092, ,k2:9092 ")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Brokers)
	assert.True(t, c.Enabled())

	w, err := c.NewWriter()
	require.NoError(t, err)
	assert.Empty(t, w.Topic)

	_, err = NewClient("").NewWriter()
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestPublisher_Publish(t *testing.T) {
	fw := &fakeWriter{}
	p := NewPublisher(fw)

	err := p.Publish(context.Background(), "sale.completed", "42", []byte(`{"sale_id":42}`), map[string]string{"event_id": "e-1"})
	require.NoError(t, err)
	require.Len(t, fw.msgs, 1)

	msg := fw.msgs[0]
	assert.Equal(t, "sale.completed", msg.Topic)
	assert.Equal(t, []byte("42"), msg.Key)
	assert.JSONEq(t, `{"sale_id":42}`, string(msg.Value))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("e-1"), msg.Headers[0].Value)
	assert.False(t, msg.Time.IsZero())

	fw.err = errors.New("broker down")
	assert.Error(t, p.Publish(context.Background(), "t", "k", nil, nil))
}
