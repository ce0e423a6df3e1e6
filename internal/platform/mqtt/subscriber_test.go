package mqtt

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestSubscriber_DispatchesMessages(t *testing.T) {
	var gotTopic string
	var gotPayload []byte
	s := NewSubscriber(Config{Broker: "tcp://127.0.0.1:1883", ClientID: "test", Topic: "medicai/observations/+"},
		func(ctx context.Context, topic string, payload []byte) error {
			require.NoError(t, ctx.Err())
			gotTopic, gotPayload = topic, payload
			return nil
		}, zerolog.Nop())

	s.onMessage(nil, fakeMessage{topic: "medicai/observations/abc", payload: []byte(`{"observations":[]}`)})
	assert.Equal(t, "medicai/observations/abc", gotTopic)
	assert.Equal(t, `{"observations":[]}`, string(gotPayload))
}

func TestSubscriber_LogsHandlerErrors(t *testing.T) {
	var buf bytes.Buffer
	s := NewSubscriber(Config{Broker: "tcp://127.0.0.1:1883", ClientID: "test", Topic: "t/+"},
		func(context.Context, string, []byte) error { return errors.New("bad payload") },
		zerolog.New(&buf))

	s.onMessage(nil, fakeMessage{topic: "t/1", payload: []byte("x")})
	assert.Contains(t, buf.String(), "bad payload")
	assert.Contains(t, buf.String(), "message rejected")
}

func TestSubscriber_ClientOptions(t *testing.T) {
	s := NewSubscriber(Config{Broker: "tcp://broker:1883", ClientID: "medicai-server", Topic: "t"},
		func(context.Context, string, []byte) error { return nil }, zerolog.Nop())
	opts := s.clientOptions()
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "broker:1883", opts.Servers[0].Host)
	assert.Equal(t, "medicai-server", opts.ClientID)
	assert.True(t, opts.AutoReconnect)
}

func TestSubscriber_StopCancelsContext(t *testing.T) {
	s := NewSubscriber(Config{Broker: "tcp://127.0.0.1:1", ClientID: "test", Topic: "t"},
		func(context.Context, string, []byte) error { return nil }, zerolog.Nop())
	s.Stop()
	assert.Error(t, s.ctx.Err())
}
