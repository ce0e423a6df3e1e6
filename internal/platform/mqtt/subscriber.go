package mqtt

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// MessageHandler processes one inbound message. Errors are logged; the
// message is not redelivered.
type MessageHandler func(ctx context.Context, topic string, payload []byte) error

type Config struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
}

// Subscriber consumes device messages from one topic filter and hands them
// to a MessageHandler. It resubscribes after every reconnect.
type Subscriber struct {
	cfg     Config
	client  paho.Client
	handler MessageHandler
	logger  zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewSubscriber(cfg Config, handler MessageHandler, logger zerolog.Logger) *Subscriber {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Subscriber{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With().Str("component", "mqtt").Str("topic", cfg.Topic).Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.client = paho.NewClient(s.clientOptions())
	return s
}

func (s *Subscriber) clientOptions() *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(c paho.Client) {
		token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.onMessage)
		if token.Wait() && token.Error() != nil {
			s.logger.Error().Err(token.Error()).Msg("subscribe failed")
			return
		}
		s.logger.Info().Msg("subscribed")
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		s.logger.Warn().Err(err).Msg("connection lost")
	})
	return opts
}

func (s *Subscriber) Start() error {
	token := s.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect to MQTT broker %s: %w", s.cfg.Broker, token.Error())
	}
	return nil
}

func (s *Subscriber) onMessage(_ paho.Client, msg paho.Message) {
	if err := s.handler(s.ctx, msg.Topic(), msg.Payload()); err != nil {
		s.logger.Warn().Err(err).Str("message_topic", msg.Topic()).Msg("message rejected")
	}
}

func (s *Subscriber) Stop() {
	s.cancel()
	if s.client.IsConnected() {
		s.client.Unsubscribe(s.cfg.Topic).WaitTimeout(time.Second)
		s.client.Disconnect(250)
	}
}
