package operator

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/nugget/contreact/internal/config"
)

// MQTT is the remote operator channel. Agent messages are published to
// <prefix>/agent and operator replies are read from <prefix>/operator, so
// any MQTT client (a phone app, a small bridge script) can act as the
// operator console.
type MQTT struct {
	cfg     config.MQTTConfig
	timeout time.Duration
	logger  *slog.Logger
	cm      *autopaho.ConnectionManager
	replies chan string
}

// NewMQTT connects to the broker and subscribes to the reply topic. The
// initial connection is part of construction: a broker that cannot be
// reached fails fast here so the caller can fall back to the terminal
// channel before the run starts.
func NewMQTT(ctx context.Context, cfg config.MQTTConfig, timeout time.Duration, logger *slog.Logger) (*MQTT, error) {
	brokerURL, err := url.Parse(cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	m := &MQTT{
		cfg:     cfg,
		timeout: timeout,
		logger:  logger,
		// Buffered so a reply arriving after a timeout is kept for the
		// next SendAndWait instead of blocking the paho router.
		replies: make(chan string, 16),
	}

	replyTopic := cfg.TopicPrefix + "/operator"

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: cfg.Username,
		ConnectPassword: []byte(cfg.Password),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			logger.Info("mqtt connected to broker", "broker", cfg.Broker)
			if _, err := cm.Subscribe(ctx, &paho.Subscribe{
				Subscriptions: []paho.SubscribeOptions{
					{Topic: replyTopic, QoS: 1},
				},
			}); err != nil {
				logger.Warn("mqtt subscribe failed", "topic", replyTopic, "error", err)
			}
		},
		OnConnectError: func(err error) {
			logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "contreact-" + uuid.NewString()[:8],
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					if pr.Packet.Topic != replyTopic {
						return false, nil
					}
					select {
					case m.replies <- string(pr.Packet.Payload):
					default:
						logger.Warn("mqtt reply dropped, buffer full")
					}
					return true, nil
				},
			},
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		_ = cm.Disconnect(ctx)
		return nil, fmt.Errorf("mqtt broker unreachable: %w", err)
	}

	m.cm = cm
	return m, nil
}

// SendAndWait publishes the message and waits for the first reply on the
// operator topic, the timeout, or context cancellation.
func (m *MQTT) SendAndWait(ctx context.Context, message, runID string, cycleNumber int) (string, error) {
	formatted := fmt.Sprintf("[AGENT - %s | Cycle %d]: %s", runID, cycleNumber, message)

	if _, err := m.cm.Publish(ctx, &paho.Publish{
		Topic:   m.cfg.TopicPrefix + "/agent",
		Payload: []byte(formatted),
		QoS:     1,
	}); err != nil {
		return "", fmt.Errorf("mqtt publish: %w", err)
	}

	var timeoutC <-chan time.Time
	if m.timeout >= 0 {
		timer := time.NewTimer(m.timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case reply := <-m.replies:
		return reply, nil
	case <-timeoutC:
		m.logger.Warn("operator response timed out", "run_id", runID, "cycle", cycleNumber)
		return NoResponse, nil
	case <-ctx.Done():
		return NoResponse, ctx.Err()
	}
}

// Close disconnects from the broker.
func (m *MQTT) Close(ctx context.Context) error {
	if m.cm == nil {
		return nil
	}
	return m.cm.Disconnect(ctx)
}
