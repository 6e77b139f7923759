// Package telemetry publishes bus events to an MQTT broker and accepts
// remote chat commands from it.
package telemetry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/cubelink-project/cubelink/internal/config"
	"github.com/cubelink-project/cubelink/internal/events"
	"github.com/cubelink-project/cubelink/internal/util"
)

// Topic suffixes below the configured prefix.
const (
	topicEvents      = "events"
	topicStatus      = "status"
	topicCommandChat = "command/chat"
)

// Bridge mirrors bus events onto MQTT topics.
type Bridge struct {
	bus      *events.EventBus
	client   mqtt.Client
	prefix   string
	metadata map[string]interface{}
	logger   zerolog.Logger
}

// EventTopic returns the topic an event type is published on.
func EventTopic(prefix string, t events.EventType) string {
	return strings.TrimRight(prefix, "/") + "/" + topicEvents + "/" + string(t)
}

// NewBridge configures an MQTT client from cfg. The broker is not contacted
// until Start.
func NewBridge(cfg config.MQTTConfig, bus *events.EventBus) (*Bridge, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("MQTT is disabled")
	}

	sysInfo := util.GetSystemInfo()
	b := &Bridge{
		bus:    bus,
		prefix: strings.TrimRight(cfg.TopicPrefix, "/"),
		metadata: map[string]interface{}{
			"hostname": sysInfo.Hostname,
			"os":       sysInfo.OS,
			"arch":     sysInfo.Architecture,
		},
		logger: util.ComponentLogger("mqtt"),
	}

	scheme := "tcp"
	if cfg.UseTLS {
		scheme = "ssl"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.BrokerURL, cfg.Port))
	if cfg.ClientID != "" {
		opts.SetClientID(cfg.ClientID)
	} else {
		opts.SetClientID("cubelink-" + sysInfo.Hostname)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(true)
	opts.SetWill(b.prefix+"/"+topicStatus, "offline", 1, true)

	if cfg.UseTLS {
		tlsConfig, err := tlsConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		b.logger.Info().Msg("MQTT connected")
		client.Publish(b.prefix+"/"+topicStatus, 1, true, "online")
		client.Subscribe(b.prefix+"/"+topicCommandChat, 1, b.onChatCommand)
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		b.logger.Warn().Err(err).Msg("MQTT connection lost")
	})

	b.client = mqtt.NewClient(opts)
	return b, nil
}

func tlsConfig(cfg config.MQTTConfig) (*tls.Config, error) {
	tc := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load MQTT TLS certificate: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read MQTT CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CAFile)
		}
		tc.RootCAs = pool
	}
	return tc, nil
}

// Start connects to the broker and forwards events until ctx is cancelled.
func (b *Bridge) Start(ctx context.Context) error {
	token := b.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	forwarded := append(append([]events.EventType{}, events.AllWorldEvents...), events.AllSystemEvents...)
	b.bus.SubscribeMany(forwarded, "mqtt.bridge", b.onEvent)

	<-ctx.Done()

	for _, t := range forwarded {
		b.bus.Unsubscribe(t, "mqtt.bridge")
	}
	b.client.Publish(b.prefix+"/"+topicStatus, 1, true, "offline").WaitTimeout(2 * time.Second)
	b.client.Disconnect(5000)
	b.logger.Info().Msg("MQTT disconnected")
	return nil
}

// Entity moves are frequent; they go out at QoS 0.
func qosFor(t events.EventType) byte {
	if t == events.EventEntityMoved {
		return 0
	}
	return 1
}

func (b *Bridge) onEvent(ctx context.Context, event events.Event) error {
	if !b.client.IsConnected() {
		return nil
	}

	data, err := json.Marshal(b.buildMessage(event))
	if err != nil {
		return fmt.Errorf("failed to marshal MQTT message: %w", err)
	}

	topic := EventTopic(b.prefix, event.Type)
	token := b.client.Publish(topic, qosFor(event.Type), false, data)
	go func() {
		token.Wait()
		if token.Error() != nil {
			b.logger.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
	return nil
}

func (b *Bridge) buildMessage(event events.Event) map[string]interface{} {
	msg := make(map[string]interface{}, len(b.metadata)+3)
	for k, v := range b.metadata {
		msg[k] = v
	}
	msg["event"] = event.Type
	msg["payload"] = event.Payload
	msg["timestamp"] = event.Time.UTC().Format(time.RFC3339Nano)
	return msg
}

// onChatCommand accepts either {"message": "..."} or a bare text payload.
func (b *Bridge) onChatCommand(_ mqtt.Client, m mqtt.Message) {
	text, err := ParseChatCommand(m.Payload())
	if err != nil {
		b.logger.Warn().Err(err).Str("topic", m.Topic()).Msg("ignoring chat command")
		return
	}
	b.bus.Emit(context.Background(), events.Event{
		Type:    events.EventSendChat,
		Source:  "mqtt",
		Payload: events.SendChatPayload{Message: text},
	})
}

// ParseChatCommand extracts the chat line from a command payload.
func ParseChatCommand(payload []byte) (string, error) {
	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "{") {
		var cmd events.SendChatPayload
		if err := json.Unmarshal([]byte(trimmed), &cmd); err != nil {
			return "", fmt.Errorf("malformed chat command: %w", err)
		}
		trimmed = strings.TrimSpace(cmd.Message)
	}
	if trimmed == "" {
		return "", fmt.Errorf("empty chat command")
	}
	return trimmed, nil
}
