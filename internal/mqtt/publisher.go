// Package mqtt mirrors the event bus onto an MQTT broker so external
// home-automation systems can follow appliance state in real time.
// Every bus event goes out on an event topic; appliance state changes
// additionally publish a retained per-appliance state topic, and an
// availability topic with a will message tracks whether the service
// itself is up.
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/ParamSingh24/PrakashAI/internal/config"
	"github.com/ParamSingh24/PrakashAI/internal/events"
)

// busBuffer is the subscription buffer; a slow broker drops events
// rather than blocking publishers.
const busBuffer = 64

// Publisher bridges the event bus to the broker.
type Publisher struct {
	cfg config.MQTTConfig
	bus *events.Bus
	log *slog.Logger
	cm  *autopaho.ConnectionManager
}

// New creates a Publisher but does not connect. Call Start to begin
// the connection and relay loop.
func New(cfg config.MQTTConfig, bus *events.Bus, log *slog.Logger) *Publisher {
	if cfg.DeviceName == "" {
		cfg.DeviceName = "prakashai"
	}
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = "prakashai/" + cfg.DeviceName
	}
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{cfg: cfg, bus: bus, log: log}
}

// Start connects to the broker and relays bus events until ctx is
// cancelled.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   p.availabilityTopic(),
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.log.Info("mqtt connected", "broker", p.cfg.Broker)
			p.publishAvailability(ctx, cm, "online")
		},
		OnConnectError: func(err error) {
			p.log.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "prakashai-" + p.cfg.DeviceName,
		},
	}
	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.cm = cm

	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		// autopaho keeps retrying in the background.
		p.log.Warn("mqtt initial connection timed out, retrying in background", "error", err)
	}

	p.relay(ctx)
	return nil
}

// Stop publishes an offline availability message and disconnects.
func (p *Publisher) Stop(ctx context.Context) error {
	if p.cm == nil {
		return nil
	}
	p.publishAvailability(ctx, p.cm, "offline")
	return p.cm.Disconnect(ctx)
}

func (p *Publisher) availabilityTopic() string {
	return p.cfg.BaseTopic + "/availability"
}

// EventTopic is the topic one bus event publishes to.
func (p *Publisher) EventTopic(e events.Event) string {
	return fmt.Sprintf("%s/events/%s/%s", p.cfg.BaseTopic, e.Source, e.Kind)
}

// ApplianceStateTopic is the retained per-appliance state topic.
func (p *Publisher) ApplianceStateTopic(uid string) string {
	return fmt.Sprintf("%s/appliance/%s/state", p.cfg.BaseTopic, uid)
}

// relay pumps bus events to the broker until ctx is cancelled.
func (p *Publisher) relay(ctx context.Context) {
	sub := p.bus.Subscribe(busBuffer)
	defer p.bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			p.publishEvent(ctx, e)
		}
	}
}

func (p *Publisher) publishEvent(ctx context.Context, e events.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		p.log.Error("mqtt marshal event", "kind", e.Kind, "error", err)
		return
	}
	if _, err := p.cm.Publish(ctx, &paho.Publish{
		Topic:   p.EventTopic(e),
		Payload: payload,
		QoS:     0,
	}); err != nil {
		p.log.Debug("mqtt event publish failed", "kind", e.Kind, "error", err)
	}

	if e.Kind != events.KindStateChange {
		return
	}
	uid, _ := e.Data["uid"].(string)
	if uid == "" {
		return
	}
	state, err := json.Marshal(e.Data)
	if err != nil {
		return
	}
	if _, err := p.cm.Publish(ctx, &paho.Publish{
		Topic:   p.ApplianceStateTopic(uid),
		Payload: state,
		QoS:     1,
		Retain:  true,
	}); err != nil {
		p.log.Debug("mqtt state publish failed", "uid", uid, "error", err)
	}
}

func (p *Publisher) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   p.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		p.log.Warn("mqtt availability publish failed", "status", status, "error", err)
	}
}
