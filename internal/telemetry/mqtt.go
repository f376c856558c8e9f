// Package telemetry subscribes to the helmet's snapshot topic.
package telemetry

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"helmetguard-client/config"
	"helmetguard-client/internal/status"
)

// Sink receives decoded snapshots in arrival order.
type Sink interface {
	Submit(ctx context.Context, s status.Snapshot) error
}

// Subscriber feeds snapshots published on the telemetry topic into a Sink.
type Subscriber struct {
	cfg    *config.TelemetryConfig
	sink   Sink
	client mqtt.Client

	mu        sync.RWMutex
	ctx       context.Context
	connected bool
	received  uint64
	malformed uint64
}

// NewSubscriber creates a subscriber. Connect must be called to start it.
func NewSubscriber(cfg *config.TelemetryConfig, sink Sink) *Subscriber {
	return &Subscriber{cfg: cfg, sink: sink, ctx: context.Background()}
}

// Connect dials the broker and subscribes. Snapshots are delivered until ctx
// ends or Close is called.
func (s *Subscriber) Connect(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(s.cfg.Broker))
	opts.SetClientID(s.cfg.ClientID)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	// snapshots must reach the sink in publish order
	opts.SetOrderMatters(true)

	opts.OnConnect = func(c mqtt.Client) {
		s.setConnected(true)
		log.Printf("Telemetry connected to %s, subscribing to %q", s.cfg.Broker, s.cfg.Topic)
		token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.handleMessage)
		if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
			log.Printf("Telemetry subscription to %q failed: %v", s.cfg.Topic, token.Error())
		}
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		s.setConnected(false)
		log.Printf("Telemetry connection lost, will auto-reconnect: %v", err)
	}

	s.client = mqtt.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	go func() {
		<-ctx.Done()
		s.Close()
	}()
	return nil
}

// Close unsubscribes and disconnects.
func (s *Subscriber) Close() {
	if s.client == nil || !s.client.IsConnected() {
		return
	}
	s.client.Unsubscribe(s.cfg.Topic).WaitTimeout(time.Second)
	s.client.Disconnect(250)
	s.setConnected(false)
}

// Stats returns the delivery counters.
func (s *Subscriber) Stats() (connected bool, received, malformed uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected, s.received, s.malformed
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

func (s *Subscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	snap, err := status.Decode(msg.Payload())

	s.mu.Lock()
	ctx := s.ctx
	if err != nil {
		s.malformed++
	} else {
		s.received++
	}
	s.mu.Unlock()

	if err != nil {
		log.Printf("Dropping malformed telemetry on %q: %v", msg.Topic(), err)
		return
	}
	if err := s.sink.Submit(ctx, snap); err != nil {
		log.Printf("Telemetry snapshot not delivered: %v", err)
	}
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}
