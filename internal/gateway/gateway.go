package gateway

import (
	"context"
	"errors"
	"iotd/internal/models"
	"iotd/internal/monitoring"
	"iotd/internal/providers"
	"iotd/internal/structures"
	"iotd/internal/telemetry"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/atomic"
)

const shutdownQuiesceMs = 1000

type GatewayInterface interface {
	Connect(ctx context.Context) error
	Subscribe(pattern string, handler Handler) error
	Publish(topic string, payload []byte, qos byte) bool
	PublishCommand(cmd *models.Command) bool
	IsConnected() bool
	Stats() Stats
	Shutdown()
}

type Stats struct {
	Connected bool  `json:"connected"`
	Received  int64 `json:"received"`
	Dropped   int64 `json:"dropped"`
	Published int64 `json:"published"`
}

type Gateway struct {
	conf    *structures.MqttConfig
	matcher *TopicMatcher
	tracker monitoring.TrackerInterface
	ingest  telemetry.ServiceInterface
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
	dial    Dialer
	now     func() time.Time

	mu     sync.RWMutex
	client BusClient

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	received  atomic.Int64
	dropped   atomic.Int64
	published atomic.Int64
}

func NewGateway(conf *structures.Config, tracker monitoring.TrackerInterface, ingest telemetry.ServiceInterface, logger providers.Logger, metrics providers.MetricsProviderInterface) *Gateway {
	return newGateway(conf, tracker, ingest, logger, metrics, DialPaho)
}

func newGateway(conf *structures.Config, tracker monitoring.TrackerInterface, ingest telemetry.ServiceInterface, logger providers.Logger, metrics providers.MetricsProviderInterface, dial Dialer) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		conf:    &conf.Mqtt,
		matcher: NewTopicMatcher(conf.Mqtt.TopicPrefix),
		tracker: tracker,
		ingest:  ingest,
		logger:  logger,
		metrics: metrics,
		dial:    dial,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (g *Gateway) qos() byte {
	return byte(g.conf.Qos)
}

func (g *Gateway) bus() BusClient {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.client
}

// Connect opens the broker session and subscribes to the wildcard topics of
// every inbound kind plus the demo topic.
func (g *Gateway) Connect(ctx context.Context) error {
	client, err := g.dial(ctx, g.conf, func(err error) {
		g.logger.Errorf(providers.TypeMqtt, "Connection to broker lost: %s", err)
	})
	if err != nil {
		g.logger.Errorf(providers.TypeMqtt, "Failed to connect to broker %s:%d: %s", g.conf.Host, g.conf.Port, err)
		return err
	}
	g.mu.Lock()
	g.client = client
	g.mu.Unlock()
	g.logger.Infof(providers.TypeMqtt, "Connected to broker %s:%d", g.conf.Host, g.conf.Port)

	for _, kind := range inboundKinds {
		if err := g.Subscribe(g.matcher.Wildcard(kind), g.dispatch); err != nil {
			return err
		}
	}
	if g.conf.DemoTopic != "" {
		if err := g.Subscribe(g.conf.DemoTopic, g.handleDemo); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) Subscribe(pattern string, handler Handler) error {
	client := g.bus()
	if client == nil {
		return ErrNotConnected
	}
	if err := client.Subscribe(pattern, g.qos(), handler); err != nil {
		g.logger.Errorf(providers.TypeMqtt, "Failed to subscribe to %s: %s", pattern, err)
		return err
	}
	g.logger.Infof(providers.TypeMqtt, "Subscribed to %s", pattern)
	return nil
}

// dispatch routes one message from a device wildcard subscription.
func (g *Gateway) dispatch(msg Message) {
	if g.closed.Load() {
		return
	}
	g.received.Inc()
	route, err := g.matcher.Match(msg.Topic)
	if err != nil {
		g.dropped.Inc()
		g.metrics.IncMessagesDropped("malformed_topic")
		g.logger.Warnf(providers.TypeMqtt, "Dropping message on %q: %s", msg.Topic, err)
		return
	}
	g.metrics.IncMessagesReceived(route.Kind.String())
	ctx := g.ctx

	switch route.Kind {
	case KindTelemetry:
		g.handleTelemetry(ctx, route.DeviceID, msg.Payload)
	case KindHeartbeat:
		_ = g.tracker.UpdateHeartbeat(ctx, route.DeviceID, models.ParseMetadata(msg.Payload))
	case KindStatus:
		g.handleStatus(ctx, route.DeviceID, msg.Payload)
	case KindCommand:
		g.logger.Debugf(providers.TypeMqtt, "Ignoring command echo for device %d", route.DeviceID)
	}
}

func (g *Gateway) handleTelemetry(ctx context.Context, deviceID int64, payload []byte) {
	if _, err := g.ingest.Save(ctx, deviceID, payload); err != nil {
		if errors.Is(err, telemetry.ErrDeviceNotFound) {
			g.logger.Warnf(providers.TypeMqtt, "Telemetry for unregistered device %d not stored", deviceID)
		} else {
			g.logger.Errorf(providers.TypeMqtt, "Failed to store telemetry for device %d: %s", deviceID, err)
		}
	}
	_ = g.tracker.MarkOnline(ctx, deviceID, models.ParseMetadata(payload))
	g.subscribeDevice(ctx, deviceID)
}

func (g *Gateway) handleStatus(ctx context.Context, deviceID int64, payload []byte) {
	switch classifyStatus(payload) {
	case statusOffline:
		_ = g.tracker.MarkOffline(ctx, deviceID)
	case statusOnline:
		_ = g.tracker.MarkOnline(ctx, deviceID, models.ParseMetadata(payload))
	default:
		_ = g.tracker.UpdateHeartbeat(ctx, deviceID, models.ParseMetadata(payload))
	}
}

func (g *Gateway) handleDemo(msg Message) {
	if g.closed.Load() {
		return
	}
	g.received.Inc()
	g.metrics.IncMessagesReceived("demo")
	g.logger.Infof(providers.TypeMqtt, "Received %q on %s", msg.Payload, msg.Topic)
	g.ingest.CheckTemperature(msg.Topic, msg.Payload)
}

// subscribeDevice subscribes to the device's concrete topics once. The cache
// is marked only after the broker acknowledges.
func (g *Gateway) subscribeDevice(ctx context.Context, deviceID int64) {
	if !g.tracker.ShouldSubscribe(ctx, deviceID) {
		return
	}
	client := g.bus()
	if client == nil {
		return
	}
	topics := g.matcher.DeviceTopics(deviceID)
	client.SubscribeMultiple(topics, g.qos(), func(err error) {
		if err != nil {
			g.logger.Warnf(providers.TypeMqtt, "Subscription for device %d failed: %s", deviceID, err)
			return
		}
		g.tracker.MarkSubscribed(g.ctx, deviceID)
		g.logger.Debugf(providers.TypeMqtt, "Subscribed to topics of device %d", deviceID)
	})
}

// Publish hands the message to the client without waiting for the broker.
func (g *Gateway) Publish(topic string, payload []byte, qos byte) bool {
	client := g.bus()
	if client == nil || g.closed.Load() {
		g.metrics.IncPublished("rejected")
		g.logger.Errorf(providers.TypeMqtt, "Publish to %s rejected: %s", topic, ErrNotConnected)
		return false
	}
	ok := client.Publish(topic, qos, payload, func(err error) {
		if err != nil {
			g.metrics.IncPublished("failed")
			g.logger.Errorf(providers.TypeMqtt, "Publish to %s failed: %s", topic, err)
			return
		}
		g.logger.Debugf(providers.TypeMqtt, "Published %d bytes to %s", len(payload), topic)
	})
	if !ok {
		g.metrics.IncPublished("rejected")
		g.logger.Errorf(providers.TypeMqtt, "Publish to %s rejected by client", topic)
		return false
	}
	g.published.Inc()
	g.metrics.IncPublished("accepted")
	return true
}

func (g *Gateway) PublishCommand(cmd *models.Command) bool {
	body, err := json.Marshal(models.NewCommandEnvelope(cmd, g.now()))
	if err != nil {
		g.logger.Errorf(providers.TypeMqtt, "Failed to encode command %d: %s", cmd.ID, err)
		return false
	}
	return g.Publish(g.matcher.Topic(cmd.DeviceID, KindCommand), body, 1)
}

func (g *Gateway) IsConnected() bool {
	client := g.bus()
	return client != nil && client.IsConnected()
}

func (g *Gateway) Stats() Stats {
	return Stats{
		Connected: g.IsConnected(),
		Received:  g.received.Load(),
		Dropped:   g.dropped.Load(),
		Published: g.published.Load(),
	}
}

func (g *Gateway) Shutdown() {
	if !g.closed.CompareAndSwap(false, true) {
		return
	}
	g.cancel()
	if client := g.bus(); client != nil {
		client.Disconnect(shutdownQuiesceMs)
		g.logger.Infof(providers.TypeMqtt, "Disconnected from broker")
	}
	// A clean session loses its subscriptions with the connection.
	if g.conf.CleanSession {
		g.tracker.ResetSubscriptions(context.Background())
	}
}
