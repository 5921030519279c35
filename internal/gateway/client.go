package gateway

import (
	"context"
	"errors"
	"fmt"
	"iotd/internal/structures"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

var (
	ErrNotConnected   = errors.New("not connected to broker")
	ErrConnectTimeout = errors.New("broker connect timed out")
)

type Message struct {
	Topic   string
	Payload []byte
}

type Handler func(Message)

// BusClient is the part of an MQTT client the gateway depends on.
type BusClient interface {
	IsConnected() bool
	// Subscribe waits for the broker acknowledgment.
	Subscribe(topic string, qos byte, cb Handler) error
	// SubscribeMultiple sends one SUBSCRIBE without a local handler and reports
	// the acknowledgment to done.
	SubscribeMultiple(topics []string, qos byte, done func(error))
	// Publish reports whether the request was accepted; done observes completion.
	Publish(topic string, qos byte, payload []byte, done func(error)) bool
	Disconnect(quiesce uint)
}

// Dialer opens a BusClient. onLost is called when an established session drops.
type Dialer func(ctx context.Context, conf *structures.MqttConfig, onLost func(error)) (BusClient, error)

type pahoClient struct {
	cli     mqtt.Client
	timeout time.Duration
}

func clientID(conf *structures.MqttConfig) string {
	if conf.ClientID != "" {
		return conf.ClientID
	}
	return "iotd-" + uuid.NewString()
}

// DialPaho connects a paho client. Reconnect and connect-retry stay off.
func DialPaho(ctx context.Context, conf *structures.MqttConfig, onLost func(error)) (BusClient, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", conf.Host, conf.Port))
	opts.SetClientID(clientID(conf))
	if conf.Username != "" {
		opts.SetUsername(conf.Username)
		opts.SetPassword(conf.Password)
	}
	opts.SetKeepAlive(conf.KeepAlive)
	opts.SetConnectTimeout(conf.ConnectTimeout)
	opts.SetCleanSession(conf.CleanSession)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetOrderMatters(false)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if onLost != nil {
			onLost(err)
		}
	})

	cli := mqtt.NewClient(opts)
	tok := cli.Connect()
	timer := time.NewTimer(conf.ConnectTimeout)
	defer timer.Stop()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrConnectTimeout
	}
	if err := tok.Error(); err != nil {
		return nil, err
	}
	return &pahoClient{cli: cli, timeout: conf.ConnectTimeout}, nil
}

func (c *pahoClient) IsConnected() bool {
	return c.cli.IsConnected()
}

func (c *pahoClient) Subscribe(topic string, qos byte, cb Handler) error {
	tok := c.cli.Subscribe(topic, qos, func(_ mqtt.Client, m mqtt.Message) {
		cb(Message{Topic: m.Topic(), Payload: m.Payload()})
	})
	if !tok.WaitTimeout(c.timeout) {
		return fmt.Errorf("subscribe %s: no acknowledgment within %s", topic, c.timeout)
	}
	return tok.Error()
}

func (c *pahoClient) SubscribeMultiple(topics []string, qos byte, done func(error)) {
	filters := make(map[string]byte, len(topics))
	for _, t := range topics {
		filters[t] = qos
	}
	tok := c.cli.SubscribeMultiple(filters, nil)
	go func() {
		<-tok.Done()
		done(subscribeResult(tok))
	}()
}

// subscribeResult turns per-filter SUBACK failure codes into an error.
func subscribeResult(tok mqtt.Token) error {
	if err := tok.Error(); err != nil {
		return err
	}
	st, ok := tok.(*mqtt.SubscribeToken)
	if !ok {
		return nil
	}
	for topic, code := range st.Result() {
		if code == 0x80 {
			return fmt.Errorf("subscribe %s: rejected by broker", topic)
		}
	}
	return nil
}

func (c *pahoClient) Publish(topic string, qos byte, payload []byte, done func(error)) bool {
	if !c.cli.IsConnected() {
		return false
	}
	tok := c.cli.Publish(topic, qos, false, payload)
	go func() {
		<-tok.Done()
		if done != nil {
			done(tok.Error())
		}
	}()
	return true
}

func (c *pahoClient) Disconnect(quiesce uint) {
	c.cli.Disconnect(quiesce)
}
