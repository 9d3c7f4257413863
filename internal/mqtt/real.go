package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/mattress-tracker/internal/mattress"
)

// DefaultBufferSize is the number of publishes kept while disconnected.
const DefaultBufferSize = 256

// Options configures a RealClient.
type Options struct {
	Broker     string
	ClientID   string
	Username   string
	Password   string
	Topics     Topics
	BufferSize int
}

// RealClient publishes to and subscribes on an actual MQTT broker.
// Publishes made while the connection is down are buffered and flushed on
// reconnect; subscriptions are restored on every connect.
type RealClient struct {
	client paho.Client
	topics Topics

	mu        sync.Mutex
	buffer    *ringBuffer
	subs      map[string]func([]byte)
	connected bool
	connects  int
}

// NewRealClient creates a client for the given broker and starts connecting.
// If the broker is not reachable within the timeout the client keeps
// retrying in the background and buffers publishes meanwhile.
func NewRealClient(opts Options) (*RealClient, error) {
	if opts.Broker == "" {
		return nil, fmt.Errorf("broker is required")
	}
	if opts.ClientID == "" {
		opts.ClientID = "mattress-tracker"
	}
	if opts.BufferSize == 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Topics.Prefix == "" {
		opts.Topics = NewTopics("", opts.Topics.DiscoveryPrefix)
	}

	c := &RealClient{
		topics: opts.Topics,
		buffer: newRingBuffer(opts.BufferSize),
		subs:   make(map[string]func([]byte)),
	}

	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(opts.Topics.Availability(), PayloadOffline, 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)
	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}

	c.client = paho.NewClient(po)
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", opts.Broker)
		return c, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return c, nil
}

func (c *RealClient) onConnect(client paho.Client) {
	c.mu.Lock()
	c.connected = true
	c.connects++
	reconnect := c.connects > 1
	pending := c.buffer.drain()
	subs := make(map[string]func([]byte), len(c.subs))
	for topic, h := range c.subs {
		subs[topic] = h
	}
	c.mu.Unlock()

	log.Printf("mqtt: connected (reconnect=%v, buffered=%d)", reconnect, len(pending))

	client.Publish(c.topics.Availability(), 1, true, PayloadOnline)
	for topic, h := range subs {
		if token := client.Subscribe(topic, 1, wrapHandler(h)); token.Wait() && token.Error() != nil {
			log.Printf("mqtt: resubscribe %s: %v", topic, token.Error())
		}
	}
	for _, m := range pending {
		client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		client.Publish(c.topics.System(), 1, false, payload)
	}
}

func (c *RealClient) onConnectionLost(_ paho.Client, err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	log.Printf("mqtt: connection lost: %v", err)
}

func wrapHandler(h func([]byte)) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		h(msg.Payload())
	}
}

// publish sends a message, or buffers it while disconnected.
func (c *RealClient) publish(topic string, qos byte, retained bool, payload []byte) error {
	c.mu.Lock()
	if !c.connected {
		c.buffer.push(message{topic: topic, payload: payload, qos: qos, retained: retained})
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishState sends the retained state of one mattress.
func (c *RealClient) PublishState(entryID string, st mattress.State, today mattress.Date) error {
	payload, err := FormatStatePayload(st, today)
	if err != nil {
		return fmt.Errorf("format state payload: %w", err)
	}
	return c.publish(c.topics.State(entryID), 1, true, payload)
}

// PublishDiscovery announces the entities of one mattress.
func (c *RealClient) PublishDiscovery(entryID string, st mattress.State) error {
	msgs, err := DiscoveryMessages(c.topics, entryID, st)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if err := c.publish(m.Topic, 1, true, m.Payload); err != nil {
			return err
		}
	}
	return nil
}

// ClearDiscovery blanks the retained discovery and state topics of one mattress.
func (c *RealClient) ClearDiscovery(entryID string) error {
	for _, topic := range ClearTopics(c.topics, entryID) {
		if err := c.publish(topic, 1, true, nil); err != nil {
			return err
		}
	}
	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) - lifecycle events should be delivered
	return c.publish(c.topics.System(), 1, event.Retained, payload)
}

// Subscribe registers a handler for a topic. The subscription is restored
// after every reconnect.
func (c *RealClient) Subscribe(topic string, handler func([]byte)) error {
	c.mu.Lock()
	c.subs[topic] = handler
	connected := c.connected
	c.mu.Unlock()

	if !connected {
		return nil
	}
	token := c.client.Subscribe(topic, 1, wrapHandler(handler))
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnected()
}

// Close publishes offline availability and disconnects from the broker.
func (c *RealClient) Close() error {
	if c.client.IsConnected() {
		token := c.client.Publish(c.topics.Availability(), 1, true, PayloadOffline)
		token.WaitTimeout(2 * time.Second)
	}
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
