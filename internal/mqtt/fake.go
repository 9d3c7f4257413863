package mqtt

import (
	"fmt"
	"sync"

	"github.com/sweeney/mattress-tracker/internal/mattress"
)

// StateMessage records one PublishState call.
type StateMessage struct {
	EntryID string
	State   mattress.State
	Today   mattress.Date
	Payload []byte
}

// FakeClient records published messages and lets tests deliver commands.
// It is safe for concurrent use.
type FakeClient struct {
	mu sync.Mutex

	// States contains every state publish, in order.
	States []StateMessage

	// Discovery contains discovery publishes keyed by topic.
	Discovery map[string][]byte

	// Cleared contains entry IDs passed to ClearDiscovery.
	Cleared []string

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by the publish methods.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	topics Topics
	subs   map[string]func([]byte)
}

// NewFakeClient creates a FakeClient for testing.
func NewFakeClient(topics Topics) *FakeClient {
	return &FakeClient{
		topics:    topics,
		Discovery: make(map[string][]byte),
		subs:      make(map[string]func([]byte)),
	}
}

// PublishState records the state publish.
func (f *FakeClient) PublishState(entryID string, st mattress.State, today mattress.Date) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatStatePayload(st, today)
	if err != nil {
		return err
	}
	f.States = append(f.States, StateMessage{EntryID: entryID, State: st, Today: today, Payload: payload})
	return nil
}

// PublishDiscovery records the discovery publishes.
func (f *FakeClient) PublishDiscovery(entryID string, st mattress.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	msgs, err := DiscoveryMessages(f.topics, entryID, st)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		f.Discovery[m.Topic] = m.Payload
	}
	return nil
}

// ClearDiscovery records the removal and drops the recorded discovery topics.
func (f *FakeClient) ClearDiscovery(entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Cleared = append(f.Cleared, entryID)
	for _, topic := range ClearTopics(f.topics, entryID) {
		delete(f.Discovery, topic)
	}
	return nil
}

// PublishSystem records the system event.
func (f *FakeClient) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Subscribe records the handler for Deliver.
func (f *FakeClient) Subscribe(topic string, handler func([]byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[topic] = handler
	return nil
}

// Deliver invokes the handler subscribed to topic.
func (f *FakeClient) Deliver(topic string, payload []byte) error {
	f.mu.Lock()
	h, ok := f.subs[topic]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("no subscription for %s", topic)
	}
	h(payload)
	return nil
}

// Subscriptions returns the subscribed topics.
func (f *FakeClient) Subscriptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	topics := make([]string, 0, len(f.subs))
	for t := range f.subs {
		topics = append(topics, t)
	}
	return topics
}

// LastState returns the most recent state publish for an entry.
func (f *FakeClient) LastState(entryID string) (StateMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.States) - 1; i >= 0; i-- {
		if f.States[i].EntryID == entryID {
			return f.States[i], true
		}
	}
	return StateMessage{}, false
}

// Close marks the client as closed.
func (f *FakeClient) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// IsConnected reports whether the fake client is "connected".
func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Reset clears recorded messages. Subscriptions are kept.
func (f *FakeClient) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.States = nil
	f.Discovery = make(map[string][]byte)
	f.Cleared = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.Connected = false
}
