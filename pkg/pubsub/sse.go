package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/ritzau/syncgraph/pkg/logging"
)

// ErrClosed is returned by a publisher after Close
var ErrClosed = errors.New("publisher is closed")

// subscriberBuffer is the per-subscription channel capacity
const subscriberBuffer = 100

// TopicConfig configures buffering behavior for a topic
type TopicConfig struct {
	BufferSize int  // Number of events to buffer (0 = no buffering)
	ReplayAll  bool // If true, replay all buffered events; if false, only replay last event
}

// topicState holds everything the publisher tracks for one topic
type topicState struct {
	config  TopicConfig
	version int
	buffer  []Event
	subs    map[*sseSubscription]struct{}
}

// replay returns the buffered events a new subscriber receives. after > 0 resumes
// a stream: every buffered event newer than after is replayed regardless of ReplayAll.
func (t *topicState) replay(after int) []Event {
	if len(t.buffer) == 0 {
		return nil
	}
	if after > 0 {
		var out []Event
		for _, e := range t.buffer {
			if e.Version > after {
				out = append(out, e)
			}
		}
		return out
	}
	if t.config.ReplayAll {
		return append([]Event(nil), t.buffer...)
	}
	return []Event{t.buffer[len(t.buffer)-1]}
}

// SSEPublisher implements Publisher using Server-Sent Events
type SSEPublisher struct {
	mu     sync.Mutex
	topics map[string]*topicState
	closed bool
}

// NewSSEPublisher creates a new SSE-based publisher
func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{topics: make(map[string]*topicState)}
}

// NewSyncPublisher creates a publisher with the sync topics configured:
// new subscribers get the current status and the most recent diffs.
func NewSyncPublisher() *SSEPublisher {
	p := NewSSEPublisher()
	p.ConfigureTopic(TopicSyncStatus, TopicConfig{BufferSize: 10, ReplayAll: false})
	p.ConfigureTopic(TopicSyncDiff, TopicConfig{BufferSize: 5, ReplayAll: true})
	return p
}

// topic returns the state of name, creating it. Callers hold p.mu.
func (p *SSEPublisher) topic(name string) *topicState {
	t, ok := p.topics[name]
	if !ok {
		t = &topicState{subs: make(map[*sseSubscription]struct{})}
		p.topics[name] = t
	}
	return t
}

// ConfigureTopic sets buffering configuration for a topic
func (p *SSEPublisher) ConfigureTopic(topic string, config TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic(topic).config = config
}

// Subscribe creates a new subscription to a topic.
// Context cancellation will close the subscription.
func (p *SSEPublisher) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	return p.SubscribeAfter(ctx, topic, 0)
}

// SubscribeAfter subscribes to topic and first replays the buffered events newer
// than version. A zero version falls back to the topic's replay policy.
func (p *SSEPublisher) SubscribeAfter(ctx context.Context, topic string, version int) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	t := p.topic(topic)
	sub := &sseSubscription{
		topic:     topic,
		events:    make(chan Event, subscriberBuffer),
		publisher: p,
	}
	t.subs[sub] = struct{}{}

	// Replay under the lock so no live event overtakes a replayed one
	replayed := t.replay(version)
	for _, e := range replayed {
		select {
		case sub.events <- e:
		default:
			logging.Warn("could not replay event to new subscriber", "topic", topic, "version", e.Version)
		}
	}
	if len(replayed) > 0 {
		logging.Debug("replayed events to new subscriber", "topic", topic, "count", len(replayed), "after", version)
	}

	go func() {
		<-ctx.Done()
		sub.Close()
	}()
	return sub, nil
}

// Publish sends an event to all subscribers of a topic
func (p *SSEPublisher) Publish(topic string, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	t := p.topic(topic)
	t.version++
	event := Event{
		Topic:   topic,
		Type:    eventType,
		Data:    payload,
		Version: t.version,
	}

	if size := t.config.BufferSize; size > 0 {
		t.buffer = append(t.buffer, event)
		if len(t.buffer) > size {
			t.buffer = append([]Event(nil), t.buffer[len(t.buffer)-size:]...)
		}
	}

	// Slow subscribers lose events rather than stall the sync pass
	for sub := range t.subs {
		select {
		case sub.events <- event:
		default:
			logging.Warn("subscription channel full, dropping event", "topic", topic, "type", eventType)
		}
	}
	return nil
}

// Close shuts down the publisher and ends every subscription's event stream
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for _, t := range p.topics {
		for sub := range t.subs {
			close(sub.events)
		}
		t.subs = nil
	}
	return nil
}

func (p *SSEPublisher) unsubscribe(sub *sseSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.topics[sub.topic]; ok {
		delete(t.subs, sub)
	}
}

// sseSubscription implements Subscription
type sseSubscription struct {
	topic     string
	events    chan Event
	publisher *SSEPublisher
	once      sync.Once
}

func (s *sseSubscription) Topic() string {
	return s.topic
}

func (s *sseSubscription) Events() <-chan Event {
	return s.events
}

// Close stops delivery to this subscription. The events channel is only closed
// by the publisher.
func (s *sseSubscription) Close() error {
	s.once.Do(func() { s.publisher.unsubscribe(s) })
	return nil
}

// WriteSSE writes an event in text/event-stream framing. The version doubles as
// the event id so browsers resume with Last-Event-ID.
//
//	id: 3
//	event: ready
//	data: {json}
func WriteSSE(w io.Writer, event Event) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", event.Version, event.Type, jsonData)
	return err
}

// resumer is implemented by publishers that can replay from a version
type resumer interface {
	SubscribeAfter(ctx context.Context, topic string, version int) (Subscription, error)
}

// ServeSSE streams every event of topic to an HTTP client until the request ends
// or the publisher closes. A Last-Event-ID header resumes the stream.
func ServeSSE(w http.ResponseWriter, r *http.Request, p Publisher, topic string) {
	var (
		sub Subscription
		err error
	)
	lastID, _ := strconv.Atoi(r.Header.Get("Last-Event-ID"))
	if rp, ok := p.(resumer); ok && lastID > 0 {
		sub, err = rp.SubscribeAfter(r.Context(), topic, lastID)
	} else {
		sub, err = p.Subscribe(r.Context(), topic)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	rc := http.NewResponseController(w)
	flush := func() {
		// Writers without flush support still deliver once the handler returns
		_ = rc.Flush()
	}

	// Initial comment establishes the stream (Safari compatibility)
	fmt.Fprintf(w, ": connected\n\n")
	flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := WriteSSE(w, event); err != nil {
				logging.WarnContext(r.Context(), "error writing SSE event", "topic", topic, "error", err)
				return
			}
			flush()
		}
	}
}
