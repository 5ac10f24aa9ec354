package pubsub

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/syncgraph/pkg/model"
)

func publishDiffs(t *testing.T, pub Publisher, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		diff := model.NewColdDiff([]model.Label{model.Label(fmt.Sprintf("//p:t%d", i))}, nil, nil)
		require.NoError(t, pub.Publish(TopicSyncDiff, "diff", SyncDiff{Diff: diff}))
	}
}

func receive(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case event, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return event
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func assertIdle(t *testing.T, sub Subscription) {
	t.Helper()
	select {
	case event := <-sub.Events():
		t.Errorf("unexpected event version %d", event.Version)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSyncDiffReplaysRecentEvents(t *testing.T) {
	pub := NewSyncPublisher()
	defer pub.Close()

	// The diff topic keeps the last five
	publishDiffs(t, pub, 7)

	sub, err := pub.Subscribe(t.Context(), TopicSyncDiff)
	require.NoError(t, err)
	defer sub.Close()

	for want := 3; want <= 7; want++ {
		assert.Equal(t, want, receive(t, sub).Version)
	}
	assertIdle(t, sub)
}

func TestSyncStatusReplaysLastOnly(t *testing.T) {
	pub := NewSyncPublisher()
	defer pub.Close()

	for _, state := range []string{StateDiscovering, StateQuerying, StateReady} {
		require.NoError(t, pub.Publish(TopicSyncStatus, state, SyncStatus{State: state}))
	}

	sub, err := pub.Subscribe(t.Context(), TopicSyncStatus)
	require.NoError(t, err)
	defer sub.Close()

	event := receive(t, sub)
	assert.Equal(t, StateReady, event.Type)

	var status SyncStatus
	require.NoError(t, json.Unmarshal(event.Data, &status))
	assert.Equal(t, StateReady, status.State)

	assertIdle(t, sub)
}

func TestSubscribeAfterResumes(t *testing.T) {
	pub := NewSyncPublisher()
	defer pub.Close()
	publishDiffs(t, pub, 7)

	sub, err := pub.SubscribeAfter(t.Context(), TopicSyncDiff, 5)
	require.NoError(t, err)
	defer sub.Close()

	assert.Equal(t, 6, receive(t, sub).Version)
	assert.Equal(t, 7, receive(t, sub).Version)
	assertIdle(t, sub)
}

func TestSubscribeAfterIgnoresReplayPolicy(t *testing.T) {
	pub := NewSyncPublisher()
	defer pub.Close()

	for _, state := range []string{StateDiscovering, StateQuerying, StateReady} {
		require.NoError(t, pub.Publish(TopicSyncStatus, state, SyncStatus{State: state}))
	}

	// A resuming client missed querying and ready, not just the latest state
	sub, err := pub.SubscribeAfter(t.Context(), TopicSyncStatus, 1)
	require.NoError(t, err)
	defer sub.Close()

	assert.Equal(t, StateQuerying, receive(t, sub).Type)
	assert.Equal(t, StateReady, receive(t, sub).Type)
}

func TestNoBuffer(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	for i := 1; i <= 3; i++ {
		require.NoError(t, pub.Publish("test", "event", map[string]int{"num": i}))
	}

	sub, err := pub.Subscribe(t.Context(), "test")
	require.NoError(t, err)
	defer sub.Close()

	assertIdle(t, sub)

	require.NoError(t, pub.Publish("test", "event", map[string]int{"num": 4}))
	assert.Equal(t, 4, receive(t, sub).Version)
}

func TestVersionsArePerTopic(t *testing.T) {
	pub := NewSyncPublisher()
	defer pub.Close()

	require.NoError(t, pub.Publish(TopicSyncStatus, StateIdle, SyncStatus{State: StateIdle}))
	require.NoError(t, pub.Publish(TopicSyncStatus, StateReady, SyncStatus{State: StateReady}))
	publishDiffs(t, pub, 1)

	sub, err := pub.Subscribe(t.Context(), TopicSyncDiff)
	require.NoError(t, err)
	defer sub.Close()

	assert.Equal(t, 1, receive(t, sub).Version)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	ctx, cancel := context.WithCancel(t.Context())
	sub, err := pub.Subscribe(ctx, "test")
	require.NoError(t, err)

	cancel()
	assert.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.topics["test"].subs) == 0
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, pub.Publish("test", "event", 1))
	assertIdle(t, sub)
}

func TestClosedPublisherRejects(t *testing.T) {
	pub := NewSyncPublisher()
	sub, err := pub.Subscribe(t.Context(), TopicSyncStatus)
	require.NoError(t, err)

	require.NoError(t, pub.Close())

	_, open := <-sub.Events()
	assert.False(t, open, "close ends live subscriptions")

	assert.ErrorIs(t, pub.Publish(TopicSyncStatus, StateReady, SyncStatus{}), ErrClosed)
	_, err = pub.Subscribe(context.Background(), TopicSyncStatus)
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, pub.Close(), "second close is a no-op")
}

func TestWriteSSEFraming(t *testing.T) {
	var buf bytes.Buffer
	event := Event{Topic: TopicSyncStatus, Type: StateReady, Data: json.RawMessage(`{"state":"ready"}`), Version: 3}

	require.NoError(t, WriteSSE(&buf, event))

	lines := strings.Split(buf.String(), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "id: 3", lines[0])
	assert.Equal(t, "event: ready", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "data: {"))
	assert.Equal(t, []string{"", ""}, lines[3:])

	var back Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(lines[2], "data: ")), &back))
	assert.Equal(t, event.Version, back.Version)
	assert.JSONEq(t, `{"state":"ready"}`, string(back.Data))
}

// readEvents collects n events from an SSE response body
func readEvents(t *testing.T, resp *http.Response, n int) []Event {
	t.Helper()
	var events []Event
	scanner := bufio.NewScanner(resp.Body)
	for len(events) < n && scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
		events = append(events, event)
	}
	require.Len(t, events, n)
	return events
}

func sseRequest(t *testing.T, url, lastID string) *http.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServeSSE(t *testing.T) {
	pub := NewSyncPublisher()
	defer pub.Close()

	require.NoError(t, pub.Publish(TopicSyncStatus, StateReady, SyncStatus{State: StateReady, Message: "done"}))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeSSE(w, r, pub, TopicSyncStatus)
	}))
	defer srv.Close()

	resp := sseRequest(t, srv.URL, "")
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	event := readEvents(t, resp, 1)[0]
	assert.Equal(t, TopicSyncStatus, event.Topic)
	assert.Equal(t, StateReady, event.Type)
}

func TestServeSSEResumesFromLastEventID(t *testing.T) {
	pub := NewSyncPublisher()
	defer pub.Close()
	publishDiffs(t, pub, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeSSE(w, r, pub, TopicSyncDiff)
	}))
	defer srv.Close()

	events := readEvents(t, sseRequest(t, srv.URL, "3"), 1)
	assert.Equal(t, 4, events[0].Version)
}
