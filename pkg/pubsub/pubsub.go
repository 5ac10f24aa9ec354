package pubsub

import (
	"context"
	"encoding/json"

	"github.com/ritzau/syncgraph/pkg/graph"
	"github.com/ritzau/syncgraph/pkg/model"
)

// Topics published by a sync session
const (
	TopicSyncStatus = "sync_status"
	TopicSyncDiff   = "sync_diff"
)

// Sync states carried as the event type of TopicSyncStatus
const (
	StateIdle        = "idle"
	StateDiscovering = "discovering"
	StateQuerying    = "querying"
	StateExpanding   = "expanding"
	StateReady       = "ready"
	StateFailed      = "failed"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic (e.g., "sync_status", "sync_diff")
	Type    string          `json:"type"`    // Event type (e.g., "querying", "ready")
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data any) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// SyncStatus describes the progress of a sync pass
type SyncStatus struct {
	State   string `json:"state"`
	Message string `json:"message"`
	PassID  string `json:"pass_id,omitempty"`
	Full    bool   `json:"full"`
}

// SyncDiff is the outcome of a completed sync pass
type SyncDiff struct {
	PassID string          `json:"pass_id"`
	Diff   model.ColdDiff  `json:"diff"`
	Graph  graph.Stats     `json:"graph"`
	Cycles [][]model.Label `json:"cycles,omitempty"`
}
