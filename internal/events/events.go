package events

import (
	"context"
	"encoding/json"
	"time"
)

// ChannelAccountEvents is the channel carrying account lifecycle events.
const ChannelAccountEvents = "account.events"

// Account event types.
const (
	AccountRegistered = "account.registered"
	AccountCreated    = "account.created"
	AccountUpdated    = "account.updated"
	AccountDeleted    = "account.deleted"
)

// AccountEvent describes a change to a user account.
type AccountEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Bus wraps a backend with a stable API.
type Bus struct {
	backend Backend
}

// New constructs a Bus for the provided backend.
func New(backend Backend) *Bus {
	return &Bus{backend: backend}
}

// Publish sends a message to the named channel.
func (b *Bus) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return b.backend.Publish(ctx, channel, data, attrs)
}

// PublishAccountEvent serializes the event and publishes it on the
// account-events channel.
func (b *Bus) PublishAccountEvent(ctx context.Context, event AccountEvent) (string, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return b.backend.Publish(ctx, ChannelAccountEvents, data, map[string]string{
		"type": event.Type,
	})
}

// Subscribe consumes messages from the named channel.
func (b *Bus) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return b.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (b *Bus) Close() error {
	return b.backend.Close()
}
