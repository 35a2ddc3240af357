package messaging

import (
	"context"
)

// Broker defines the interface for the notification transport.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Message is the envelope pushed to subscribed clients.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
