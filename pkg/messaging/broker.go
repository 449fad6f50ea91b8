package messaging

import (
	"context"
	"errors"
)

// ErrClosed is returned by brokers used after Close.
var ErrClosed = errors.New("broker closed")

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic string) (<-chan Message, error)
	Close() error
}

// Message is a text body plus labelled attributes travelling alongside it.
type Message struct {
	Body       string            `json:"body"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Attr returns the attribute value or "".
func (m Message) Attr(key string) string {
	if m.Attributes == nil {
		return ""
	}
	return m.Attributes[key]
}
