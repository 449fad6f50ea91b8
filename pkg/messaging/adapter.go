package messaging

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// HandlerFunc processes one delivered message.
type HandlerFunc func(ctx context.Context, msg Message) error

// Consume subscribes to topic and feeds every message to handler until ctx
// is done or the subscription ends. Handler errors are logged and the loop
// keeps going.
func Consume(ctx context.Context, broker Broker, topic string, handler HandlerFunc, logger *zerolog.Logger) error {
	msgs, err := broker.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := handler(ctx, msg); err != nil {
				logger.Error().Err(err).Str("topic", topic).Msg("failed to handle message")
			}
		}
	}
}
