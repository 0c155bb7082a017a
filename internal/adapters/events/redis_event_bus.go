package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
	"github.com/ayurlekha/processing-engine/internal/domain/providers"
	redisclient "github.com/ayurlekha/processing-engine/internal/infrastructure/clients/redis"
	"github.com/rs/zerolog/log"
)

// RedisEventBus implements the EventBus interface using Redis Pub/Sub
type RedisEventBus struct {
	client *redisclient.Client
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) providers.EventBus {
	return &RedisEventBus{client: client}
}

// Publish publishes an event to all subscribers
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.SummaryEvent) error {
	data, err := EncodeEvent(event)
	if err != nil {
		return err
	}

	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().Str("channel", channel).Str("event_id", event.ID).Str("patient_id", event.PatientID).Msg("Published summary event")
	return nil
}

// Close closes the underlying Redis connection
func (b *RedisEventBus) Close() error {
	return b.client.Close()
}

// EncodeEvent marshals an event for the wire
func EncodeEvent(event *entities.SummaryEvent) ([]byte, error) {
	if event == nil {
		return nil, fmt.Errorf("event is required")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}
