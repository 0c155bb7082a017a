package providers

import (
	"context"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
)

// EventBus publishes pipeline events to interested consumers.
type EventBus interface {
	// Publish publishes an event on a channel
	Publish(ctx context.Context, channel string, event *entities.SummaryEvent) error

	// Close releases the underlying connection
	Close() error
}

// EventChannelSummaries is the default channel for published summaries
const EventChannelSummaries = "ayurlekha:summaries"
