package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/ayurlekha/processing-engine/pkg/config"
	"github.com/ayurlekha/processing-engine/pkg/retry"
	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
)

const DefaultMemoryCollection = "patient_memories"

// Client represents a Typesense client
type Client struct {
	client     *typesense.Client
	collection string
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(ctx context.Context, cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	err := retry.DoWithLog(ctx, retry.DefaultConfig(), "Typesense",
		func() error {
			healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			_, err := client.Health(healthCtx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("Typesense connection attempt failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = DefaultMemoryCollection
	}

	log.Info().Str("collection", collection).Msg("Successfully connected to Typesense")
	return &Client{client: client, collection: collection}, nil
}

// NewClientFromTypesense wraps an already configured client.
func NewClientFromTypesense(client *typesense.Client, collection string) *Client {
	if collection == "" {
		collection = DefaultMemoryCollection
	}
	return &Client{client: client, collection: collection}
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// Collection returns the name of the memory collection
func (c *Client) Collection() string {
	return c.collection
}

// InitSchema ensures the memory collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	for _, col := range collections {
		if col.Name == c.collection {
			log.Debug().Str("collection", c.collection).Msg("Typesense collection already exists")
			return nil
		}
	}

	if _, err := c.client.Collections().Create(ctx, MemorySchema(c.collection)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Info().Str("collection", c.collection).Msg("Created Typesense collection")
	return nil
}

// MemorySchema describes one stored analysis per document.
func MemorySchema(name string) *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: name,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "patient_id", Type: "string", Facet: pointer.True()},
			{Name: "user_id", Type: "string", Facet: pointer.True()},
			{Name: "record_id", Type: "string"},
			{Name: "source_file", Type: "string", Optional: pointer.True()},
			{Name: "memory", Type: "string"},
			{Name: "created_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("created_at"),
	}
}
