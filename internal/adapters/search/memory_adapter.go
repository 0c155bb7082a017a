package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
	"github.com/ayurlekha/processing-engine/internal/domain/providers"
	tsclient "github.com/ayurlekha/processing-engine/internal/infrastructure/clients/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
)

const wildcardQuery = "*"

// MemoryAdapter implements the patient memory store using Typesense
type MemoryAdapter struct {
	client *tsclient.Client
}

// Ensure MemoryAdapter implements MemoryStore
var _ providers.MemoryStore = (*MemoryAdapter)(nil)

// NewMemoryAdapter creates a new Typesense memory adapter
func NewMemoryAdapter(client *tsclient.Client) *MemoryAdapter {
	return &MemoryAdapter{client: client}
}

// Add upserts one analysis keyed by entry.ID
func (a *MemoryAdapter) Add(ctx context.Context, entry *entities.MemoryEntry) error {
	if entry == nil || entry.ID == "" {
		return fmt.Errorf("memory entry id is required")
	}

	_, err := a.client.Client().Collection(a.client.Collection()).Documents().Upsert(ctx, memoryDocument(entry))
	if err != nil {
		return fmt.Errorf("failed to index memory %s: %w", entry.ID, err)
	}
	return nil
}

// Search returns the patient's memories matching query. The wildcard query
// returns them oldest first.
func (a *MemoryAdapter) Search(ctx context.Context, patientID, query string, limit int) ([]*entities.MemoryEntry, error) {
	params := searchParams(patientID, query, limit)

	result, err := a.client.Client().Collection(a.client.Collection()).Documents().Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search memories: %w", err)
	}

	entries := []*entities.MemoryEntry{}
	if result == nil || result.Hits == nil {
		return entries, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		entry := memoryFromDocument(*hit.Document)
		if hit.TextMatch != nil {
			entry.Score = float64(*hit.TextMatch)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func searchParams(patientID, query string, limit int) *api.SearchCollectionParams {
	query = strings.TrimSpace(query)
	if query == "" {
		query = wildcardQuery
	}
	if limit <= 0 {
		limit = 10
	}

	params := &api.SearchCollectionParams{
		Q:        pointer.String(query),
		QueryBy:  pointer.String("memory"),
		FilterBy: pointer.String(fmt.Sprintf("patient_id:=`%s`", patientID)),
		PerPage:  pointer.Int(limit),
	}
	if query == wildcardQuery {
		params.SortBy = pointer.String("created_at:asc")
	}
	return params
}

func memoryDocument(entry *entities.MemoryEntry) map[string]interface{} {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return map[string]interface{}{
		"id":          entry.ID,
		"patient_id":  entry.PatientID,
		"user_id":     entry.UserID,
		"record_id":   entry.RecordID,
		"source_file": entry.SourceFile,
		"memory":      entry.Memory,
		"created_at":  createdAt.Unix(),
	}
}

// Typesense returns map[string]interface{}, so cast each field safely
func memoryFromDocument(doc map[string]interface{}) *entities.MemoryEntry {
	entry := &entities.MemoryEntry{
		ID:         stringField(doc, "id"),
		Memory:     stringField(doc, "memory"),
		PatientID:  stringField(doc, "patient_id"),
		UserID:     stringField(doc, "user_id"),
		RecordID:   stringField(doc, "record_id"),
		SourceFile: stringField(doc, "source_file"),
	}
	switch v := doc["created_at"].(type) {
	case float64:
		entry.CreatedAt = time.Unix(int64(v), 0).UTC()
	case int64:
		entry.CreatedAt = time.Unix(v, 0).UTC()
	}
	return entry
}

func stringField(doc map[string]interface{}, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}
