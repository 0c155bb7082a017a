package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PIPELINE_WORKDIR", "PIPELINE_AGGREGATION", "PIPELINE_OUTPUT_FORMAT",
		"PIPELINE_VERIFICATION_DELAY_MS", "STORAGE_BUCKET", "SEARCH_REGION",
		"SEARCH_MAX_RESULTS", "SEARCH_MAX_ATTEMPTS", "TYPESENSE_URL", "TYPESENSE_API_KEY",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "temp_medical_docs", cfg.Pipeline.WorkDir)
	assert.Equal(t, AggregationConcat, cfg.Pipeline.Aggregation)
	assert.Equal(t, FormatJSON, cfg.Pipeline.OutputFormat)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.VerificationDelay)
	assert.Equal(t, "medical-documents", cfg.Storage.Bucket)
	assert.Equal(t, "medical-records", cfg.Storage.SummaryPrefix)
	assert.Equal(t, "/object/public/", cfg.Storage.ReferenceMarker)
	assert.Equal(t, "in-en", cfg.Search.Region)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.Equal(t, 3, cfg.Search.MaxAttempts)
	assert.Equal(t, "http://localhost:8108", cfg.Typesense.URL)
	assert.Equal(t, "xyz", cfg.Typesense.APIKey)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PIPELINE_AGGREGATION", "MEMORY")
	t.Setenv("PIPELINE_OUTPUT_FORMAT", "md")
	t.Setenv("PIPELINE_VERIFICATION_DELAY_MS", "250")
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co/")
	t.Setenv("SUPABASE_SERVICE_KEY", "")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("TYPESENSE_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, AggregationMemory, cfg.Pipeline.Aggregation)
	assert.Equal(t, FormatMarkdown, cfg.Pipeline.OutputFormat)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.VerificationDelay)
	assert.Equal(t, "https://abc.supabase.co", cfg.Storage.URL)
	assert.Equal(t, "anon", cfg.Storage.ServiceKey)
	assert.True(t, cfg.Typesense.Enabled)
}

func TestValidate(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PIPELINE_AGGREGATION", "")
	t.Setenv("PIPELINE_OUTPUT_FORMAT", "")
	t.Setenv("TYPESENSE_ENABLED", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	cfg.Pipeline.Aggregation = AggregationMemory
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TYPESENSE_ENABLED")

	cfg.Typesense.Enabled = true
	cfg.Pipeline.OutputFormat = "pdf"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown output format "pdf"`)
}

func TestDatabaseDSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=require", db.DatabaseDSN())

	db.URL = "postgres://u:p@db:5432/d"
	assert.Equal(t, "postgres://u:p@db:5432/d", db.DatabaseDSN())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("AYURLEKHA_DOTENV_CHECK=loaded\n"), 0o600))
	t.Setenv("AYURLEKHA_DOTENV_CHECK", "")
	os.Unsetenv("AYURLEKHA_DOTENV_CHECK")

	require.NoError(t, LoadDotEnv(filepath.Join(dir, ".env.local"), path))
	assert.Equal(t, "loaded", os.Getenv("AYURLEKHA_DOTENV_CHECK"))
}

func TestNormalizeFormat(t *testing.T) {
	assert.Equal(t, FormatMarkdown, NormalizeFormat(" MD "))
	assert.Equal(t, FormatMarkdown, NormalizeFormat("Markdown"))
	assert.Equal(t, FormatJSON, NormalizeFormat("json"))
}
