package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultKeys are the environment variables the pipeline accepts from Vault
// when VAULT_KEYS is not set.
var DefaultKeys = []string{
	"DATABASE_URL",
	"DB_PASSWORD",
	"SUPABASE_URL",
	"SUPABASE_SERVICE_KEY",
	"SUPABASE_ANON_KEY",
	"OPENAI_API_KEY",
	"TYPESENSE_API_KEY",
	"REDIS_PASSWORD",
}

type VaultConfig struct {
	Enabled   bool
	Addr      string
	Token     string
	Namespace string
	Mount     string
	Path      string
	KVVersion int
	Timeout   time.Duration
	Overwrite bool
	// Keys restricts which secrets are exported. Empty means every key.
	Keys []string
}

type VaultResult struct {
	Enabled bool
	Path    string
	Loaded  int
	Skipped int
	Ignored int
}

func LoadVaultConfigFromEnv(pathOverride string) VaultConfig {
	cfg := VaultConfig{
		Enabled:   strings.EqualFold(os.Getenv("VAULT_ENABLED"), "true"),
		Addr:      os.Getenv("VAULT_ADDR"),
		Token:     os.Getenv("VAULT_TOKEN"),
		Namespace: os.Getenv("VAULT_NAMESPACE"),
		Mount:     envOr("VAULT_MOUNT", "secret"),
		Path:      pathOverride,
		KVVersion: 2,
		Timeout:   5 * time.Second,
		Overwrite: strings.EqualFold(os.Getenv("VAULT_OVERWRITE"), "true"),
		Keys:      DefaultKeys,
	}
	if cfg.Path == "" {
		cfg.Path = envOr("VAULT_PATH", "ayurlekha/processing-engine")
	}
	if val, err := strconv.Atoi(os.Getenv("VAULT_KV_VERSION")); err == nil {
		cfg.KVVersion = val
	}
	if val, err := strconv.Atoi(os.Getenv("VAULT_TIMEOUT_MS")); err == nil {
		cfg.Timeout = time.Duration(val) * time.Millisecond
	}
	if raw := os.Getenv("VAULT_KEYS"); raw != "" {
		cfg.Keys = nil
		if raw != "*" {
			for _, k := range strings.Split(raw, ",") {
				if k = strings.TrimSpace(k); k != "" {
					cfg.Keys = append(cfg.Keys, k)
				}
			}
		}
	}
	return cfg
}

// ApplyVaultSecrets reads the configured KV secret and exports its values as
// environment variables so that config.Load picks them up.
func ApplyVaultSecrets(ctx context.Context, cfg VaultConfig) (VaultResult, error) {
	result := VaultResult{Enabled: cfg.Enabled, Path: cfg.Path}
	if !cfg.Enabled {
		return result, nil
	}

	data, err := FetchVaultSecret(ctx, cfg)
	if err != nil {
		return result, err
	}

	allowed := make(map[string]bool, len(cfg.Keys))
	for _, k := range cfg.Keys {
		allowed[k] = true
	}

	for key, value := range data {
		if len(allowed) > 0 && !allowed[key] {
			result.Ignored++
			continue
		}
		if !cfg.Overwrite && os.Getenv(key) != "" {
			result.Skipped++
			continue
		}
		if err := os.Setenv(key, stringifyVaultValue(value)); err != nil {
			return result, err
		}
		result.Loaded++
	}
	return result, nil
}

// FetchVaultSecret returns the raw key/value map stored at cfg.Path.
func FetchVaultSecret(ctx context.Context, cfg VaultConfig) (map[string]any, error) {
	if cfg.Addr == "" || cfg.Token == "" || cfg.Path == "" {
		return nil, errors.New("vault configuration incomplete (VAULT_ADDR, VAULT_TOKEN, VAULT_PATH)")
	}

	url, err := buildVaultURL(cfg.Addr, cfg.Mount, cfg.Path, cfg.KVVersion)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Vault-Token", cfg.Token)
	if cfg.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", cfg.Namespace)
	}

	client := &http.Client{Timeout: cfg.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vault fetch failed: %s %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return extractVaultData(body, cfg.KVVersion)
}

func buildVaultURL(addr, mount, path string, kvVersion int) (string, error) {
	addr = strings.TrimRight(addr, "/")
	mount = strings.Trim(mount, "/")
	path = strings.TrimLeft(path, "/")
	if addr == "" || mount == "" || path == "" {
		return "", errors.New("vault address, mount, and path must be set")
	}
	if kvVersion == 1 {
		return fmt.Sprintf("%s/v1/%s/%s", addr, mount, path), nil
	}
	return fmt.Sprintf("%s/v1/%s/data/%s", addr, mount, path), nil
}

func extractVaultData(body []byte, kvVersion int) (map[string]any, error) {
	if kvVersion == 1 {
		var v1 struct {
			Data map[string]any `json:"data"`
		}
		if err := json.Unmarshal(body, &v1); err != nil {
			return nil, err
		}
		if v1.Data == nil {
			return nil, errors.New("vault response missing data for KV v1")
		}
		return v1.Data, nil
	}

	var v2 struct {
		Data struct {
			Data map[string]any `json:"data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &v2); err != nil {
		return nil, err
	}
	if v2.Data.Data == nil {
		return nil, errors.New("vault response missing data for KV v2")
	}
	return v2.Data.Data, nil
}

func stringifyVaultValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
