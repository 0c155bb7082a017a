package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ayurlekha/processing-engine/internal/domain/providers"
	"github.com/ayurlekha/processing-engine/pkg/config"
	"golang.org/x/time/rate"
)

const (
	defaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"
	searchUserAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// WebResult is one organic search hit.
type WebResult struct {
	Title string `json:"title"`
	Href  string `json:"href"`
	Body  string `json:"body"`
}

// DuckDuckGoAdapter implements WebSearcher against the DuckDuckGo HTML
// endpoint.
type DuckDuckGoAdapter struct {
	baseURL    string
	region     string
	maxResults int
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ providers.WebSearcher = (*DuckDuckGoAdapter)(nil)

// NewDuckDuckGoAdapter creates a web search adapter
func NewDuckDuckGoAdapter(cfg *config.SearchConfig) *DuckDuckGoAdapter {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultDuckDuckGoURL
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &DuckDuckGoAdapter{
		baseURL:    baseURL,
		region:     cfg.Region,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Search returns up to maxResults hits for query, encoded as a JSON array.
// No hits is not an error.
func (a *DuckDuckGoAdapter) Search(ctx context.Context, query string) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := a.fetch(ctx, query)
	if err != nil {
		return "", err
	}
	defer body.Close()

	results, err := ParseResults(body, a.maxResults)
	if err != nil {
		return "", fmt.Errorf("parse search results: %w", err)
	}

	encoded, err := json.Marshal(results)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func (a *DuckDuckGoAdapter) fetch(ctx context.Context, query string) (io.ReadCloser, error) {
	form := url.Values{}
	form.Set("q", query)
	if a.region != "" {
		form.Set("kl", a.region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return resp.Body, nil
	case resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusTooManyRequests:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("search rate limited: http status %d", resp.StatusCode)
	default:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("search failed: http status %d", resp.StatusCode)
	}
}

// ParseResults extracts organic results from a DuckDuckGo HTML page,
// skipping ads.
func ParseResults(r io.Reader, limit int) ([]WebResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	results := []WebResult{}
	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}
		link := s.Find("a.result__a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if title == "" || href == "" {
			return true
		}

		results = append(results, WebResult{
			Title: title,
			Href:  resolveRedirect(href),
			Body:  strings.TrimSpace(s.Find(".result__snippet").Text()),
		})
		return limit <= 0 || len(results) < limit
	})
	return results, nil
}

// resolveRedirect unwraps //duckduckgo.com/l/?uddg=<target> links.
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
