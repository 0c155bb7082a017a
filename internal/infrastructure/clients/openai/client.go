package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
	"github.com/ayurlekha/processing-engine/pkg/config"
	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client implements document extraction, summary synthesis and medicine
// judgement on top of the chat completions API.
type Client struct {
	client            openaigo.Client
	extractionModel   string
	summaryModel      string
	verificationModel string
	limiter           *tokenBucket
}

// NewClient creates a new OpenAI client.
func NewClient(cfg *config.OpenAIConfig) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	client := openaigo.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(timeout),
	)

	return &Client{
		client:            client,
		extractionModel:   orDefault(cfg.ExtractionModel, "gpt-4o"),
		summaryModel:      orDefault(cfg.SummaryModel, "gpt-4o-mini"),
		verificationModel: orDefault(cfg.VerificationModel, "gpt-4o-mini"),
		limiter:           newTokenBucket(cfg.RequestsPerMinute, cfg.Burst),
	}, nil
}

// ExtractDocument sends the document image to the vision model and returns
// its analysis and the medicine names it found.
func (c *Client) ExtractDocument(ctx context.Context, doc *entities.DocumentImage) (*entities.Extraction, error) {
	if doc == nil || len(doc.Data) == 0 {
		return nil, errors.New("document image is required")
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", doc.MIMEType, base64.StdEncoding.EncodeToString(doc.Data))
	messages := []openaigo.ChatCompletionMessageParamUnion{
		openaigo.SystemMessage(extractionSystemPrompt),
		openaigo.UserMessage([]openaigo.ChatCompletionContentPartUnionParam{
			openaigo.TextContentPart(buildExtractionUserPrompt(doc.FileName)),
			openaigo.ImageContentPart(openaigo.ChatCompletionContentPartImageImageURLParam{
				URL: dataURL,
			}),
		}),
	}

	text, err := c.complete(ctx, c.extractionModel, messages)
	if err != nil {
		return nil, err
	}
	return parseExtraction(text)
}

// Summarize turns a patient's combined history into summary fields. Fields
// the model leaves out stay unset in the draft.
func (c *Client) Summarize(ctx context.Context, history, patientID, userID string) (*entities.SummaryDraft, error) {
	messages := []openaigo.ChatCompletionMessageParamUnion{
		openaigo.SystemMessage(summarySystemPrompt),
		openaigo.UserMessage(buildSummaryUserPrompt(history, patientID, userID)),
	}

	text, err := c.complete(ctx, c.summaryModel, messages)
	if err != nil {
		return nil, err
	}
	return parseSummaryDraft(text)
}

// JudgeMedicine answers question for name using the search evidence.
func (c *Client) JudgeMedicine(ctx context.Context, name, question, evidence string) (*entities.MedicineJudgement, error) {
	messages := []openaigo.ChatCompletionMessageParamUnion{
		openaigo.SystemMessage(verificationSystemPrompt),
		openaigo.UserMessage(buildVerificationUserPrompt(name, question, evidence)),
	}

	text, err := c.complete(ctx, c.verificationModel, messages)
	if err != nil {
		return nil, err
	}
	return parseJudgement(text)
}

func (c *Client) complete(ctx context.Context, model string, messages []openaigo.ChatCompletionMessageParamUnion) (string, error) {
	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			recordOpenAIMetric(ctx, model, 0, 0, err)
			return "", err
		}
		recordOpenAIRateLimitWait(ctx, model, time.Since(waitStart))
	}

	params := openaigo.ChatCompletionNewParams{
		Model:       openaigo.ChatModel(model),
		Messages:    messages,
		Temperature: openaigo.Float(0.1),
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		recordOpenAIMetric(ctx, model, statusCode(err), time.Since(start), err)
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		err := errors.New("openai response has no choices")
		recordOpenAIMetric(ctx, model, http.StatusOK, time.Since(start), err)
		return "", err
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		err := errors.New("openai response missing output text")
		recordOpenAIMetric(ctx, model, http.StatusOK, time.Since(start), err)
		return "", err
	}

	recordOpenAIMetric(ctx, model, http.StatusOK, time.Since(start), nil)
	return text, nil
}

func statusCode(err error) int {
	var apiErr *openaigo.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func newTokenBucket(rpm int, burst int) *tokenBucket {
	if rpm == 0 {
		rpm = 60
	}
	if rpm < 0 {
		return nil
	}
	if burst <= 0 {
		burst = 5
	}
	return newTokenBucketWithRate(rpm, burst)
}

// tokenBucket refills one token every minute/rpm, holding at most burst.
type tokenBucket struct {
	tokens chan struct{}
}

func newTokenBucketWithRate(rpm int, burst int) *tokenBucket {
	bucket := &tokenBucket{
		tokens: make(chan struct{}, burst),
	}
	for i := 0; i < burst; i++ {
		bucket.tokens <- struct{}{}
	}

	interval := time.Minute / time.Duration(rpm)
	if interval <= 0 {
		interval = time.Millisecond
	}

	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			select {
			case bucket.tokens <- struct{}{}:
			default:
			}
		}
	}()

	return bucket
}

func (b *tokenBucket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.tokens:
		return nil
	}
}

type openAIMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
	rateLimitWait   metric.Float64Histogram
}

var (
	openaiMetricsOnce sync.Once
	openaiMetrics     *openAIMetrics
)

func ensureOpenAIMetrics() *openAIMetrics {
	openaiMetricsOnce.Do(func() {
		meter := otel.Meter("github.com/ayurlekha/processing-engine/openai")

		requestCount, err := meter.Int64Counter(
			"ai.openai.request.count",
			metric.WithDescription("Number of OpenAI requests"),
		)
		if err != nil {
			return
		}
		requestDuration, err := meter.Float64Histogram(
			"ai.openai.request.duration",
			metric.WithDescription("OpenAI request duration in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}
		requestErrors, err := meter.Int64Counter(
			"ai.openai.request.errors",
			metric.WithDescription("Number of OpenAI request errors"),
		)
		if err != nil {
			return
		}
		rateLimitWait, err := meter.Float64Histogram(
			"ai.openai.rate_limit.wait",
			metric.WithDescription("Time spent waiting for OpenAI rate limiter in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}

		openaiMetrics = &openAIMetrics{
			requestCount:    requestCount,
			requestDuration: requestDuration,
			requestErrors:   requestErrors,
			rateLimitWait:   rateLimitWait,
		}
	})
	return openaiMetrics
}

func recordOpenAIMetric(ctx context.Context, model string, statusCode int, duration time.Duration, err error) {
	m := ensureOpenAIMetrics()
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	m.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		m.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func recordOpenAIRateLimitWait(ctx context.Context, model string, wait time.Duration) {
	m := ensureOpenAIMetrics()
	if m == nil {
		return
	}
	m.rateLimitWait.Record(ctx, float64(wait.Milliseconds()), metric.WithAttributes(
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
	))
}
