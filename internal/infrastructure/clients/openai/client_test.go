package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
	"github.com/ayurlekha/processing-engine/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatCompletionJSON(content string) string {
	encoded, _ := json.Marshal(content)
	return fmt.Sprintf(`{
  "id": "chatcmpl-test",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": %s}}]
}`, encoded)
}

type capturedRequest struct {
	Model    string            `json:"model"`
	Messages []json.RawMessage `json:"messages"`
}

func newTestClient(t *testing.T, reply string, captured *capturedRequest) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		if captured != nil {
			assert.NoError(t, json.Unmarshal(body, captured))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionJSON(reply)))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(&config.OpenAIConfig{
		APIKey:            "sk-test",
		BaseURL:           server.URL + "/v1",
		ExtractionModel:   "gpt-4o",
		SummaryModel:      "gpt-4o-mini",
		VerificationModel: "gpt-4o-mini",
		RequestsPerMinute: 6000,
		Burst:             10,
		MaxRetries:        0,
	})
	require.NoError(t, err)
	return client
}

func TestExtractDocument(t *testing.T) {
	var req capturedRequest
	client := newTestClient(t, "```json\n{\"detailed_analysis\":\"CBC within range\",\"extracted_medicines\":[\"Dolo 650\",\" \",\"Pantop\"]}\n```", &req)

	got, err := client.ExtractDocument(context.Background(), &entities.DocumentImage{
		FileName: "p1_scan.png",
		MIMEType: "image/png",
		Data:     []byte{0x89, 'P', 'N', 'G'},
	})

	require.NoError(t, err)
	assert.Equal(t, "CBC within range", got.DetailedAnalysis)
	assert.Equal(t, []string{"Dolo 650", "Pantop"}, got.ExtractedMedicines)
	assert.Equal(t, "gpt-4o", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, string(req.Messages[1]), "data:image/png;base64,")
}

func TestSummarize(t *testing.T) {
	var req capturedRequest
	client := newTestClient(t, `Here you go: {"summary":"Stable.","patient":{"name":"Asha","age":54}}`, &req)

	draft, err := client.Summarize(context.Background(), "--- Analysis from a.png ---", "p1", "u1")

	require.NoError(t, err)
	require.NotNil(t, draft.Summary)
	assert.Equal(t, "Stable.", *draft.Summary)
	assert.Equal(t, entities.FlexString("54"), draft.Patient.Age)
	assert.Nil(t, draft.Footer)
	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Contains(t, string(req.Messages[1]), "Patient ID: p1")
}

func TestJudgeMedicine(t *testing.T) {
	client := newTestClient(t, `{"if_medicine":"Yes","verification_result":"Paracetamol brand","correct_medicine":"Dolo 650"}`, nil)

	got, err := client.JudgeMedicine(context.Background(), "Dolo 65O", "Verify if 'Dolo 65O' is a real pharmaceutical drug or medication", "[]")

	require.NoError(t, err)
	assert.Equal(t, "yes", got.IfMedicine)
	assert.Equal(t, "Dolo 650", got.CorrectMedicine)
}

func TestComplete_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client, err := NewClient(&config.OpenAIConfig{APIKey: "sk-bad", BaseURL: server.URL, MaxRetries: 0, RequestsPerMinute: -1})
	require.NoError(t, err)

	_, err = client.Summarize(context.Background(), "history", "p1", "u1")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, statusCode(err))
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(&config.OpenAIConfig{})
	assert.Error(t, err)
}

func TestParseExtraction_RequiresAnalysis(t *testing.T) {
	_, err := parseExtraction(`{"detailed_analysis":"  ","extracted_medicines":[]}`)
	assert.Error(t, err)

	_, err = parseExtraction(`not json`)
	assert.Error(t, err)
}

func TestParseSummaryDraft_LooselyTypedFields(t *testing.T) {
	draft, err := parseSummaryDraft("```json\n" + `{
		"summary": "Diabetic patient",
		"patient": {"name": "Asha", "age": 54},
		"chronicConditions": ["Type 2 Diabetes"],
		"medications": [{"name": "Metformin", "dosage": 500}],
		"historyTimeline": [{"date": "2024-01", "complaints": "fever"}]
	}` + "\n```")

	require.NoError(t, err)
	assert.Equal(t, "Diabetic patient", *draft.Summary)
	assert.Equal(t, "Asha", draft.Patient.Name)
	assert.Equal(t, []entities.ChronicCondition{{Name: "Type 2 Diabetes"}}, draft.ChronicConditions)
	require.Len(t, draft.Medications, 1)
	assert.Equal(t, "500", draft.Medications[0].Dosage)
	require.Len(t, draft.HistoryTimeline, 1)
	assert.Equal(t, []string{"fever"}, draft.HistoryTimeline[0].Complaints)

	_, err = parseSummaryDraft(`no json here`)
	assert.Error(t, err)
}

func TestExtractJSONFromText(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSONFromText("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extractJSONFromText(`Sure! {"a":1} Hope this helps.`))
	assert.Equal(t, `[1,2]`, extractJSONFromText(`[1,2]`))
	assert.Equal(t, "", extractJSONFromText("   "))
}
