package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NamrataaKale/Account-Plan-Generator/internal/domain"
	"github.com/NamrataaKale/Account-Plan-Generator/internal/logging"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// testGeminiClient returns a client pointed at the given server with a tiny
// backoff so retry tests run fast.
func testGeminiClient(serverURL string) *GeminiClient {
	g := NewGeminiClient("test-key", "gemini-test", silentLog())
	g.baseURL = serverURL
	g.backoffBase = time.Millisecond
	return g
}

func textResponse(text string) geminiResponse {
	return geminiResponse{
		Candidates: []geminiCandidate{{
			Content: geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: text}},
			},
		}},
	}
}

func TestGeminiSendTurn(t *testing.T) {
	var gotReq geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		resp := geminiResponse{
			Candidates: []geminiCandidate{{
				Content: geminiContent{
					Role: "model",
					Parts: []geminiPart{
						{Text: "Tesla builds electric vehicles."},
						{FunctionCall: &geminiFunctionCall{
							Name: "updateSection",
							Args: json.RawMessage(`{"sectionKey":"targetEntity","content":"Tesla"}`),
						}},
					},
				},
				GroundingMetadata: &groundingMetadata{
					GroundingChunks: []groundingChunk{
						{Web: &groundingWeb{URI: "https://ir.example/tesla", Title: "Investor relations"}},
						{Web: nil},
					},
				},
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := testGeminiClient(server.URL)
	conv := client.StartConversation(ConversationOptions{
		Persona:     PersonaPrecise,
		Instruction: "Research companies.",
		Tools:       []FunctionDeclaration{{Name: "updateSection", Description: "Update a section"}},
	})

	result, err := conv.SendTurn(context.Background(), "Research Tesla", nil)
	require.NoError(t, err)

	assert.Equal(t, "Tesla builds electric vehicles.", result.Text)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "updateSection", result.ToolCalls[0].Name)
	assert.NotEmpty(t, result.ToolCalls[0].ID)
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "https://ir.example/tesla", result.Citations[0].URI)

	// Request carried the persona temperature, instruction, and tools.
	assert.InDelta(t, 0.2, gotReq.GenerationConfig.Temperature, 0.001)
	require.NotNil(t, gotReq.SystemInstruction)
	assert.Equal(t, "Research companies.", gotReq.SystemInstruction.Parts[0].Text)
	require.Len(t, gotReq.Tools, 1)
	assert.Equal(t, "updateSection", gotReq.Tools[0].FunctionDeclarations[0].Name)
	require.Len(t, gotReq.Contents, 1)
	assert.Equal(t, "user", gotReq.Contents[0].Role)
	assert.Equal(t, "Research Tesla", gotReq.Contents[0].Parts[0].Text)
}

func TestGeminiSendTurnWithAttachment(t *testing.T) {
	var gotReq geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(textResponse("Got the file."))
	}))
	defer server.Close()

	client := testGeminiClient(server.URL)
	conv := client.StartConversation(ConversationOptions{Persona: PersonaDefault})

	_, err := conv.SendTurn(context.Background(), "Summarize this", &domain.Attachment{
		Name:     "10k.pdf",
		MimeType: "application/pdf",
		Data:     []byte("pdf bytes"),
	})
	require.NoError(t, err)

	require.Len(t, gotReq.Contents, 1)
	require.Len(t, gotReq.Contents[0].Parts, 2)
	require.NotNil(t, gotReq.Contents[0].Parts[1].InlineData)
	assert.Equal(t, "application/pdf", gotReq.Contents[0].Parts[1].InlineData.MimeType)
	assert.Equal(t, []byte("pdf bytes"), gotReq.Contents[0].Parts[1].InlineData.Data)
}

func TestGeminiConversationAccumulatesHistory(t *testing.T) {
	var lastReq geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&lastReq))
		json.NewEncoder(w).Encode(textResponse("reply"))
	}))
	defer server.Close()

	client := testGeminiClient(server.URL)
	conv := client.StartConversation(ConversationOptions{Persona: PersonaDefault})

	_, err := conv.SendTurn(context.Background(), "first", nil)
	require.NoError(t, err)
	_, err = conv.SendTurn(context.Background(), "second", nil)
	require.NoError(t, err)

	// user, model, user
	require.Len(t, lastReq.Contents, 3)
	assert.Equal(t, "first", lastReq.Contents[0].Parts[0].Text)
	assert.Equal(t, "model", lastReq.Contents[1].Role)
	assert.Equal(t, "second", lastReq.Contents[2].Parts[0].Text)
}

func TestGeminiSendToolResults(t *testing.T) {
	var lastReq geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&lastReq))
		json.NewEncoder(w).Encode(textResponse("done"))
	}))
	defer server.Close()

	client := testGeminiClient(server.URL)
	conv := client.StartConversation(ConversationOptions{Persona: PersonaDefault})

	result, err := conv.SendToolResults(context.Background(), []ToolResult{
		{ID: "c1", Name: "updateSection", Status: "Section updated."},
		{ID: "c2", Name: "generateChart", Status: "Chart rendered."},
	})
	require.NoError(t, err)
	assert.Equal(t, "done", result.Text)

	require.Len(t, lastReq.Contents, 1)
	parts := lastReq.Contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].FunctionResponse)
	assert.Equal(t, "updateSection", parts[0].FunctionResponse.Name)
	assert.Equal(t, map[string]any{"result": "Section updated."}, parts[0].FunctionResponse.Response)
	assert.Equal(t, "generateChart", parts[1].FunctionResponse.Name)
}

func TestGeminiHistorySeeding(t *testing.T) {
	var gotReq geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(textResponse("ok"))
	}))
	defer server.Close()

	client := testGeminiClient(server.URL)
	conv := client.StartConversation(ConversationOptions{
		Persona: PersonaDefault,
		History: []domain.Message{
			{Role: domain.RoleUser, Text: "Research Nike"},
			{Role: domain.RoleAgent, Text: "Working on it."},
			{Role: domain.RoleAgent, Chart: &domain.ChartSpec{Title: "Revenue"}}, // textless, skipped
		},
	})

	_, err := conv.SendTurn(context.Background(), "what about margins?", nil)
	require.NoError(t, err)

	require.Len(t, gotReq.Contents, 3)
	assert.Equal(t, "user", gotReq.Contents[0].Role)
	assert.Equal(t, "model", gotReq.Contents[1].Role)
	assert.Equal(t, "what about margins?", gotReq.Contents[2].Parts[0].Text)
}

// --- Retry behavior ---

func TestGeminiRetriesRateLimitExactlyMaxAttempts(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := testGeminiClient(server.URL)
	conv := client.StartConversation(ConversationOptions{Persona: PersonaDefault})

	start := time.Now()
	_, err := conv.SendTurn(context.Background(), "hello", nil)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, int32(3), attempts.Load())
	// Backoff doubles: base + 2*base between the three attempts.
	assert.GreaterOrEqual(t, elapsed, 3*time.Millisecond)
}

func TestGeminiRecoversAfterRateLimit(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(textResponse("finally"))
	}))
	defer server.Close()

	client := testGeminiClient(server.URL)
	conv := client.StartConversation(ConversationOptions{Persona: PersonaDefault})

	result, err := conv.SendTurn(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "finally", result.Text)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestGeminiDoesNotRetryOtherErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := testGeminiClient(server.URL)
	conv := client.StartConversation(ConversationOptions{Persona: PersonaDefault})

	_, err := conv.SendTurn(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.False(t, IsRateLimited(err))
	assert.Equal(t, int32(1), attempts.Load())

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusInternalServerError, pe.Code)
}

func TestGeminiFailedTurnNotDuplicatedOnRetry(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	var lastReq geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&lastReq))
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(textResponse("ok"))
	}))
	defer server.Close()

	client := testGeminiClient(server.URL)
	conv := client.StartConversation(ConversationOptions{Persona: PersonaDefault})

	_, err := conv.SendTurn(context.Background(), "hello", nil)
	require.Error(t, err)

	fail.Store(false)
	_, err = conv.SendTurn(context.Background(), "hello", nil)
	require.NoError(t, err)

	// The failed turn's content was rolled back, not sent twice.
	require.Len(t, lastReq.Contents, 1)
}
