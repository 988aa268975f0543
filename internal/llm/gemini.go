package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NamrataaKale/Account-Plan-Generator/internal/domain"
	"github.com/NamrataaKale/Account-Plan-Generator/internal/logging"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiClient is a direct HTTP client for the Google Gemini API.
// Rate-limit responses (429) are retried with exponential backoff; any other
// failure is surfaced immediately.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	log     *logging.Logger

	backoffBase time.Duration
	maxAttempts int
}

// NewGeminiClient creates a Gemini API client for the given model.
func NewGeminiClient(apiKey, model string, log *logging.Logger) *GeminiClient {
	return &GeminiClient{
		apiKey:      apiKey,
		model:       model,
		baseURL:     defaultGeminiBaseURL,
		client:      &http.Client{Timeout: 120 * time.Second},
		log:         log.Sub("llm.gemini"),
		backoffBase: 2 * time.Second,
		maxAttempts: 3,
	}
}

// Name returns the provider name.
func (g *GeminiClient) Name() string {
	return "gemini"
}

// StartConversation opens a stateful conversation seeded with prior history.
func (g *GeminiClient) StartConversation(opts ConversationOptions) Conversation {
	return &geminiConversation{
		client:   g,
		opts:     opts,
		contents: historyToContents(opts.History),
	}
}

// geminiConversation accumulates request/response contents so each call
// carries the full conversation, including functionCall/functionResponse
// rounds.
type geminiConversation struct {
	client *GeminiClient
	opts   ConversationOptions

	mu       sync.Mutex
	contents []geminiContent
}

func (c *geminiConversation) SendTurn(ctx context.Context, text string, attachment *domain.Attachment) (*TurnResult, error) {
	var parts []geminiPart
	if text != "" {
		parts = append(parts, geminiPart{Text: text})
	}
	if attachment != nil {
		parts = append(parts, geminiPart{InlineData: &geminiBlob{
			MimeType: attachment.MimeType,
			Data:     attachment.Data,
		}})
	}
	return c.send(ctx, geminiContent{Role: "user", Parts: parts})
}

func (c *geminiConversation) SendToolResults(ctx context.Context, results []ToolResult) (*TurnResult, error) {
	parts := make([]geminiPart, 0, len(results))
	for _, r := range results {
		parts = append(parts, geminiPart{FunctionResponse: &geminiFunctionResponse{
			Name:     r.Name,
			Response: map[string]any{"result": r.Status},
		}})
	}
	return c.send(ctx, geminiContent{Role: "user", Parts: parts})
}

func (c *geminiConversation) send(ctx context.Context, content geminiContent) (*TurnResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.contents = append(c.contents, content)

	resp, err := c.client.generate(ctx, c.buildRequest())
	if err != nil {
		// Drop the unanswered content so a retried turn doesn't duplicate it.
		c.contents = c.contents[:len(c.contents)-1]
		return nil, err
	}

	if len(resp.Candidates) > 0 {
		c.contents = append(c.contents, resp.Candidates[0].Content)
	}
	return resultFromResponse(resp), nil
}

func (c *geminiConversation) buildRequest() geminiRequest {
	req := geminiRequest{
		Contents: c.contents,
		GenerationConfig: geminiGenerationConfig{
			Temperature: c.opts.Persona.Temperature(),
		},
	}
	if c.opts.Instruction != "" {
		req.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: c.opts.Instruction}},
		}
	}
	if len(c.opts.Tools) > 0 {
		decls := make([]FunctionDeclaration, len(c.opts.Tools))
		copy(decls, c.opts.Tools)
		req.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}
	return req
}

// generate performs one generateContent call with bounded retry on 429.
func (g *GeminiClient) generate(ctx context.Context, req geminiRequest) (*geminiResponse, error) {
	delay := g.backoffBase
	var lastErr error

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if attempt > 1 {
			g.log.Warn().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("rate limited, backing off")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		resp, err := g.doRequest(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsRateLimited(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

func (g *GeminiClient) doRequest(ctx context.Context, req geminiRequest) (*geminiResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		g.baseURL, g.model, url.QueryEscape(g.apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider: "gemini",
			Message:  strings.TrimSpace(string(body)),
			Code:     resp.StatusCode,
		}
	}

	var result geminiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

// resultFromResponse flattens the first candidate into a TurnResult.
func resultFromResponse(resp *geminiResponse) *TurnResult {
	result := &TurnResult{}
	if len(resp.Candidates) == 0 {
		return result
	}

	candidate := resp.Candidates[0]

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				ID:   uuid.New().String(),
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}
	result.Text = text.String()

	if gm := candidate.GroundingMetadata; gm != nil {
		for _, chunk := range gm.GroundingChunks {
			if chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			result.Citations = append(result.Citations, domain.Source{
				Title: chunk.Web.Title,
				URI:   chunk.Web.URI,
			})
		}
	}

	return result
}

// historyToContents replays a transcript as conversation contents. Chart-only
// and other textless messages are skipped; the remote side only needs the
// dialogue.
func historyToContents(history []domain.Message) []geminiContent {
	var contents []geminiContent
	for _, msg := range history {
		if msg.Text == "" {
			continue
		}
		role := "user"
		if msg.Role == domain.RoleAgent {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: msg.Text}},
		})
	}
	return contents
}

// Wire structures

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	Tools             []geminiTool           `json:"tools,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiTool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

type geminiGenerationConfig struct {
	Temperature float64 `json:"temperature"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	InlineData       *geminiBlob             `json:"inlineData,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiBlob struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type geminiFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type geminiFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content           geminiContent      `json:"content"`
	FinishReason      string             `json:"finishReason,omitempty"`
	GroundingMetadata *groundingMetadata `json:"groundingMetadata,omitempty"`
}

type groundingMetadata struct {
	GroundingChunks []groundingChunk `json:"groundingChunks"`
}

type groundingChunk struct {
	Web *groundingWeb `json:"web,omitempty"`
}

type groundingWeb struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}
