package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"ai-market-dashboard/internal/store"
	"ai-market-dashboard/internal/trace"
	"ai-market-dashboard/internal/types"
)

// Request describes one generateContent call. Grounding and ResponseSchema
// are mutually exclusive: the upstream API rejects structured output combined
// with the search tool, so entity resolution runs without grounding.
type Request struct {
	Model          string
	Prompt         string
	System         string
	Grounding      bool
	ResponseSchema map[string]any
}

// Result is the raw outcome of a call: concatenated candidate text plus the
// deduplicated grounding citations (empty for non-grounded calls).
type Result struct {
	Text    string
	Sources []types.Source
}

// Generator is implemented by the Client and by test fakes.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Client talks to the Gemini generateContent REST API.
type Client struct {
	cfg        *store.Config
	endpoint   string
	httpClient *http.Client
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithEndpoint overrides the API base URL.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// NewClient creates a Gemini client from config. The API key is read from the
// environment variable named by gemini.api_key_env at call time, not cached.
func NewClient(cfg *store.Config, opts ...ClientOption) *Client {
	c := &Client{
		cfg:      cfg,
		endpoint: cfg.Gemini.Endpoint,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wire types for the generateContent request body.
type genRequest struct {
	Contents          []genContent `json:"contents"`
	SystemInstruction *genContent  `json:"systemInstruction,omitempty"`
	Tools             []genTool    `json:"tools,omitempty"`
	GenerationConfig  *genConfig   `json:"generationConfig,omitempty"`
}

type genContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []genPart `json:"parts"`
}

type genPart struct {
	Text string `json:"text"`
}

type genTool struct {
	GoogleSearch struct{} `json:"google_search"`
}

type genConfig struct {
	MaxOutputTokens  int            `json:"maxOutputTokens,omitempty"`
	Temperature      float32        `json:"temperature,omitempty"`
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

// Wire types for the response.
type genResponse struct {
	Candidates []struct {
		Content struct {
			Parts []genPart `json:"parts"`
		} `json:"content"`
		GroundingMetadata struct {
			GroundingChunks []struct {
				Web struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate issues one generateContent call and returns the candidate text
// together with deduplicated grounding citations.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	ctx, span := trace.StartSpan(ctx, "gemini-generate")
	defer span.End()

	apiKey := os.Getenv(c.cfg.Gemini.APIKeyEnv)
	if apiKey == "" {
		return nil, errors.New(c.cfg.Gemini.APIKeyEnv + " missing")
	}

	model := req.Model
	if model == "" {
		model = c.cfg.Gemini.Model
	}

	body := genRequest{
		Contents: []genContent{
			{Role: "user", Parts: []genPart{{Text: req.Prompt}}},
		},
		GenerationConfig: &genConfig{
			MaxOutputTokens: c.cfg.Gemini.MaxTokens,
			Temperature:     c.cfg.Gemini.Temperature,
		},
	}
	if req.System != "" {
		body.SystemInstruction = &genContent{Parts: []genPart{{Text: req.System}}}
	}
	if req.Grounding {
		body.Tools = []genTool{{}}
	}
	if req.ResponseSchema != nil {
		body.GenerationConfig.ResponseMimeType = "application/json"
		body.GenerationConfig.ResponseSchema = req.ResponseSchema
	}

	bb, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bb))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{StatusCode: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "failed to read response body"}
	}

	if resp.StatusCode >= 300 {
		return nil, classifyHTTPError(resp.StatusCode, string(respBytes))
	}

	var gr genResponse
	if err := json.Unmarshal(respBytes, &gr); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "unparseable response body"}
	}
	// Some failures come back as 200 with an embedded error object.
	if gr.Error.Code != 0 {
		return nil, classifyHTTPError(gr.Error.Code, gr.Error.Status+": "+gr.Error.Message)
	}
	if len(gr.Candidates) == 0 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "no candidates in response"}
	}

	cand := gr.Candidates[0]
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		sb.WriteString(part.Text)
	}

	raw := make([]types.Source, 0, len(cand.GroundingMetadata.GroundingChunks))
	for _, chunk := range cand.GroundingMetadata.GroundingChunks {
		raw = append(raw, types.Source{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}

	return &Result{
		Text:    sb.String(),
		Sources: DedupSources(raw),
	}, nil
}
