package cortex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"cortexrelay/clients"
	"cortexrelay/core"
	"cortexrelay/models"
)

const (
	defaultTimeout = 120 * time.Second

	analystToolName = "sql_analyst_tool"
	searchToolName  = "search_tool"

	requestIDHeader = "X-Snowflake-Request-Id"
)

// Options configures a CortexClient.
type Options struct {
	AgentURL      string
	Model         string
	SemanticModel string
	SearchService string        // optional - enables the cortex_search tool when set
	Timeout       time.Duration // optional - defaults to 120s
}

// CortexClient implements the clients.CortexClient interface against the
// Cortex Agent REST endpoint. Responses arrive as an SSE stream which is
// aggregated into a single ChatResponse.
type CortexClient struct {
	httpClient *http.Client
	opts       Options
	tokens     clients.TokenSource
}

// NewCortexClient creates a new Cortex Agent client
func NewCortexClient(opts Options, tokens clients.TokenSource) clients.CortexClient {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &CortexClient{
		httpClient: &http.Client{Timeout: timeout},
		opts:       opts,
		tokens:     tokens,
	}
}

type agentRequest struct {
	Model         string                    `json:"model"`
	Messages      []agentMessage            `json:"messages"`
	Tools         []agentTool               `json:"tools"`
	ToolResources map[string]map[string]any `json:"tool_resources"`
}

type agentMessage struct {
	Role    string              `json:"role"`
	Content []agentContentBlock `json:"content"`
}

type agentContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type agentTool struct {
	ToolSpec agentToolSpec `json:"tool_spec"`
}

type agentToolSpec struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// Chat sends one user prompt to the Cortex Agent and returns the parsed
// response. A 401 triggers exactly one token refresh and retry; all other
// failures are surfaced to the caller without retries.
func (c *CortexClient) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	payload, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal agent request: %w", err)
	}

	resp, err := c.post(ctx, payload)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Likely an expired credential - mint a fresh token and retry once
		drainAndClose(resp.Body)
		log.Printf("⚠️ Cortex agent returned 401 - refreshing token and retrying once")
		c.tokens.ForceRefresh()

		resp, err = c.post(ctx, payload)
		if err != nil {
			return nil, err
		}
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &core.APIError{
			StatusCode: resp.StatusCode,
			Message:    string(bytes.TrimSpace(body)),
			RequestID:  resp.Header.Get(requestIDHeader),
		}
	}

	response, err := parseAgentStream(resp.Body)
	if err != nil {
		return nil, err
	}
	response.RequestID = req.RequestID
	return response, nil
}

func (c *CortexClient) buildRequest(req models.ChatRequest) agentRequest {
	request := agentRequest{
		Model: c.opts.Model,
		Messages: []agentMessage{
			{
				Role:    "user",
				Content: []agentContentBlock{{Type: "text", Text: req.Prompt}},
			},
		},
		Tools: []agentTool{
			{ToolSpec: agentToolSpec{Type: "cortex_analyst_text_to_sql", Name: analystToolName}},
		},
		ToolResources: map[string]map[string]any{
			analystToolName: {"semantic_model_file": c.opts.SemanticModel},
		},
	}

	if c.opts.SearchService != "" {
		request.Tools = append(request.Tools, agentTool{
			ToolSpec: agentToolSpec{Type: "cortex_search", Name: searchToolName},
		})
		request.ToolResources[searchToolName] = map[string]any{"name": c.opts.SearchService}
	}

	return request
}

func (c *CortexClient) post(ctx context.Context, payload []byte) (*http.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get bearer token: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.AgentURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build agent request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("X-Snowflake-Authorization-Token-Type", c.tokens.TokenType())
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if core.IsTimeoutError(err) {
			return nil, &core.TimeoutError{Err: err}
		}
		return nil, fmt.Errorf("failed to call cortex agent: %w", err)
	}
	return resp, nil
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
