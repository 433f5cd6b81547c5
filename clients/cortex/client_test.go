package cortex

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cortexrelay/core"
	"cortexrelay/models"
	"cortexrelay/services/auth"
)

// cortexClientTestFixture wires a CortexClient against an httptest server
type cortexClientTestFixture struct {
	tokens *auth.MockTokenSource
	ctx    context.Context
}

func setupCortexClientTest(t *testing.T) *cortexClientTestFixture {
	tokens := new(auth.MockTokenSource)
	tokens.On("Token", mock.Anything).Return("test-token", nil)
	tokens.On("TokenType").Return("KEYPAIR_JWT")

	return &cortexClientTestFixture{
		tokens: tokens,
		ctx:    context.Background(),
	}
}

func (f *cortexClientTestFixture) newClient(serverURL string, opts Options) *CortexClient {
	opts.AgentURL = serverURL
	if opts.Model == "" {
		opts.Model = "claude-3-5-sonnet"
	}
	if opts.SemanticModel == "" {
		opts.SemanticModel = "@db.schema.stage/model.yaml"
	}
	return NewCortexClient(opts, f.tokens).(*CortexClient)
}

func testChatRequest() models.ChatRequest {
	return models.ChatRequest{
		Prompt:    "What is total revenue?",
		SessionID: "C123456789",
		RequestID: "req_01G0EZ1XTM37C5X11SQTDNCTM1",
	}
}

func TestCortexClientChat(t *testing.T) {
	t.Run("posts_prompt_and_parses_sse_answer", func(t *testing.T) {
		fixture := setupCortexClientTest(t)

		var gotRequest agentRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			assert.Equal(t, "KEYPAIR_JWT", r.Header.Get("X-Snowflake-Authorization-Token-Type"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &gotRequest))

			_, _ = io.WriteString(w, sseBody(
				`{"object":"message.delta","delta":{"content":[{"type":"text","text":"42"}]}}`,
			))
		}))
		defer server.Close()

		client := fixture.newClient(server.URL, Options{})
		response, err := client.Chat(fixture.ctx, testChatRequest())
		require.NoError(t, err)

		assert.Equal(t, "42", response.Text)
		assert.Equal(t, "req_01G0EZ1XTM37C5X11SQTDNCTM1", response.RequestID)

		require.Len(t, gotRequest.Messages, 1)
		assert.Equal(t, "user", gotRequest.Messages[0].Role)
		assert.Equal(t, "What is total revenue?", gotRequest.Messages[0].Content[0].Text)
		require.Len(t, gotRequest.Tools, 1)
		assert.Equal(t, "cortex_analyst_text_to_sql", gotRequest.Tools[0].ToolSpec.Type)
		assert.Equal(t, "@db.schema.stage/model.yaml",
			gotRequest.ToolResources["sql_analyst_tool"]["semantic_model_file"])
	})

	t.Run("adds_search_tool_when_service_is_configured", func(t *testing.T) {
		fixture := setupCortexClientTest(t)

		var gotRequest agentRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &gotRequest))
			_, _ = io.WriteString(w, sseBody(
				`{"object":"message.delta","delta":{"content":[{"type":"text","text":"ok"}]}}`,
			))
		}))
		defer server.Close()

		client := fixture.newClient(server.URL, Options{SearchService: "db.schema.search_svc"})
		_, err := client.Chat(fixture.ctx, testChatRequest())
		require.NoError(t, err)

		require.Len(t, gotRequest.Tools, 2)
		assert.Equal(t, "cortex_search", gotRequest.Tools[1].ToolSpec.Type)
		assert.Equal(t, "db.schema.search_svc", gotRequest.ToolResources["search_tool"]["name"])
	})

	t.Run("retries_once_with_a_fresh_token_on_401", func(t *testing.T) {
		fixture := setupCortexClientTest(t)
		fixture.tokens.On("ForceRefresh").Return()

		requestCount := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestCount++
			if requestCount == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, sseBody(
				`{"object":"message.delta","delta":{"content":[{"type":"text","text":"retried"}]}}`,
			))
		}))
		defer server.Close()

		client := fixture.newClient(server.URL, Options{})
		response, err := client.Chat(fixture.ctx, testChatRequest())
		require.NoError(t, err)

		assert.Equal(t, "retried", response.Text)
		assert.Equal(t, 2, requestCount)
		fixture.tokens.AssertNumberOfCalls(t, "ForceRefresh", 1)
	})

	t.Run("persistent_401_is_an_api_error", func(t *testing.T) {
		fixture := setupCortexClientTest(t)
		fixture.tokens.On("ForceRefresh").Return()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client := fixture.newClient(server.URL, Options{})
		_, err := client.Chat(fixture.ctx, testChatRequest())

		var apiErr *core.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		fixture.tokens.AssertNumberOfCalls(t, "ForceRefresh", 1)
	})

	t.Run("non_200_surfaces_status_body_and_request_id", func(t *testing.T) {
		fixture := setupCortexClientTest(t)

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Snowflake-Request-Id", "sf-req-1")
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"message":"insufficient privileges"}`)
		}))
		defer server.Close()

		client := fixture.newClient(server.URL, Options{})
		_, err := client.Chat(fixture.ctx, testChatRequest())

		var apiErr *core.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
		assert.Contains(t, apiErr.Message, "insufficient privileges")
		assert.Equal(t, "sf-req-1", apiErr.RequestID)
	})

	t.Run("slow_agent_becomes_a_timeout_error", func(t *testing.T) {
		fixture := setupCortexClientTest(t)

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(500 * time.Millisecond)
		}))
		defer server.Close()

		client := fixture.newClient(server.URL, Options{Timeout: 50 * time.Millisecond})
		_, err := client.Chat(fixture.ctx, testChatRequest())

		require.Error(t, err)
		assert.True(t, core.IsTimeoutError(err))
	})

	t.Run("token_failure_aborts_before_any_http_call", func(t *testing.T) {
		tokens := new(auth.MockTokenSource)
		tokens.On("Token", mock.Anything).
			Return("", &core.CredentialError{Path: "/keys/rsa_key.p8", Err: errors.New("gone")})

		called := false
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer server.Close()

		client := NewCortexClient(Options{
			AgentURL:      server.URL,
			Model:         "claude-3-5-sonnet",
			SemanticModel: "@db.schema.stage/model.yaml",
		}, tokens)

		_, err := client.Chat(context.Background(), testChatRequest())
		require.Error(t, err)
		assert.False(t, called)
	})
}
