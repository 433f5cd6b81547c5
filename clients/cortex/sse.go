package cortex

import (
	"bufio"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"cortexrelay/core"
	"cortexrelay/models"
)

// Shapes of the Cortex Agent SSE stream. Each "data:" line carries either a
// message.delta with content entries (text / tool_use / tool_results) or an
// in-stream error object with code and message.
type sseEvent struct {
	Object    string          `json:"object"`
	Code      json.RawMessage `json:"code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Delta     *sseDelta       `json:"delta"`
}

type sseDelta struct {
	Content []sseContentEntry `json:"content"`
}

type sseContentEntry struct {
	Type        string          `json:"type"`
	Text        string          `json:"text"`
	ToolUse     json.RawMessage `json:"tool_use"`
	ToolResults *sseToolResults `json:"tool_results"`
}

type sseToolResults struct {
	Content []sseToolResultBlock `json:"content"`
}

type sseToolResultBlock struct {
	JSON *analystPayload `json:"json"`
}

// analystPayload is the JSON block the cortex_analyst tool emits: the
// generated SQL, or follow-up suggestions with accompanying text.
type analystPayload struct {
	SQL         string   `json:"sql"`
	Text        string   `json:"text"`
	Suggestions []string `json:"suggestions"`
}

// parseAgentStream aggregates the whole SSE body into a single ChatResponse.
func parseAgentStream(body io.Reader) (*models.ChatResponse, error) {
	var (
		text            strings.Builder
		sql             string
		suggestions     []string
		suggestionsText string
		streamErrors    []string
		sawToolUse      bool
		sawData         bool
	)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			break
		}

		var event sseEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			log.Printf("⚠️ Failed to parse SSE line as JSON: %s", payload)
			continue
		}
		sawData = true

		if len(event.Code) > 0 && event.Message != "" {
			log.Printf("❌ SSE error in stream: code %s - %s (request_id: %s)",
				string(event.Code), event.Message, event.RequestID)
			streamErrors = append(streamErrors, event.Message)
			continue
		}

		if event.Object != "message.delta" || event.Delta == nil {
			continue
		}

		for _, entry := range event.Delta.Content {
			switch entry.Type {
			case "text":
				text.WriteString(entry.Text)
			case "tool_use":
				sawToolUse = true
			case "tool_results":
				if entry.ToolResults == nil {
					continue
				}
				for _, block := range entry.ToolResults.Content {
					if block.JSON == nil {
						continue
					}
					if block.JSON.SQL != "" {
						sql = block.JSON.SQL
					}
					if len(block.JSON.Suggestions) > 0 {
						suggestions = append(suggestions, block.JSON.Suggestions...)
						if block.JSON.Text != "" {
							suggestionsText = block.JSON.Text
						}
					}
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		if core.IsTimeoutError(err) {
			return nil, &core.TimeoutError{Err: err}
		}
		return nil, &core.ParseError{Reason: "stream read failed: " + err.Error()}
	}
	if !sawData {
		return nil, &core.ParseError{Reason: "response body contained no parseable SSE data"}
	}

	finalText := text.String()
	// Text that arrived alongside suggestions is usually the more relevant answer
	if suggestionsText != "" {
		finalText = suggestionsText
	} else if finalText == "" && sql == "" && len(suggestions) == 0 {
		if sawToolUse && len(streamErrors) == 0 {
			finalText = "I used my tools but didn't find a specific answer or SQL query."
		}
	}

	if finalText == "" && sql == "" && len(suggestions) == 0 && len(streamErrors) > 0 {
		return nil, &core.APIError{StatusCode: http.StatusOK, Message: streamErrors[0]}
	}

	return &models.ChatResponse{
		Text:        finalText,
		SQL:         sql,
		Suggestions: suggestions,
	}, nil
}
