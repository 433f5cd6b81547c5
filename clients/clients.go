package clients

import (
	"context"
	"strings"

	"github.com/slack-go/slack"

	"cortexrelay/models"
)

// TokenSource supplies bearer credentials for the Snowflake API.
type TokenSource interface {
	// Token returns a currently valid bearer token, minting or refreshing as needed.
	Token(ctx context.Context) (string, error)
	// TokenType is the value for the X-Snowflake-Authorization-Token-Type header.
	TokenType() string
	// ForceRefresh discards any cached token so the next Token call mints a fresh one.
	ForceRefresh()
}

// CortexClient defines the interface for talking to the Cortex Agent endpoint
type CortexClient interface {
	Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error)
}

// SlackMessageParams carries everything needed to post one Slack message.
// Blocks take precedence for rendering; Text is the notification fallback.
type SlackMessageParams struct {
	Text     string
	ThreadTS string
	Blocks   []slack.Block
}

// SlackPostMessageResponse contains the result of posting a message
type SlackPostMessageResponse struct {
	Channel   string
	Timestamp string
}

// SlackFileUploadParams carries everything needed to upload a file to a channel.
type SlackFileUploadParams struct {
	Channel        string
	Filename       string
	Title          string
	InitialComment string
	Content        string
}

// SlackAuthTestResponse contains the bot identity returned by auth.test
type SlackAuthTestResponse struct {
	UserID string
	TeamID string
}

// SlackClient defines the interface for Slack Web API operations used by the relay
type SlackClient interface {
	AuthTest() (*SlackAuthTestResponse, error)
	PostMessage(channelID string, params SlackMessageParams) (*SlackPostMessageResponse, error)
	UploadFile(ctx context.Context, params SlackFileUploadParams) error
}

// IsMessageTooLongError reports whether a Slack post failed because the
// rendered blocks exceeded Slack's message size limits.
func IsMessageTooLongError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "msg_blocks_too_long") || strings.Contains(msg, "msg_too_long")
}
