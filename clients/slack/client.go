package slack

import (
	"context"
	"strings"

	"github.com/slack-go/slack"

	"cortexrelay/clients"
)

// SlackClient implements the clients.SlackClient interface using the slack-go/slack SDK
type SlackClient struct {
	*slack.Client
}

// NewSlackClient creates a new Slack client with the provided bot token
func NewSlackClient(botToken string) clients.SlackClient {
	return &SlackClient{
		Client: slack.New(botToken),
	}
}

// AuthTest verifies the bot token and returns information about the bot
func (c *SlackClient) AuthTest() (*clients.SlackAuthTestResponse, error) {
	response, err := c.Client.AuthTest()
	if err != nil {
		return nil, err
	}

	return &clients.SlackAuthTestResponse{
		UserID: response.UserID,
		TeamID: response.TeamID,
	}, nil
}

// PostMessage sends a message to a Slack channel
func (c *SlackClient) PostMessage(
	channelID string,
	params clients.SlackMessageParams,
) (*clients.SlackPostMessageResponse, error) {
	var sdkOptions []slack.MsgOption
	if params.Text != "" {
		sdkOptions = append(sdkOptions, slack.MsgOptionText(params.Text, false))
	}
	if len(params.Blocks) > 0 {
		sdkOptions = append(sdkOptions, slack.MsgOptionBlocks(params.Blocks...))
	}
	if params.ThreadTS != "" {
		sdkOptions = append(sdkOptions, slack.MsgOptionTS(params.ThreadTS))
	}

	channel, timestamp, err := c.Client.PostMessage(channelID, sdkOptions...)
	if err != nil {
		return nil, err
	}

	return &clients.SlackPostMessageResponse{
		Channel:   channel,
		Timestamp: timestamp,
	}, nil
}

// UploadFile uploads a file to a Slack channel with an initial comment
func (c *SlackClient) UploadFile(ctx context.Context, params clients.SlackFileUploadParams) error {
	_, err := c.Client.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Channel:        params.Channel,
		Filename:       params.Filename,
		Title:          params.Title,
		InitialComment: params.InitialComment,
		Reader:         strings.NewReader(params.Content),
		FileSize:       len(params.Content),
	})
	return err
}
