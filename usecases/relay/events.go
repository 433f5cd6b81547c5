package relay

import (
	"context"
	"fmt"
	"log"

	"cortexrelay/core"
	"cortexrelay/models"
)

// ProcessMessageEvent relays one Slack message to the Cortex Agent and posts
// the answer back to the originating channel.
func (u *RelayUseCase) ProcessMessageEvent(ctx context.Context, event models.SlackMessageEvent) error {
	log.Printf("📋 Starting to process message event from %s in %s: %s", event.User, event.Channel, event.Text)

	prompt, opts := ParseMessageCommands(event.Text)
	if prompt == "" {
		return u.postText(event, "Please ask me a question about your data.")
	}

	if err := u.postGeneratingNotice(event); err != nil {
		// Not critical - the answer itself may still go through
		log.Printf("⚠️ Failed to post interim notice to %s: %v", event.Channel, err)
	}

	request := models.ChatRequest{
		Prompt:    prompt,
		SessionID: event.Channel,
		RequestID: core.NewID("req"),
	}
	response, err := u.cortexClient.Chat(ctx, request)
	if err != nil {
		return fmt.Errorf("failed to get cortex agent response: %w", err)
	}
	log.Printf("📋 Cortex agent answered request %s (sql: %t, suggestions: %d)",
		request.RequestID, response.HasSQL(), len(response.Suggestions))

	return u.postAgentResponse(ctx, event, response, opts)
}

// postAgentResponse mirrors the display precedence of the agent output:
// SQL results first, then suggestions, then plain text, then a notice when
// nothing displayable came back.
func (u *RelayUseCase) postAgentResponse(
	ctx context.Context,
	event models.SlackMessageEvent,
	response *models.ChatResponse,
	opts MessageOptions,
) error {
	displayed := false

	if response.HasSQL() {
		if err := u.postAnalystResults(ctx, event, response.SQL, opts); err != nil {
			return err
		}
		displayed = true
	}

	if response.HasSuggestions() {
		if err := u.postSuggestions(event, response); err != nil {
			return err
		}
		displayed = true
	} else if !displayed && response.Text != "" {
		if err := u.postAnswerText(event, response.Text); err != nil {
			return err
		}
		displayed = true
	}

	if !displayed {
		log.Printf("⚠️ Agent response for %s had no displayable content", event.Channel)
		return u.postText(event, "I received a response, but couldn't find specific information to display.")
	}

	log.Printf("📋 Completed successfully - processed message event in %s", event.Channel)
	return nil
}

// postAnalystResults executes agent-generated SQL (when a session is
// configured) and posts the statement and/or its results.
func (u *RelayUseCase) postAnalystResults(
	ctx context.Context,
	event models.SlackMessageEvent,
	sql string,
	opts MessageOptions,
) error {
	var result *models.QueryResult
	var execErr error

	if u.sessions != nil {
		result, execErr = u.sessions.RunQuery(ctx, sql)
		if execErr != nil {
			log.Printf("❌ Failed to execute agent-generated SQL: %v", execErr)
		}
	}

	return u.postResultsMessage(ctx, event, sql, result, execErr, opts)
}
