package relay

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/slack-go/slack"

	"cortexrelay/clients"
	"cortexrelay/core"
	"cortexrelay/models"
	"cortexrelay/utils"
)

// Slack caps text block objects at 3000 characters; beyond that the results
// are delivered as a CSV file instead of an in-message table.
const maxInlineResultsChars = 2900

func (u *RelayUseCase) postGeneratingNotice(event models.SlackMessageEvent) error {
	return u.postBlocks(event, "Snowflake Cortex AI is generating a response", []slack.Block{
		slack.NewDividerBlock(),
		plainTextSection(":snowflake: Snowflake Cortex AI is generating a response. Please wait..."),
		slack.NewDividerBlock(),
	})
}

func (u *RelayUseCase) postAnswerText(event models.SlackMessageEvent, text string) error {
	return u.postBlocks(event, "Answer:", []slack.Block{
		mrkdwnSection(utils.ConvertMarkdownToSlack(text)),
	})
}

func (u *RelayUseCase) postSuggestions(event models.SlackMessageEvent, response *models.ChatResponse) error {
	var lines []string
	if response.Text != "" {
		lines = append(lines, utils.ConvertMarkdownToSlack(response.Text), "")
	}
	lines = append(lines, "*Suggestions:*")
	for _, suggestion := range response.Suggestions {
		lines = append(lines, "• "+suggestion)
	}

	return u.postBlocks(event, "Suggestions available", []slack.Block{
		mrkdwnSection(strings.Join(lines, "\n")),
	})
}

// postResultsMessage posts the analyst SQL and its results. Results too large
// for an in-message table fall back to a CSV file upload; the same fallback
// applies when Slack rejects the rendered message as too long.
func (u *RelayUseCase) postResultsMessage(
	ctx context.Context,
	event models.SlackMessageEvent,
	sql string,
	result *models.QueryResult,
	execErr error,
	opts MessageOptions,
) error {
	prompt, _ := ParseMessageCommands(event.Text)

	sections := []string{"*Analyst Response:*"}
	if opts.ShowSQL {
		sections = append(sections, fmt.Sprintf("```SQL:\n%s```", sql))
	}

	switch {
	case execErr != nil:
		sections = append(sections, fmt.Sprintf("```Error:\n%v```", execErr))
	case result != nil && result.Empty():
		sections = append(sections, fmt.Sprintf("Your query %q ran successfully but returned no data.", prompt))
	case result != nil:
		rendered := RenderResultsTable(result)
		if len(rendered) > maxInlineResultsChars {
			return u.uploadResultsCSV(ctx, event, sql, result, opts)
		}
		sections = append(sections, fmt.Sprintf("```Results:\n%s```", rendered))
	default:
		// No session configured - show the statement so the user can run it themselves
		if !opts.ShowSQL {
			sections = append(sections, fmt.Sprintf("```SQL:\n%s```", sql))
		}
		sections = append(sections, "_SQL execution is not configured for this relay - statement shown above._")
	}

	err := u.postBlocks(event, "SQL Query and Results", []slack.Block{
		mrkdwnSection(strings.Join(sections, "\n")),
	})
	if clients.IsMessageTooLongError(err) && result != nil && !result.Empty() {
		log.Printf("📋 Message too long for Slack - falling back to CSV upload")
		return u.uploadResultsCSV(ctx, event, sql, result, opts)
	}
	return err
}

func (u *RelayUseCase) uploadResultsCSV(
	ctx context.Context,
	event models.SlackMessageEvent,
	sql string,
	result *models.QueryResult,
	opts MessageOptions,
) error {
	prompt, _ := ParseMessageCommands(event.Text)

	if opts.ShowSQL {
		notice := fmt.Sprintf(
			"The results for your query were too long to display, but here is the SQL you requested:\n```%s```", sql)
		if err := u.postBlocks(event, "SQL for your query", []slack.Block{mrkdwnSection(notice)}); err != nil {
			log.Printf("⚠️ Failed to post SQL notice before CSV upload: %v", err)
		}
	}

	content, err := BuildResultsCSV(result)
	if err != nil {
		return fmt.Errorf("failed to build results CSV: %w", err)
	}

	if err := u.slackClient.UploadFile(ctx, clients.SlackFileUploadParams{
		Channel:        event.Channel,
		Filename:       "cortex_results.csv",
		Title:          fmt.Sprintf("Results for: %s", prompt),
		InitialComment: fmt.Sprintf("The results for your query, %q, were too long to display directly. Here they are in the attached file.", prompt),
		Content:        content,
	}); err != nil {
		return &core.SlackPostError{Channel: event.Channel, Err: err}
	}

	log.Printf("📤 Uploaded results CSV to channel %s", event.Channel)
	return nil
}

func (u *RelayUseCase) postErrorMessage(event models.SlackMessageEvent, cause error) {
	text := fmt.Sprintf("Request failed: %v", cause)
	if core.IsTimeoutError(cause) {
		text = ":hourglass: The request to Snowflake Cortex timed out. Please try again."
	}

	err := u.postBlocks(event, "Request failed...", []slack.Block{
		slack.NewDividerBlock(),
		plainTextSection(text),
		slack.NewDividerBlock(),
	})
	if err != nil {
		// Nothing more we can do for this event; the process stays up
		log.Printf("❌ Failed to post error message to %s: %v", event.Channel, err)
	}
}

func (u *RelayUseCase) postText(event models.SlackMessageEvent, text string) error {
	return u.postBlocks(event, text, nil)
}

func (u *RelayUseCase) postBlocks(event models.SlackMessageEvent, fallbackText string, blocks []slack.Block) error {
	_, err := u.slackClient.PostMessage(event.Channel, clients.SlackMessageParams{
		Text:     fallbackText,
		ThreadTS: event.ThreadTS,
		Blocks:   blocks,
	})
	if err != nil {
		if clients.IsMessageTooLongError(err) {
			// Caller decides on the fallback
			return err
		}
		return &core.SlackPostError{Channel: event.Channel, Err: err}
	}
	return nil
}

func plainTextSection(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(slack.NewTextBlockObject(slack.PlainTextType, text, true, false), nil, nil)
}

func mrkdwnSection(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)
}
