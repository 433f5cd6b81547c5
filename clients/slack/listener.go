package slack

import (
	"context"
	"fmt"
	"log"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"cortexrelay/models"
)

// MessageHandler processes a single incoming Slack message event.
type MessageHandler func(ctx context.Context, event models.SlackMessageEvent)

// EventListener receives Events API payloads over Slack socket mode and
// dispatches message events to the registered handler. Events are acked
// immediately and handled one at a time, in arrival order.
type EventListener struct {
	api          *slack.Client
	socketClient *socketmode.Client
	handler      MessageHandler
	botUserID    string
}

// NewEventListener creates a socket mode listener from the app-level and bot tokens
func NewEventListener(appToken, botToken string) *EventListener {
	api := slack.New(botToken, slack.OptionAppLevelToken(appToken))
	return &EventListener{
		api:          api,
		socketClient: socketmode.New(api),
	}
}

// RegisterMessageHandler sets the handler invoked for each message event
func (l *EventListener) RegisterMessageHandler(handler MessageHandler) {
	l.handler = handler
}

// Run connects to Slack and blocks until the context is cancelled or the
// socket mode connection fails permanently.
func (l *EventListener) Run(ctx context.Context) error {
	authTest, err := l.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify slack bot token: %w", err)
	}
	l.botUserID = authTest.UserID
	log.Printf("✅ Slack auth verified - bot user %s on team %s", authTest.UserID, authTest.TeamID)

	go l.consumeEvents(ctx)

	return l.socketClient.RunContext(ctx)
}

func (l *EventListener) consumeEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-l.socketClient.Events:
			if !ok {
				return
			}
			l.handleSocketEvent(ctx, evt)
		}
	}
}

func (l *EventListener) handleSocketEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		log.Printf("📋 Connecting to Slack with socket mode...")
	case socketmode.EventTypeConnectionError:
		log.Printf("❌ Slack socket mode connection error: %v", evt.Data)
	case socketmode.EventTypeConnected:
		log.Printf("✅ Connected to Slack with socket mode")
	case socketmode.EventTypeEventsAPI:
		eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			log.Printf("⚠️ Ignored unexpected events API payload: %+v", evt)
			return
		}
		// Ack before handling so Slack does not redeliver while we wait on Cortex
		if evt.Request != nil {
			l.socketClient.Ack(*evt.Request)
		}
		l.handleEventsAPIEvent(ctx, eventsAPIEvent)
	}
}

func (l *EventListener) handleEventsAPIEvent(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}

	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		// Skip bot messages, our own messages, and edits/deletes/joins
		if ev.BotID != "" || ev.User == "" || ev.User == l.botUserID || ev.SubType != "" {
			return
		}
		if l.handler == nil {
			log.Printf("⚠️ No message handler registered - dropping message from %s", ev.User)
			return
		}
		l.handler(ctx, models.SlackMessageEvent{
			User:     ev.User,
			Channel:  ev.Channel,
			Text:     ev.Text,
			TS:       ev.TimeStamp,
			ThreadTS: ev.ThreadTimeStamp,
		})
	}
}
