package relay

import (
	"context"
	"log"

	"cortexrelay/clients"
	"cortexrelay/models"
	"cortexrelay/services"
)

// RelayUseCase handles the Slack-to-Cortex round trip for one message event
type RelayUseCase struct {
	slackClient  clients.SlackClient
	cortexClient clients.CortexClient
	sessions     services.SessionManager // nil when SQL execution is not configured
}

// NewRelayUseCase creates a new instance of RelayUseCase. Pass a nil
// sessions manager to show agent-generated SQL without executing it.
func NewRelayUseCase(
	slackClient clients.SlackClient,
	cortexClient clients.CortexClient,
	sessions services.SessionManager,
) *RelayUseCase {
	return &RelayUseCase{
		slackClient:  slackClient,
		cortexClient: cortexClient,
		sessions:     sessions,
	}
}

// HandleMessageEvent is the fail-soft boundary for one Slack event: any
// error in handling is posted back to the channel instead of propagating,
// so a bad request never takes the process down.
func (u *RelayUseCase) HandleMessageEvent(ctx context.Context, event models.SlackMessageEvent) {
	if err := u.ProcessMessageEvent(ctx, event); err != nil {
		log.Printf("❌ Failed to process message event in %s: %v", event.Channel, err)
		u.postErrorMessage(event, err)
	}
}
