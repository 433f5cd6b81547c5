package testutils

import (
	"fmt"
	"math/rand"
	"time"

	"cortexrelay/core"
)

// GenerateRequestID creates a unique request ID for test isolation
func GenerateRequestID() string {
	return core.NewID("req")
}

// GenerateSlackChannelID creates a plausible Slack channel ID
func GenerateSlackChannelID() string {
	return fmt.Sprintf("C%09d", rand.Intn(1000000000))
}

// GenerateSlackUserID creates a plausible Slack user ID
func GenerateSlackUserID() string {
	return fmt.Sprintf("U%09d", rand.Intn(1000000000))
}

// GenerateSlackTS creates a plausible Slack message timestamp
func GenerateSlackTS() string {
	return fmt.Sprintf("%d.%06d", time.Now().Unix(), rand.Intn(1000000))
}
