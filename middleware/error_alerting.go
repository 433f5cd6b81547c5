package middleware

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"cortexrelay/clients/slack"
	"cortexrelay/models"
)

type SlackAlertConfig struct {
	WebhookURL  string
	Environment string
	AppName     string
}

// ErrorAlertMiddleware posts deduplicated error alerts to an ops Slack
// webhook. Alerts are best-effort; failures to alert are only logged.
type ErrorAlertMiddleware struct {
	config        SlackAlertConfig
	alertedErrors map[string]time.Time // hash -> last alert time
	mutex         sync.Mutex
	alertCooldown time.Duration // prevent spam
	httpClient    *http.Client
}

func NewErrorAlertMiddleware(config SlackAlertConfig) *ErrorAlertMiddleware {
	return &ErrorAlertMiddleware{
		config:        config,
		alertedErrors: make(map[string]time.Time),
		alertCooldown: 10 * time.Minute, // Don't alert same error more than once per 10min
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}
}

// HTTPMiddleware wraps HTTP handlers with panic recovery and alerting
func (m *ErrorAlertMiddleware) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer m.recoverAndAlert(fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

// WrapMessageHandler wraps the Slack event handler so a panic while
// handling one event is alerted and swallowed instead of killing the relay.
func (m *ErrorAlertMiddleware) WrapMessageHandler(handler slack.MessageHandler) slack.MessageHandler {
	return func(ctx context.Context, event models.SlackMessageEvent) {
		defer m.recoverAndAlert(fmt.Sprintf("Slack message event in channel %s", event.Channel))
		handler(ctx, event)
	}
}

func (m *ErrorAlertMiddleware) recoverAndAlert(context string) {
	if r := recover(); r != nil {
		errorMsg := fmt.Sprintf("%s: PANIC - %v", context, r)
		log.Printf("❌ %s", errorMsg)
		go m.maybeSendAlert(errorMsg)
	}
}

func (m *ErrorAlertMiddleware) maybeSendAlert(errorMsg string) {
	if m.config.WebhookURL == "" {
		return // alerts disabled
	}

	hash := fmt.Sprintf("%x", md5.Sum([]byte(errorMsg)))

	m.mutex.Lock()
	if lastAlert, exists := m.alertedErrors[hash]; exists && time.Since(lastAlert) < m.alertCooldown {
		m.mutex.Unlock()
		return
	}
	m.alertedErrors[hash] = time.Now()
	m.mutex.Unlock()

	m.sendSlackAlert(errorMsg)
}

func (m *ErrorAlertMiddleware) sendSlackAlert(errorMsg string) {
	payload := map[string]any{
		"text": fmt.Sprintf("🚨 [%s][%s] %s", m.config.AppName, m.config.Environment, errorMsg),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("❌ Failed to marshal alert payload: %v", err)
		return
	}

	resp, err := m.httpClient.Post(m.config.WebhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("❌ Failed to send Slack alert: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Printf("❌ Slack alert webhook returned status %d", resp.StatusCode)
	}
}
