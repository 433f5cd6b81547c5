package models

// SlackMessageEvent is a message posted in a channel the bot is a member of.
type SlackMessageEvent struct {
	User     string
	Channel  string
	Text     string
	TS       string
	ThreadTS string
}
