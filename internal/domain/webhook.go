package domain

import "time"

// WebhookEvent is one inbound platform notification
type WebhookEvent struct {
	ID         string
	ChannelID  string
	Topic      string
	Shop       string
	Payload    []byte
	ReceivedAt time.Time
}

// Credentials is the plaintext form of a channel's sealed credential blob.
// Only platform adapters read it.
type Credentials struct {
	AccessToken string `json:"accessToken,omitempty"`
	APIKey      string `json:"apiKey,omitempty"`
	APISecret   string `json:"apiSecret,omitempty"`
}
