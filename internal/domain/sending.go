package domain

import "time"

// EmailContent is a fully rendered message body.
type EmailContent struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// EmailMessage is the fully-resolved message ready for a sender.
// By the time a message reaches this struct, all template substitution and
// footer generation is complete.
type EmailMessage struct {
	ID         string            `json:"id"`
	CampaignID string            `json:"campaign_id,omitempty"`
	ContactID  string            `json:"contact_id,omitempty"`
	To         string            `json:"to"`
	FromName   string            `json:"from_name"`
	FromEmail  string            `json:"from_email"`
	ReplyTo    string            `json:"reply_to,omitempty"`
	Content    EmailContent      `json:"content"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// SendResult is returned by a sender after attempting delivery.
type SendResult struct {
	Success   bool      `json:"success"`
	MessageID string    `json:"message_id"`
	Provider  string    `json:"provider"`
	SentAt    time.Time `json:"sent_at"`
	Error     string    `json:"error,omitempty"`
}
