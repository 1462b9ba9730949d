package sending

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jononovo/5ducks-outreach/internal/domain"
	"github.com/jononovo/5ducks-outreach/internal/pkg/logger"
)

// LogSender accepts every message and only logs it. Used when no provider
// is configured (local development).
type LogSender struct{}

// Send logs the message and reports success.
func (LogSender) Send(_ context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	id := uuid.New().String()
	log.Printf("[LogSender] Would send to %s: subject=%q (id: %s)", logger.RedactEmail(msg.To), msg.Content.Subject, id)
	return &domain.SendResult{Success: true, MessageID: id, Provider: "log", SentAt: time.Now()}, nil
}
