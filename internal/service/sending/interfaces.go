// Package sending defines the email delivery capability consumed by the
// drip engine and the auto-send service.
//
// Providers (SES, the development log sender) implement Sender. Callers
// treat a returned error or an unsuccessful SendResult as a failed attempt.
package sending

import (
	"context"
	"fmt"

	"github.com/jononovo/5ducks-outreach/internal/domain"
)

// Sender sends a single email. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error)
}

// Deliver sends msg and folds an unsuccessful result into an error, so
// callers only need one failure path.
func Deliver(ctx context.Context, s Sender, msg *domain.EmailMessage) (*domain.SendResult, error) {
	result, err := s.Send(ctx, msg)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("send to %s: empty result", msg.To)
	}
	if !result.Success {
		reason := result.Error
		if reason == "" {
			reason = "provider rejected message"
		}
		return result, fmt.Errorf("send failed: %s", reason)
	}
	return result, nil
}
