package suppression

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jononovo/5ducks-outreach/internal/domain"
	"github.com/jononovo/5ducks-outreach/internal/tracking"
)

// mockRepo is an in-memory repository for testing.
type mockRepo struct {
	mu       sync.RWMutex
	store    map[string]*domain.Suppression
	contacts map[string]string
	writes   int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		store:    make(map[string]*domain.Suppression),
		contacts: map[string]string{"contact-1": "Dana@Example.com"},
	}
}

func (m *mockRepo) IsSuppressed(_ context.Context, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.store[email]
	return ok, nil
}

func (m *mockRepo) Suppress(_ context.Context, s *domain.Suppression) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if _, exists := m.store[s.Email]; exists {
		return nil
	}
	m.store[s.Email] = s
	return nil
}

func (m *mockRepo) Remove(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[email]; !ok {
		return ErrNotFound
	}
	delete(m.store, email)
	return nil
}

func (m *mockRepo) ContactEmail(_ context.Context, contactID string) (string, error) {
	email, ok := m.contacts[contactID]
	if !ok {
		return "", ErrContactNotFound
	}
	return email, nil
}

func TestSuppress_AddsEmailToList(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	ctx := context.Background()

	entry, err := svc.Suppress(ctx, " BLOCK@example.com", domain.SuppressionManual, domain.SourceAdmin)
	if err != nil {
		t.Fatalf("Suppress: %v", err)
	}
	if entry.Email != "block@example.com" {
		t.Errorf("expected normalized email, got %q", entry.Email)
	}
	if entry.ID == "" {
		t.Error("expected an ID to be assigned")
	}

	ok, err := svc.IsSuppressed(ctx, "Block@Example.com")
	if err != nil {
		t.Fatalf("IsSuppressed: %v", err)
	}
	if !ok {
		t.Error("expected email to be suppressed after Suppress()")
	}
}

func TestSuppress_Idempotent(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Suppress(ctx, "dup@example.com", domain.SuppressionManual, domain.SourceAdmin); err != nil {
			t.Fatalf("Suppress #%d: %v", i, err)
		}
	}
	if len(repo.store) != 1 {
		t.Errorf("expected 1 suppression, got %d", len(repo.store))
	}
}

func TestSuppress_EmptyEmail_Fails(t *testing.T) {
	svc := NewService(newMockRepo(), nil)

	_, err := svc.Suppress(context.Background(), "  ", domain.SuppressionManual, domain.SourceAdmin)
	if !errors.Is(err, ErrEmailRequired) {
		t.Errorf("expected ErrEmailRequired, got %v", err)
	}
}

func TestIsSuppressed_EmptyEmail(t *testing.T) {
	svc := NewService(newMockRepo(), nil)

	ok, err := svc.IsSuppressed(context.Background(), "")
	if err != nil || ok {
		t.Errorf("expected (false, nil), got (%v, %v)", ok, err)
	}
}

func TestRemove_DeletesSuppression(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	ctx := context.Background()

	_, _ = svc.Suppress(ctx, "remove@example.com", domain.SuppressionManual, domain.SourceAdmin)

	if err := svc.Remove(ctx, "REMOVE@example.com"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	ok, _ := svc.IsSuppressed(ctx, "remove@example.com")
	if ok {
		t.Error("expected email to no longer be suppressed after Remove()")
	}
}

func TestRemove_NotFound_ReturnsError(t *testing.T) {
	svc := NewService(newMockRepo(), nil)

	err := svc.Remove(context.Background(), "ghost@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUnsubscribe_SuppressesContact(t *testing.T) {
	signer := tracking.NewSigner("secret", "https://5ducks.ai")
	repo := newMockRepo()
	svc := NewService(repo, signer)
	ctx := context.Background()

	entry, err := svc.Unsubscribe(ctx, signer.Token("contact-1", "campaign-9"))
	if err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if entry.Email != "dana@example.com" {
		t.Errorf("expected dana@example.com, got %q", entry.Email)
	}
	if entry.Reason != domain.SuppressionUnsubscribe || entry.Source != domain.SourceUnsubscribeLink {
		t.Errorf("unexpected reason/source: %s/%s", entry.Reason, entry.Source)
	}
	if entry.CampaignID != "campaign-9" || entry.ContactID != "contact-1" {
		t.Errorf("unexpected identities: %+v", entry)
	}

	ok, _ := svc.IsSuppressed(ctx, "dana@example.com")
	if !ok {
		t.Error("expected contact to be suppressed")
	}

	// following the link again is harmless
	if _, err := svc.Unsubscribe(ctx, signer.Token("contact-1", "campaign-9")); err != nil {
		t.Fatalf("second Unsubscribe: %v", err)
	}
	if len(repo.store) != 1 {
		t.Errorf("expected 1 suppression, got %d", len(repo.store))
	}
}

func TestUnsubscribe_RejectsBadTokens(t *testing.T) {
	signer := tracking.NewSigner("secret", "https://5ducks.ai")
	other := tracking.NewSigner("other-secret", "https://5ducks.ai")
	repo := newMockRepo()
	ctx := context.Background()

	cases := []struct {
		name  string
		svc   *Service
		token string
	}{
		{"garbage", NewService(repo, signer), "not-a-token"},
		{"wrong key", NewService(repo, signer), other.Token("contact-1", "campaign-9")},
		{"no signer", NewService(repo, nil), signer.Token("contact-1", "campaign-9")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.svc.Unsubscribe(ctx, tc.token)
			if !errors.Is(err, tracking.ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
	if repo.writes != 0 {
		t.Errorf("expected no writes, got %d", repo.writes)
	}
}

func TestUnsubscribe_UnknownContact(t *testing.T) {
	signer := tracking.NewSigner("secret", "https://5ducks.ai")
	svc := NewService(newMockRepo(), signer)

	_, err := svc.Unsubscribe(context.Background(), signer.Token("deleted-contact", "campaign-9"))
	if !errors.Is(err, ErrContactNotFound) {
		t.Errorf("expected ErrContactNotFound, got %v", err)
	}
}
