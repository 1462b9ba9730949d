package autosend

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jononovo/5ducks-outreach/internal/calendar"
	"github.com/jononovo/5ducks-outreach/internal/domain"
	"github.com/jononovo/5ducks-outreach/internal/mergefield"
	"github.com/jononovo/5ducks-outreach/internal/pkg/logger"
	"github.com/jononovo/5ducks-outreach/internal/service/sending"
	"github.com/jononovo/5ducks-outreach/internal/tracking"
)

// Config holds sender defaults for auto-send.
type Config struct {
	FromEmail string
	ReplyTo   string
	// DefaultDelay applies when a campaign has no delay of its own.
	DefaultDelay time.Duration
}

// Service runs auto-send sweeps.
type Service struct {
	repo     Repository
	sender   sending.Sender
	resolver *mergefield.Resolver
	signer   *tracking.Signer // nil disables unsubscribe footers
	cfg      Config
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewService creates an auto-send service.
func NewService(repo Repository, sender sending.Sender, resolver *mergefield.Resolver, signer *tracking.Signer, cfg Config) *Service {
	if resolver == nil {
		resolver = mergefield.NewResolver()
	}
	return &Service{
		repo:     repo,
		sender:   sender,
		resolver: resolver,
		signer:   signer,
		cfg:      cfg,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ProcessAutoSendCampaigns processes every auto-send campaign. A failing
// campaign is logged and the sweep moves on; only a failure to list
// campaigns is returned.
func (s *Service) ProcessAutoSendCampaigns(ctx context.Context) error {
	campaigns, err := s.repo.ListAutoSendCampaigns(ctx)
	if err != nil {
		return fmt.Errorf("list auto-send campaigns: %w", err)
	}

	for i := range campaigns {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c := &campaigns[i]
		if _, err := s.ProcessCampaign(ctx, c); err != nil {
			log.Printf("[AutoSend] Campaign %s (%s): %v", c.ID, c.Name, err)
		}
	}
	return nil
}

// ProcessCampaign sends as much of today's remaining budget as there are
// uncontacted recipients, and returns how many sends succeeded.
func (s *Service) ProcessCampaign(ctx context.Context, c *domain.Campaign) (int, error) {
	if c.TemplateID == nil || *c.TemplateID == "" {
		return 0, ErrTemplateNotFound
	}
	if c.ContactListID == nil || *c.ContactListID == "" {
		return 0, ErrNoContactList
	}

	tpl, err := s.repo.GetTemplate(ctx, *c.TemplateID)
	if err != nil {
		return 0, fmt.Errorf("template %s: %w", *c.TemplateID, err)
	}
	owner, err := s.repo.GetUser(ctx, c.UserID)
	if err != nil {
		return 0, fmt.Errorf("user %s: %w", c.UserID, err)
	}

	sentToday, err := s.repo.CountSentSince(ctx, c.ID, calendar.StartOfDay(s.now()))
	if err != nil {
		return 0, fmt.Errorf("count sent today: %w", err)
	}
	remaining := c.DailyLimit - sentToday
	if remaining <= 0 {
		log.Printf("[AutoSend] Campaign %s reached its daily limit (%d)", c.ID, c.DailyLimit)
		return 0, nil
	}

	recipients, err := s.repo.GetUncontactedRecipients(ctx, *c.ContactListID, c.UserID, c.ID, remaining)
	if err != nil {
		return 0, fmt.Errorf("uncontacted recipients: %w", err)
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	delay := c.DelayBetweenEmails
	if delay <= 0 {
		delay = s.cfg.DefaultDelay
	}

	log.Printf("[AutoSend] Campaign %s: sending to %d recipients (%d left today)", c.ID, len(recipients), remaining)

	sent := 0
	for i := range recipients {
		if i > 0 {
			if err := s.sleep(ctx, delay); err != nil {
				return sent, err
			}
		}
		if err := s.SendTemplateEmail(ctx, c, tpl, owner, &recipients[i]); err != nil {
			log.Printf("[AutoSend] Campaign %s to %s: %v", c.ID, logger.RedactEmail(recipients[i].Email), err)
			continue
		}
		sent++
	}

	log.Printf("[AutoSend] Campaign %s: %d/%d sent", c.ID, sent, len(recipients))
	return sent, nil
}

// GetUncontactedRecipients returns list members not yet contacted by the
// campaign.
func (s *Service) GetUncontactedRecipients(ctx context.Context, listID, userID, campaignID string, limit int) ([]domain.Contact, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.repo.GetUncontactedRecipients(ctx, listID, userID, campaignID, limit)
}

// SendTemplateEmail renders tpl for one contact, sends it and records
// exactly one communication history row whatever the outcome. On success
// the contact is marked contacted.
func (s *Service) SendTemplateEmail(ctx context.Context, c *domain.Campaign, tpl *domain.EmailTemplate, owner *domain.User, contact *domain.Contact) error {
	company := s.lookupCompany(ctx, contact)

	mc := mergefield.Context{Contact: contact, Company: company, Sender: owner}
	history := &domain.CommunicationHistory{
		ID:         uuid.New().String(),
		UserID:     c.UserID,
		ContactID:  contact.ID,
		CompanyID:  contact.CompanyID,
		CampaignID: c.ID,
		TemplateID: tpl.ID,
		Channel:    "email",
		Direction:  "outbound",
	}

	content, err := s.render(tpl, mc)
	if err == nil {
		var headers map[string]string
		if c.UnsubscribeLink && s.signer != nil {
			appendUnsubscribe(content, s.signer, contact.ID, c.ID)
			headers = s.signer.Headers(contact.ID, c.ID)
		}
		history.Subject = content.Subject
		history.Content = content.HTML

		msg := &domain.EmailMessage{
			ID:         history.ID,
			CampaignID: c.ID,
			ContactID:  contact.ID,
			To:         contact.Email,
			FromName:   owner.DisplayName(),
			FromEmail:  s.cfg.FromEmail,
			ReplyTo:    s.replyTo(owner),
			Content:    *content,
			Headers:    headers,
		}
		var result *domain.SendResult
		result, err = sending.Deliver(ctx, s.sender, msg)
		if result != nil && result.MessageID != "" {
			history.Metadata = map[string]any{"message_id": result.MessageID, "provider": result.Provider}
		}
	}

	now := s.now()
	history.SentAt = now
	if err != nil {
		history.Status = domain.CommunicationFailed
		history.ErrorMessage = err.Error()
	} else {
		history.Status = domain.CommunicationSent
	}

	if herr := s.repo.CreateCommunicationHistory(ctx, history); herr != nil {
		log.Printf("[AutoSend] Failed to record history for contact %s: %v", contact.ID, herr)
	}
	if err != nil {
		return err
	}

	if merr := s.repo.MarkContacted(ctx, contact.ID, now); merr != nil {
		log.Printf("[AutoSend] Failed to mark contact %s contacted: %v", contact.ID, merr)
	}
	return nil
}

func (s *Service) lookupCompany(ctx context.Context, contact *domain.Contact) *domain.Company {
	if contact.CompanyID == nil || *contact.CompanyID == "" {
		return nil
	}
	company, err := s.repo.GetCompany(ctx, *contact.CompanyID)
	if err != nil {
		if !errors.Is(err, ErrCompanyNotFound) {
			log.Printf("[AutoSend] Company %s lookup failed: %v", *contact.CompanyID, err)
		}
		return nil
	}
	return company
}

func (s *Service) replyTo(owner *domain.User) string {
	if s.cfg.ReplyTo != "" {
		return s.cfg.ReplyTo
	}
	return owner.Email
}

// render resolves merge fields into subject and body. Plain-text bodies
// get an HTML rendition with line breaks preserved.
func (s *Service) render(tpl *domain.EmailTemplate, mc mergefield.Context) (*domain.EmailContent, error) {
	subject, err := s.resolver.ResolveAllMergeFields(tpl.Subject, mc)
	if err != nil {
		return nil, fmt.Errorf("subject: %w", err)
	}
	body, err := s.resolver.ResolveAllMergeFields(tpl.Content, mc)
	if err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}

	content := &domain.EmailContent{Subject: strings.TrimSpace(subject)}
	if looksLikeHTML(body) {
		content.HTML = body
	} else {
		content.Text = body
		content.HTML = "<p>" + strings.ReplaceAll(html.EscapeString(body), "\n", "<br>") + "</p>"
	}
	return content, nil
}

func looksLikeHTML(s string) bool {
	i := strings.IndexByte(s, '<')
	return i >= 0 && strings.IndexByte(s[i:], '>') > 0
}

func appendUnsubscribe(content *domain.EmailContent, signer *tracking.Signer, contactID, campaignID string) {
	content.HTML += signer.Footer(contactID, campaignID)
	if content.Text != "" {
		content.Text += "\n\nUnsubscribe: " + signer.URL(contactID, campaignID)
	}
}
