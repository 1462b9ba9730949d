package sending

import (
	"context"
	"errors"
	"net/mail"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jononovo/5ducks-outreach/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	result *domain.SendResult
	err    error
}

func (s stubSender) Send(context.Context, *domain.EmailMessage) (*domain.SendResult, error) {
	return s.result, s.err
}

func TestDeliver(t *testing.T) {
	msg := &domain.EmailMessage{To: "a@example.com"}
	ctx := context.Background()

	_, err := Deliver(ctx, stubSender{result: &domain.SendResult{Success: true}}, msg)
	assert.NoError(t, err)

	_, err = Deliver(ctx, stubSender{err: errors.New("dial tcp: timeout")}, msg)
	assert.EqualError(t, err, "dial tcp: timeout")

	_, err = Deliver(ctx, stubSender{result: &domain.SendResult{Error: "throttled"}}, msg)
	assert.EqualError(t, err, "send failed: throttled")

	_, err = Deliver(ctx, stubSender{}, msg)
	assert.Error(t, err)
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-123")}, nil
}

func TestSESSender_Send(t *testing.T) {
	api := &fakeSES{}
	s := &SESSender{client: api, fromEmail: "hello@5ducks.ai", replyTo: "support@5ducks.ai"}

	res, err := s.Send(context.Background(), &domain.EmailMessage{
		To:         "bob@example.com",
		FromName:   "Ana",
		CampaignID: "camp-1",
		Content:    domain.EmailContent{Subject: "Hi", HTML: "<p>Hi</p>", Text: "Hi"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ses-123", res.MessageID)

	require.NotNil(t, api.input)
	assert.Equal(t, `"Ana" <hello@5ducks.ai>`, aws.ToString(api.input.FromEmailAddress))
	assert.Equal(t, []string{"bob@example.com"}, api.input.Destination.ToAddresses)
	assert.Equal(t, []string{"support@5ducks.ai"}, api.input.ReplyToAddresses)
	assert.Equal(t, "Hi", aws.ToString(api.input.Content.Simple.Body.Text.Data))
	require.Len(t, api.input.EmailTags, 1)
}

func TestSESSender_FromNameQuoted(t *testing.T) {
	api := &fakeSES{}
	s := &SESSender{client: api, fromEmail: "hello@5ducks.ai"}

	_, err := s.Send(context.Background(), &domain.EmailMessage{
		To:       "bob@example.com",
		FromName: `Smith, Ana "AJ"`,
	})
	require.NoError(t, err)

	from := aws.ToString(api.input.FromEmailAddress)
	assert.Equal(t, `"Smith, Ana \"AJ\"" <hello@5ducks.ai>`, from)
	parsed, err := mail.ParseAddress(from)
	require.NoError(t, err)
	assert.Equal(t, `Smith, Ana "AJ"`, parsed.Name)
	assert.Equal(t, "hello@5ducks.ai", parsed.Address)
}

func TestSESSender_Headers(t *testing.T) {
	api := &fakeSES{}
	s := &SESSender{client: api, fromEmail: "hello@5ducks.ai"}

	_, err := s.Send(context.Background(), &domain.EmailMessage{
		To: "bob@example.com",
		Headers: map[string]string{
			"List-Unsubscribe-Post": "List-Unsubscribe=One-Click",
			"List-Unsubscribe":      "<https://5ducks.ai/unsubscribe/tok>",
		},
	})
	require.NoError(t, err)

	hs := api.input.Content.Simple.Headers
	require.Len(t, hs, 2)
	assert.Equal(t, "List-Unsubscribe", aws.ToString(hs[0].Name))
	assert.Equal(t, "<https://5ducks.ai/unsubscribe/tok>", aws.ToString(hs[0].Value))
	assert.Equal(t, "List-Unsubscribe-Post", aws.ToString(hs[1].Name))
	assert.Equal(t, "List-Unsubscribe=One-Click", aws.ToString(hs[1].Value))
}

func TestSESSender_ProviderError(t *testing.T) {
	s := &SESSender{client: &fakeSES{err: errors.New("MessageRejected")}, fromEmail: "hello@5ducks.ai"}

	res, err := s.Send(context.Background(), &domain.EmailMessage{To: "bob@example.com"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "MessageRejected", res.Error)
}

func TestLogSender(t *testing.T) {
	res, err := LogSender{}.Send(context.Background(), &domain.EmailMessage{To: "bob@example.com"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.MessageID)
}
