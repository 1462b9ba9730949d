package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jononovo/5ducks-outreach/internal/config"
	"github.com/jononovo/5ducks-outreach/internal/domain"
	"github.com/jononovo/5ducks-outreach/internal/templates"
	"github.com/jononovo/5ducks-outreach/internal/worker"
)

type enrollCall struct {
	sequence, email, name string
	metadata              map[string]any
}

// MockDrip records calls made by the handlers.
type MockDrip struct {
	mu        sync.Mutex
	enrolls   []enrollCall
	sent      []*domain.EmailContent
	enrollOK  bool
	sendOK    bool
	cancelN   int64
	cancelErr error
	stats     worker.DripStats
}

func (m *MockDrip) EnrollInSequence(_ context.Context, seq, email, name string, md map[string]any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrolls = append(m.enrolls, enrollCall{seq, email, name, md})
	return m.enrollOK
}

func (m *MockDrip) CancelEnrollment(context.Context, string, string) (int64, error) {
	return m.cancelN, m.cancelErr
}

func (m *MockDrip) SendImmediate(_ context.Context, _ string, c *domain.EmailContent, _ string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, c)
	return m.sendOK
}

func (m *MockDrip) Stats() worker.DripStats { return m.stats }

// MockScheduler returns canned trigger results.
type MockScheduler struct {
	activated int
	err       error
	running   bool
	triggers  int
}

func (m *MockScheduler) TriggerCheck(context.Context) (int, error) {
	m.triggers++
	return m.activated, m.err
}

func (m *MockScheduler) IsRunning() bool { return m.running }

const testAdminToken = "test-admin-token"

func setupTestServer(t *testing.T, drip *MockDrip, sched *MockScheduler) http.Handler {
	t.Helper()
	deps := Deps{}
	if drip != nil {
		deps.Drip = drip
	}
	if sched != nil {
		deps.Scheduler = sched
	}
	return NewServer(config.ServerConfig{Host: "localhost", Port: 0, AdminToken: testAdminToken}, deps).Handler()
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestTriggerScheduler(t *testing.T) {
	sched := &MockScheduler{activated: 2}
	h := setupTestServer(t, &MockDrip{}, sched)

	rec := doRequest(t, h, http.MethodPost, "/api/scheduler/trigger", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["activated"])
	assert.Equal(t, 1, sched.triggers)
}

func TestTriggerScheduler_Error(t *testing.T) {
	h := setupTestServer(t, &MockDrip{}, &MockScheduler{err: errors.New("db down")})

	rec := doRequest(t, h, http.MethodPost, "/api/scheduler/trigger", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestTriggerScheduler_NotConfigured(t *testing.T) {
	h := setupTestServer(t, &MockDrip{}, nil)

	rec := doRequest(t, h, http.MethodPost, "/api/scheduler/trigger", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEnroll(t *testing.T) {
	drip := &MockDrip{enrollOK: true}
	h := setupTestServer(t, drip, nil)

	rec := doRequest(t, h, http.MethodPost, "/api/sequences/registration_welcome/enroll", EnrollRequest{
		Email:    "Ada@Example.com",
		Name:     "Ada",
		Metadata: map[string]any{"plan": "pro"},
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["enrolled"])
	assert.Equal(t, "ada@example.com", body["email"])

	require.Len(t, drip.enrolls, 1)
	call := drip.enrolls[0]
	assert.Equal(t, "registration_welcome", call.sequence)
	assert.Equal(t, "Ada", call.name)
	assert.Equal(t, "pro", call.metadata["plan"])
}

func TestEnroll_Failure(t *testing.T) {
	h := setupTestServer(t, &MockDrip{enrollOK: false}, nil)

	rec := doRequest(t, h, http.MethodPost, "/api/sequences/nope/enroll", EnrollRequest{Email: "a@b.co"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestEnroll_Validation(t *testing.T) {
	drip := &MockDrip{enrollOK: true}
	h := setupTestServer(t, drip, nil)

	cases := []struct {
		name string
		body any
	}{
		{"empty body", nil},
		{"missing email", EnrollRequest{Name: "x"}},
		{"bad email", EnrollRequest{Email: "not-an-email"}},
		{"unknown field", `{"email":"a@b.co","extra":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/api/sequences/s/enroll", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, drip.enrolls)
}

func TestCancelEnrollment(t *testing.T) {
	h := setupTestServer(t, &MockDrip{cancelN: 2}, nil)

	rec := doRequest(t, h, http.MethodDelete, "/api/sequences/registration_welcome/enroll?email=a@b.co", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["cancelled"])
}

func TestCancelEnrollment_UnknownSequence(t *testing.T) {
	h := setupTestServer(t, &MockDrip{cancelErr: worker.ErrSequenceNotFound}, nil)

	rec := doRequest(t, h, http.MethodDelete, "/api/sequences/nope/enroll?email=a@b.co", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelEnrollment_MissingEmail(t *testing.T) {
	h := setupTestServer(t, &MockDrip{}, nil)

	rec := doRequest(t, h, http.MethodDelete, "/api/sequences/s/enroll", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendEmail_Template(t *testing.T) {
	drip := &MockDrip{sendOK: true}
	h := setupTestServer(t, drip, nil)

	rec := doRequest(t, h, http.MethodPost, "/api/emails/send", SendEmailRequest{
		To:          "ada@example.com",
		TemplateKey: templates.WelcomeRegistration,
		Vars:        map[string]any{"name": "Ada"},
	})

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, drip.sent, 1)
	assert.Contains(t, drip.sent[0].Subject, "Ada")
	assert.NotEmpty(t, drip.sent[0].HTML)
	assert.NotEmpty(t, drip.sent[0].Text)
}

func TestSendEmail_RawContent(t *testing.T) {
	drip := &MockDrip{sendOK: true}
	h := setupTestServer(t, drip, nil)

	rec := doRequest(t, h, http.MethodPost, "/api/emails/send", SendEmailRequest{
		To:      "ada@example.com",
		Subject: "Hello",
		Text:    "plain body",
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, drip.sent, 1)
	assert.Equal(t, "Hello", drip.sent[0].Subject)
	assert.Equal(t, "plain body", drip.sent[0].Text)
}

func TestSendEmail_Errors(t *testing.T) {
	cases := []struct {
		name   string
		drip   *MockDrip
		body   SendEmailRequest
		status int
	}{
		{"unknown template", &MockDrip{sendOK: true}, SendEmailRequest{To: "a@b.co", TemplateKey: "nope"}, http.StatusNotFound},
		{"no content", &MockDrip{sendOK: true}, SendEmailRequest{To: "a@b.co", Subject: "only subject"}, http.StatusBadRequest},
		{"bad recipient", &MockDrip{sendOK: true}, SendEmailRequest{To: "nobody", Subject: "s", Text: "t"}, http.StatusBadRequest},
		{"provider failure", &MockDrip{sendOK: false}, SendEmailRequest{To: "a@b.co", Subject: "s", Text: "t"}, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := setupTestServer(t, tc.drip, nil)
			rec := doRequest(t, h, http.MethodPost, "/api/emails/send", tc.body)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestDripStats(t *testing.T) {
	h := setupTestServer(t, &MockDrip{stats: worker.DripStats{Sent: 7, Failed: 1, Polling: true}}, nil)

	rec := doRequest(t, h, http.MethodGet, "/api/drip/stats", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats worker.DripStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(7), stats.Sent)
	assert.Equal(t, int64(1), stats.Failed)
	assert.True(t, stats.Polling)
}

func TestCORSPreflight(t *testing.T) {
	h := NewServer(config.ServerConfig{CORSOrigins: []string{"https://app.5ducks.ai"}}, Deps{Drip: &MockDrip{}}).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/drip/stats", nil)
	req.Header.Set("Origin", "https://app.5ducks.ai")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.5ducks.ai", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealth(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	h := NewServer(config.ServerConfig{}, Deps{
		Drip:      &MockDrip{stats: worker.DripStats{Polling: true}},
		Scheduler: &MockScheduler{running: true},
		DB:        db,
		Redis:     rdb,
	}).Handler()

	rec := doRequest(t, h, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "up", status.Checks["database"].Status)
	assert.Equal(t, "up", status.Checks["redis"].Status)
	assert.Equal(t, "up", status.Checks["workers"].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadiness_DatabaseDown(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	h := NewServer(config.ServerConfig{}, Deps{DB: db}).Handler()

	rec := doRequest(t, h, http.MethodGet, "/health/ready", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "connection refused"))
}

func TestDetermineOverallStatus(t *testing.T) {
	assert.Equal(t, "healthy", determineOverallStatus(map[string]ComponentCheck{"a": {Status: "up"}}))
	assert.Equal(t, "degraded", determineOverallStatus(map[string]ComponentCheck{"a": {Status: "up"}, "b": {Status: "degraded"}}))
	assert.Equal(t, "unhealthy", determineOverallStatus(map[string]ComponentCheck{"a": {Status: "degraded"}, "b": {Status: "down"}}))
}
