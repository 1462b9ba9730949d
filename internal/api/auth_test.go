package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jononovo/5ducks-outreach/internal/config"
)

func adminRequest(h http.Handler, method, path, body, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAdminAPI_RequiresToken(t *testing.T) {
	drip := &MockDrip{sendOK: true}
	supp := &MockSuppression{}
	h := NewServer(config.ServerConfig{AdminToken: testAdminToken}, Deps{Drip: drip, Suppression: supp}).Handler()

	cases := []struct {
		name string
		auth string
	}{
		{"missing", ""},
		{"wrong token", "Bearer not-the-token"},
		{"wrong scheme", "Basic " + testAdminToken},
		{"empty bearer", "Bearer "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := adminRequest(h, http.MethodPost, "/api/emails/send",
				`{"to":"victim@example.com","subject":"Hi","html":"<p>spam</p>"}`, tc.auth)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

			rec = adminRequest(h, http.MethodDelete, "/api/suppressions?email=optedout@example.com", "", tc.auth)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	assert.Empty(t, drip.sent)
	assert.Empty(t, supp.suppressed)
}

func TestAdminAPI_AcceptsToken(t *testing.T) {
	drip := &MockDrip{sendOK: true}
	h := NewServer(config.ServerConfig{AdminToken: testAdminToken}, Deps{Drip: drip}).Handler()

	rec := adminRequest(h, http.MethodPost, "/api/emails/send",
		`{"to":"bob@example.com","subject":"Hi","html":"<p>Hi</p>"}`, "bearer "+testAdminToken)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Len(t, drip.sent, 1)
}

func TestAdminAPI_EmptyTokenRejectsEverything(t *testing.T) {
	h := NewServer(config.ServerConfig{}, Deps{Drip: &MockDrip{}}).Handler()

	rec := adminRequest(h, http.MethodGet, "/api/drip/stats", "", "Bearer ")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPublicRoutes_NoToken(t *testing.T) {
	h := NewServer(config.ServerConfig{AdminToken: testAdminToken}, Deps{
		Drip:        &MockDrip{},
		Suppression: &MockSuppression{tokens: map[string]error{"good.sig": nil}},
	}).Handler()

	assert.Equal(t, http.StatusOK, adminRequest(h, http.MethodGet, "/health/live", "", "").Code)
	assert.Equal(t, http.StatusOK, adminRequest(h, http.MethodGet, "/unsubscribe/good.sig", "", "").Code)
	assert.Equal(t, http.StatusOK, adminRequest(h, http.MethodPost, "/unsubscribe/good.sig", "", "").Code)
}

func TestServer_RefusesToStartWithoutToken(t *testing.T) {
	s := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0}, Deps{})

	assert.ErrorIs(t, s.Start(), ErrAdminTokenRequired)
	assert.NoError(t, s.Shutdown(context.Background()))
}
