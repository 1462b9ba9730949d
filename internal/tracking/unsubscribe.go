// Package tracking builds signed unsubscribe links for campaign emails.
package tracking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidToken is returned by Verify for tampered or malformed tokens.
var ErrInvalidToken = errors.New("tracking: invalid unsubscribe token")

// Signer signs contact+campaign identity into unsubscribe URLs.
type Signer struct {
	key     []byte
	baseURL string
}

// NewSigner creates a signer. baseURL is the public app origin, e.g.
// "https://5ducks.ai".
func NewSigner(signingKey, baseURL string) *Signer {
	return &Signer{key: []byte(signingKey), baseURL: strings.TrimRight(baseURL, "/")}
}

// Token encodes "contactID|campaignID" and its signature.
func (s *Signer) Token(contactID, campaignID string) string {
	data := contactID + "|" + campaignID
	return base64.RawURLEncoding.EncodeToString([]byte(data)) + "." + s.sign(data)
}

// URL returns the unsubscribe link for a contact in a campaign.
func (s *Signer) URL(contactID, campaignID string) string {
	return fmt.Sprintf("%s/unsubscribe/%s", s.baseURL, s.Token(contactID, campaignID))
}

// Verify checks a token and returns the identities it carries.
func (s *Signer) Verify(token string) (contactID, campaignID string, err error) {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return "", "", ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", ErrInvalidToken
	}
	data := string(raw)
	if !hmac.Equal([]byte(s.sign(data)), []byte(sig)) {
		return "", "", ErrInvalidToken
	}
	contactID, campaignID, ok = strings.Cut(data, "|")
	if !ok || contactID == "" {
		return "", "", ErrInvalidToken
	}
	return contactID, campaignID, nil
}

// sign returns the first 16 hex chars of HMAC-SHA256(data).
func (s *Signer) sign(data string) string {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Footer is the HTML unsubscribe footer appended to campaign bodies.
func (s *Signer) Footer(contactID, campaignID string) string {
	return fmt.Sprintf(`<p style="font-size:12px;color:#888;margin-top:24px;">`+
		`Don't want these emails? <a href="%s">Unsubscribe</a></p>`, s.URL(contactID, campaignID))
}

// Headers returns the RFC 8058 one-click unsubscribe headers. Mail clients
// POST "List-Unsubscribe=One-Click" to the URL.
func (s *Signer) Headers(contactID, campaignID string) map[string]string {
	return map[string]string{
		"List-Unsubscribe":      "<" + s.URL(contactID, campaignID) + ">",
		"List-Unsubscribe-Post": "List-Unsubscribe=One-Click",
	}
}
