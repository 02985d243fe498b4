package sessions

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

const CookieName = "auth.session_token"

// Cookies issues and reads the signed session cookie. The cookie value is
// "<token>.<hmac>"; a bearer header may carry either form.
type Cookies struct {
	Secret []byte
	Secure bool
}

func NewCookies(secret string, secure bool) *Cookies {
	return &Cookies{Secret: []byte(secret), Secure: secure}
}

// Sign appends the HMAC-SHA256 signature to token.
func (c *Cookies) Sign(token string) string {
	mac := hmac.New(sha256.New, c.Secret)
	mac.Write([]byte(token))
	return token + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verify returns the token inside a signed value.
func (c *Cookies) Verify(value string) (string, bool) {
	i := strings.LastIndexByte(value, '.')
	if i <= 0 || i == len(value)-1 {
		return "", false
	}
	token := value[:i]
	if !hmac.Equal([]byte(c.Sign(token)), []byte(value)) {
		return "", false
	}
	return token, true
}

// Set writes the session cookie. It expires with the session.
func (c *Cookies) Set(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    c.Sign(token),
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear removes the session cookie from the client.
func (c *Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Token extracts the session token from the Authorization header or the
// session cookie. A cookie with a bad signature yields "".
func (c *Cookies) Token(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			raw := strings.TrimSpace(parts[1])
			if tok, ok := c.Verify(raw); ok {
				return tok
			}
			return raw
		}
	}
	ck, err := r.Cookie(CookieName)
	if err != nil || ck.Value == "" {
		return ""
	}
	tok, ok := c.Verify(ck.Value)
	if !ok {
		return ""
	}
	return tok
}
