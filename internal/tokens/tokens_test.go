package tokens

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/quickauth/auth-service/internal/autherr"
	"github.com/quickauth/auth-service/internal/oauthflow"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-32-bytes-should-be-long-enough"

func attempt(now time.Time) *oauthflow.Attempt {
	return &oauthflow.Attempt{
		Provider:    "google",
		State:       "S1",
		Verifier:    "verifier",
		RedirectURL: "https://accounts.google.com/o/oauth2/auth?state=S1",
		IssuedAt:    now,
		ExpiresAt:   now.Add(10 * time.Minute),
		Status:      oauthflow.Redirected,
	}
}

func TestSignParseAttempt_RoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	raw, err := SignAttempt(secret, attempt(now))
	require.NoError(t, err)

	got, err := ParseAttempt(secret, raw, now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, "google", got.Provider)
	require.Equal(t, "S1", got.State)
	require.Equal(t, "verifier", got.Verifier)
	require.True(t, got.ExpiresAt.Equal(now.Add(10*time.Minute)))
	require.Equal(t, oauthflow.Redirected, got.Status)
}

func TestParseAttempt_Expired(t *testing.T) {
	now := time.Now()
	raw, err := SignAttempt(secret, attempt(now))
	require.NoError(t, err)

	_, err = ParseAttempt(secret, raw, now.Add(11*time.Minute))
	require.Error(t, err)
	require.Equal(t, autherr.StateMismatch, autherr.KindOf(err))
}

func TestParseAttempt_WrongSecretFails(t *testing.T) {
	now := time.Now()
	raw, err := SignAttempt(secret, attempt(now))
	require.NoError(t, err)

	_, err = ParseAttempt("different-secret-xxxxxxxxxxxxxxxx", raw, now)
	require.Equal(t, autherr.StateMismatch, autherr.KindOf(err))
}

func TestParseAttempt_Malformed(t *testing.T) {
	_, err := ParseAttempt(secret, "not.a.jwt", time.Now())
	require.Equal(t, autherr.StateMismatch, autherr.KindOf(err))
}

// Rejected when alg=none (unsigned token)
func TestParseAttempt_AlgNoneRejected(t *testing.T) {
	payload := `{"prv":"google","st":"S1","aud":["oauth-state"],"exp":9999999999}`
	enc := base64.RawURLEncoding
	tok := enc.EncodeToString([]byte(`{"alg":"none"}`)) + "." + enc.EncodeToString([]byte(payload)) + "."
	_, err := ParseAttempt(secret, tok, time.Now())
	require.Equal(t, autherr.StateMismatch, autherr.KindOf(err))
}

// Tampering with the state value must fail signature verification
func TestParseAttempt_TamperedPayload(t *testing.T) {
	now := time.Now()
	raw, err := SignAttempt(secret, attempt(now))
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(strings.Replace(string(payload), `"S1"`, `"S2"`, 1)))

	_, err = ParseAttempt(secret, strings.Join(parts, "."), now)
	require.Equal(t, autherr.StateMismatch, autherr.KindOf(err))
}

func TestParseAttempt_OtherAudienceRejected(t *testing.T) {
	claims := jwt.MapClaims{"prv": "google", "st": "S1", "aud": "access", "exp": time.Now().Add(time.Hour).Unix()}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = ParseAttempt(secret, raw, time.Now())
	require.Equal(t, autherr.StateMismatch, autherr.KindOf(err))
}

func TestSignAttempt_EmptySecret(t *testing.T) {
	_, err := SignAttempt("", attempt(time.Now()))
	require.Error(t, err)
}
