package sessionclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cookieName = "auth.session_token"

// fakeAuth serves get-session and sign-out for the cookie value "good".
func fakeAuth(t *testing.T, release <-chan struct{}) (*httptest.Server, *int32) {
	t.Helper()
	var signOuts int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/get-session", func(w http.ResponseWriter, r *http.Request) {
		if release != nil {
			<-release
		}
		w.Header().Set("Content-Type", "application/json")
		c, err := r.Cookie(cookieName)
		authed := (err == nil && c.Value == "good") || r.Header.Get("Authorization") == "Bearer good"
		if !authed {
			_, _ = w.Write([]byte(`{"session":null,"user":null}`))
			return
		}
		_, _ = w.Write([]byte(`{"session":{"userId":"u1","createdAt":"2026-05-01T09:00:00Z","expiresAt":"2026-05-08T09:00:00Z"},"user":{"id":"u1","provider":"google","email":"ada@example.com","name":"Ada"}}`))
	})
	mux.HandleFunc("/api/auth/sign-out", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&signOuts, 1)
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "", Path: "/", MaxAge: -1})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"revoked":true}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &signOuts
}

func seed(t *testing.T, r *Reader, base string) {
	t.Helper()
	u, err := url.Parse(base)
	require.NoError(t, err)
	r.Jar().SetCookies(u, []*http.Cookie{{Name: cookieName, Value: "good", Path: "/"}})
}

func TestReader_StartsPending(t *testing.T) {
	r, err := New("http://localhost:3000")
	require.NoError(t, err)
	assert.Equal(t, Pending, r.CurrentSession().Status)
	assert.Equal(t, "http://localhost:3000/api/auth/sign-in/social/google", r.SignInURL("google"))
}

func TestReader_InvalidBaseURL(t *testing.T) {
	_, err := New("not a url")
	require.Error(t, err)
}

func TestReader_RefreshAuthenticated(t *testing.T) {
	srv, _ := fakeAuth(t, nil)
	r, err := New(srv.URL)
	require.NoError(t, err)
	seed(t, r, srv.URL)

	st, err := r.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, Authenticated, st.Status)
	require.NotNil(t, st.User)
	assert.Equal(t, "ada@example.com", st.User.Email)
	assert.Equal(t, time.Date(2026, 5, 8, 9, 0, 0, 0, time.UTC), st.ExpiresAt)
	assert.Equal(t, st, r.CurrentSession())
}

func TestReader_RefreshWithoutSession(t *testing.T) {
	srv, _ := fakeAuth(t, nil)
	r, err := New(srv.URL)
	require.NoError(t, err)

	st, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, st.Status)
	assert.Nil(t, st.User)
}

func TestReader_BearerToken(t *testing.T) {
	srv, _ := fakeAuth(t, nil)
	r, err := New(srv.URL, WithToken("good"))
	require.NoError(t, err)

	st, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Authenticated, st.Status)
}

func TestReader_PendingWhileInFlight(t *testing.T) {
	block := make(chan struct{})
	srv, _ := fakeAuth(t, block)
	r, err := New(srv.URL)
	require.NoError(t, err)
	seed(t, r, srv.URL)
	r.set(State{Status: Unauthenticated})

	done := make(chan State)
	go func() {
		st, _ := r.Refresh(context.Background())
		done <- st
	}()
	require.Eventually(t, func() bool { return r.CurrentSession().Status == Pending }, time.Second, 10*time.Millisecond)
	close(block)

	st := <-done
	assert.Equal(t, Authenticated, st.Status)
	assert.Equal(t, Authenticated, r.CurrentSession().Status)
}

func TestReader_NetworkErrorIsUnauthenticated(t *testing.T) {
	srv, _ := fakeAuth(t, nil)
	base := srv.URL
	srv.Close()

	r, err := New(base)
	require.NoError(t, err)
	st, err := r.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, Unauthenticated, st.Status)
	assert.Equal(t, Unauthenticated, r.CurrentSession().Status)
}

func TestReader_ServerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"auth_unavailable"}`))
	}))
	defer srv.Close()

	r, err := New(srv.URL)
	require.NoError(t, err)
	st, err := r.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStatus))
	assert.Contains(t, err.Error(), "auth_unavailable")
	assert.Equal(t, Unauthenticated, st.Status)
}

func TestReader_SignOutClearsLocalState(t *testing.T) {
	srv, signOuts := fakeAuth(t, nil)
	r, err := New(srv.URL)
	require.NoError(t, err)
	seed(t, r, srv.URL)

	_, err = r.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, Authenticated, r.CurrentSession().Status)

	require.NoError(t, r.SignOut(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(signOuts))
	assert.Equal(t, Unauthenticated, r.CurrentSession().Status)

	u, _ := url.Parse(srv.URL)
	assert.Empty(t, r.Jar().Cookies(u))
}

func TestReader_SignOutClearsEvenWhenServerIsDown(t *testing.T) {
	srv, _ := fakeAuth(t, nil)
	base := srv.URL
	r, err := New(base, WithToken("good"))
	require.NoError(t, err)
	seed(t, r, base)
	srv.Close()

	require.Error(t, r.SignOut(context.Background()))
	assert.Equal(t, Unauthenticated, r.CurrentSession().Status)
	u, _ := url.Parse(base)
	assert.Empty(t, r.Jar().Cookies(u))
}
