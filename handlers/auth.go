package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quickauth/auth-service/internal/autherr"
	"github.com/quickauth/auth-service/internal/config"
	"github.com/quickauth/auth-service/internal/models"
	"github.com/quickauth/auth-service/internal/oauthflow"
	"github.com/quickauth/auth-service/internal/sessions"
	"github.com/quickauth/auth-service/internal/tokens"
	"github.com/quickauth/auth-service/pkg/logger"
	"github.com/quickauth/auth-service/pkg/metrics"
	"github.com/quickauth/auth-service/pkg/middleware"
)

const stateCookieName = "__oauth_state"

// Flow is the part of the OAuth exchange the handler drives.
type Flow interface {
	Start(ctx context.Context, provider string) (*oauthflow.Attempt, error)
	Complete(ctx context.Context, issued *oauthflow.Attempt, cb oauthflow.Callback) (*oauthflow.Outcome, error)
}

// SessionService is the session lifecycle used by introspection and sign-out.
type SessionService interface {
	ValidateSession(ctx context.Context, token string) (*models.Identity, *models.Session, error)
	RevokeSession(ctx context.Context, token string) error
}

// SignInRequest is the body of POST /sign-in/social.
type SignInRequest struct {
	Provider    string `json:"provider" binding:"required"`
	CallbackURL string `json:"callbackURL"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg      *config.Config
	flow     Flow
	sessions SessionService
	cookies  *sessions.Cookies
	now      func() time.Time
}

func NewAuthHandler(cfg *config.Config, flow Flow, s SessionService, cookies *sessions.Cookies) *AuthHandler {
	return &AuthHandler{cfg: cfg, flow: flow, sessions: s, cookies: cookies, now: time.Now}
}

// Register mounts the catch-all under the configured base path. gin cannot
// mix a wildcard with static siblings, so Dispatch routes internally.
func (h *AuthHandler) Register(r gin.IRoutes) {
	path := strings.TrimRight(h.cfg.Auth.BasePath, "/") + "/*action"
	r.GET(path, h.Dispatch)
	r.POST(path, h.Dispatch)
}

// Dispatch serves every request under the auth base path.
func (h *AuthHandler) Dispatch(c *gin.Context) {
	parts := strings.Split(strings.Trim(c.Param("action"), "/"), "/")
	get := c.Request.Method == http.MethodGet
	post := c.Request.Method == http.MethodPost

	switch {
	case len(parts) == 3 && parts[0] == "sign-in" && parts[1] == "social" && get:
		h.SignInRedirect(c, parts[2])
	case len(parts) == 2 && parts[0] == "sign-in" && parts[1] == "social" && post:
		h.SignInJSON(c)
	case len(parts) == 2 && parts[0] == "callback" && get:
		h.Callback(c, parts[1])
	case len(parts) == 1 && parts[0] == "get-session" && get:
		h.GetSession(c)
	case len(parts) == 1 && parts[0] == "sign-out" && post:
		h.SignOut(c)
	case len(parts) == 1 && parts[0] == "ok" && get:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	case knownAction(parts):
		c.JSON(http.StatusMethodNotAllowed, middleware.ErrorBody(c, "method_not_allowed", ""))
	default:
		c.JSON(http.StatusNotFound, middleware.ErrorBody(c, "not_found", ""))
	}
}

func knownAction(parts []string) bool {
	switch len(parts) {
	case 1:
		return parts[0] == "get-session" || parts[0] == "sign-out" || parts[0] == "ok"
	case 2:
		return parts[0] == "callback" || (parts[0] == "sign-in" && parts[1] == "social")
	case 3:
		return parts[0] == "sign-in" && parts[1] == "social"
	}
	return false
}

// SignInRedirect starts a flow and sends the browser to the provider.
func (h *AuthHandler) SignInRedirect(c *gin.Context, provider string) {
	a, ok := h.start(c, provider)
	if !ok {
		return
	}
	c.Redirect(http.StatusFound, a.RedirectURL)
}

// SignInJSON starts a flow and returns the provider URL for client-side
// navigation.
func (h *AuthHandler) SignInJSON(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.ErrorBody(c, "invalid_request", h.detail(err)))
		return
	}
	a, ok := h.start(c, req.Provider)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": a.RedirectURL, "redirect": true})
}

func (h *AuthHandler) start(c *gin.Context, provider string) (*oauthflow.Attempt, bool) {
	a, err := h.flow.Start(c.Request.Context(), provider)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	signed, err := tokens.SignAttempt(h.cfg.Auth.Secret, a)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     stateCookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(h.cfg.Auth.StateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	metrics.SignInStarted.WithLabelValues(a.Provider).Inc()
	return a, true
}

// Callback runs the exchange synchronously and maps the outcome to HTTP.
func (h *AuthHandler) Callback(c *gin.Context, provider string) {
	var issued *oauthflow.Attempt
	if raw, err := c.Cookie(stateCookieName); err == nil && raw != "" {
		a, perr := tokens.ParseAttempt(h.cfg.Auth.Secret, raw, h.now())
		if perr != nil {
			h.log(c).Warnf("state cookie rejected: %v", perr)
		} else {
			issued = a
		}
	}
	h.clearStateCookie(c)

	out, err := h.flow.Complete(c.Request.Context(), issued, oauthflow.Callback{
		Provider:         provider,
		State:            c.Query("state"),
		Code:             c.Query("code"),
		Error:            c.Query("error"),
		ErrorDescription: c.Query("error_description"),
	})
	if err != nil {
		kind := autherr.KindOf(err)
		metrics.CallbackOutcomes.WithLabelValues(provider, kind.Code()).Inc()
		switch kind {
		case autherr.UserDenied, autherr.ProviderError:
			h.log(c).Warnf("sign-in with %s failed: %v", provider, err)
			c.Redirect(http.StatusFound, h.errorURL(kind.Code()))
		default:
			h.fail(c, err)
		}
		return
	}

	metrics.CallbackOutcomes.WithLabelValues(provider, "completed").Inc()
	h.cookies.Set(c.Writer, out.Session.Token, out.Session.ExpiresAt)
	h.log(c).Infof("sign-in completed for identity %s via %s", out.Identity.ID, provider)
	c.Redirect(http.StatusFound, h.cfg.Auth.HomeURL)
}

// GetSession reports the current session, or nulls when there is none.
func (h *AuthHandler) GetSession(c *gin.Context) {
	identity, sess, err := h.sessions.ValidateSession(c.Request.Context(), h.cookies.Token(c.Request))
	if err != nil {
		metrics.SessionValidations.WithLabelValues("error").Inc()
		h.fail(c, err)
		return
	}
	if identity == nil {
		metrics.SessionValidations.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusOK, gin.H{"session": nil, "user": nil})
		return
	}
	metrics.SessionValidations.WithLabelValues("valid").Inc()
	c.JSON(http.StatusOK, gin.H{
		"session": gin.H{
			"userId":    sess.IdentityID,
			"createdAt": sess.CreatedAt,
			"expiresAt": sess.ExpiresAt,
		},
		"user": identity,
	})
}

// SignOut revokes the presented session and clears the cookie. Signing out
// without a live session still succeeds.
func (h *AuthHandler) SignOut(c *gin.Context) {
	token := h.cookies.Token(c.Request)
	h.cookies.Clear(c.Writer)
	if token == "" {
		c.JSON(http.StatusOK, gin.H{"success": true, "revoked": false})
		return
	}
	err := h.sessions.RevokeSession(c.Request.Context(), token)
	switch {
	case err == nil:
		metrics.SessionsRevoked.Inc()
		c.JSON(http.StatusOK, gin.H{"success": true, "revoked": true})
	case autherr.IsKind(err, autherr.NotFound):
		c.JSON(http.StatusOK, gin.H{"success": true, "revoked": false})
	default:
		h.fail(c, err)
	}
}

func (h *AuthHandler) clearStateCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) errorURL(code string) string {
	u, err := url.Parse(h.cfg.Auth.ErrorURL)
	if err != nil {
		return "/?error=" + url.QueryEscape(code)
	}
	q := u.Query()
	q.Set("error", code)
	u.RawQuery = q.Encode()
	return u.String()
}

// fail writes the JSON error for err. Internal detail is only exposed
// outside production.
func (h *AuthHandler) fail(c *gin.Context, err error) {
	kind := autherr.KindOf(err)
	status := StatusFor(kind)
	if status >= http.StatusInternalServerError {
		h.log(c).Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, middleware.ErrorBody(c, kind.Code(), h.detail(err)))
}

func (h *AuthHandler) detail(err error) string {
	if h.cfg.IsProduction() || err == nil {
		return ""
	}
	return err.Error()
}

func (h *AuthHandler) log(c *gin.Context) *logger.Entry {
	return logger.With(logger.Fields{"requestId": middleware.RequestIDFrom(c), "path": c.Request.URL.Path})
}

// StatusFor maps an error kind to the HTTP status used for JSON failures.
func StatusFor(kind autherr.Kind) int {
	switch kind {
	case autherr.StateMismatch:
		return http.StatusBadRequest
	case autherr.NotFound:
		return http.StatusNotFound
	case autherr.UserDenied:
		return http.StatusForbidden
	case autherr.ProviderError, autherr.StoreUnavailable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Unavailable answers every auth request while the service is degraded.
// cause is shown as details outside production only.
func Unavailable(cause error, production bool) gin.HandlerFunc {
	details := "authentication is not configured"
	if !production && cause != nil {
		details = cause.Error()
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, middleware.ErrorBody(c, "auth_unavailable", details))
	}
}

// Recovery turns panics into the standard JSON error instead of dropping the
// connection.
func Recovery(production bool) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		logger.With(logger.Fields{"requestId": middleware.RequestIDFrom(c)}).Errorf("panic serving %s: %v", c.Request.URL.Path, rec)
		details := ""
		if !production {
			if err, ok := rec.(error); ok {
				details = err.Error()
			} else if s, ok := rec.(string); ok {
				details = s
			}
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, middleware.ErrorBody(c, "internal_error", details))
	})
}

// Me returns the identity attached by middleware.RequireSession.
func Me(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, middleware.ErrorBody(c, "unauthenticated", ""))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": id})
}
