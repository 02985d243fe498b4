package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quickauth/auth-service/internal/autherr"
	"github.com/quickauth/auth-service/internal/models"
	"github.com/quickauth/auth-service/pkg/metrics"
)

const (
	IdentityKey = "identity"
	SessionKey  = "session"
)

// SessionValidator is the minimal interface the middleware depends on.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*models.Identity, *models.Session, error)
}

// TokenReader extracts a raw session token from a request.
type TokenReader interface {
	Token(r *http.Request) string
}

// RequireSession rejects requests without a valid session cookie or bearer
// token and stores the owning identity under IdentityKey.
func RequireSession(v SessionValidator, tokens TokenReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokens.Token(c.Request)
		if token == "" {
			metrics.SessionValidations.WithLabelValues("missing").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorBody(c, "unauthenticated", ""))
			return
		}

		identity, sess, err := v.ValidateSession(c.Request.Context(), token)
		if err != nil {
			metrics.SessionValidations.WithLabelValues("error").Inc()
			status := http.StatusInternalServerError
			if autherr.IsKind(err, autherr.StoreUnavailable) {
				status = http.StatusBadGateway
			}
			c.AbortWithStatusJSON(status, ErrorBody(c, autherr.KindOf(err).Code(), ""))
			return
		}
		if identity == nil {
			metrics.SessionValidations.WithLabelValues("invalid").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorBody(c, "unauthenticated", ""))
			return
		}

		metrics.SessionValidations.WithLabelValues("valid").Inc()
		c.Set(IdentityKey, identity)
		c.Set(SessionKey, sess)
		c.Next()
	}
}

// IdentityFrom returns the identity stored by RequireSession.
func IdentityFrom(c *gin.Context) (*models.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*models.Identity)
	return id, ok && id != nil
}
