package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sellerlink/gateway/internal/infrastructure/auth"
	"github.com/sellerlink/gateway/internal/infrastructure/logger"
	"github.com/sellerlink/gateway/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Session context keys
const (
	SessionClaimsKey  = "session_claims"
	OwnerUserIDKey    = "owner_user_id"
	AuthHeaderKey     = "Authorization"
	BearerPrefix      = "Bearer "
	sessionLogMessage = "Session authentication failed"
)

// SessionVerifier validates a session token
type SessionVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// SessionConfig holds configuration for the session middleware
type SessionConfig struct {
	Verifier SessionVerifier
	// SkipPaths are paths that don't require a session
	SkipPaths []string
	Logger    *zap.Logger
}

// SessionAuth requires a valid bearer session and exposes its subject as the owning user
func SessionAuth(cfg SessionConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		if skip[c.FullPath()] || skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		header := c.GetHeader(AuthHeaderKey)
		if !strings.HasPrefix(header, BearerPrefix) {
			abortUnauthorized(c, cfg.Logger, auth.ErrInvalidToken, "Missing or malformed authorization header")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
		if token == "" {
			abortUnauthorized(c, cfg.Logger, auth.ErrInvalidToken, "Missing token")
			return
		}

		claims, err := cfg.Verifier.Verify(token)
		if err != nil {
			abortUnauthorized(c, cfg.Logger, err, "Token validation failed")
			return
		}

		owner := claims.OwnerUserID()
		c.Set(SessionClaimsKey, claims)
		c.Set(OwnerUserIDKey, owner)
		c.Request = c.Request.WithContext(logger.WithOwnerUserID(c.Request.Context(), owner))
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, log *zap.Logger, err error, message string) {
	log.Warn(sessionLogMessage,
		zap.Error(err),
		zap.String("message", message),
		zap.String("path", c.Request.URL.Path),
	)

	code, msg := dto.ErrCodeUnauthorized, "Authentication required"
	if errors.Is(err, auth.ErrExpiredToken) {
		code, msg = dto.ErrCodeTokenExpired, "Session has expired"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(code, msg, GetRequestID(c)))
}

// GetOwnerUserID returns the authenticated owner, or "" when there is no session
func GetOwnerUserID(c *gin.Context) string {
	return c.GetString(OwnerUserIDKey)
}

// GetSessionClaims returns the verified session claims
func GetSessionClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(SessionClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}
