package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/auth"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/logger"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

const (
	// IdentityKey holds the verified auth.Identity on the gin context
	IdentityKey = "billing_identity"

	AuthHeaderKey  = "Authorization"
	BearerPrefix   = "Bearer "
	TenantIDHeader = "X-Tenant-ID"
	UserIDHeader   = "X-User-ID"
)

// AuthConfig configures caller authentication
type AuthConfig struct {
	Verifier *auth.TokenVerifier
	// AllowHeaderIdentity accepts X-Tenant-ID / X-User-ID when no bearer
	// token is sent. Development only.
	AllowHeaderIdentity bool
	// SkipPaths are served without authentication
	SkipPaths []string
	Logger    *zap.Logger
}

// Authenticate resolves the calling actor and tenant for every ledger request
func Authenticate(cfg AuthConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		identity, err := resolveIdentity(c, cfg)
		if err != nil {
			rejectUnauthenticated(c, cfg.Logger, err)
			return
		}

		c.Set(IdentityKey, *identity)
		ctx := logger.WithIdentity(c.Request.Context(), identity.TenantID, identity.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

var errNoCredentials = errors.New("missing credentials")

func resolveIdentity(c *gin.Context, cfg AuthConfig) (*auth.Identity, error) {
	if header := c.GetHeader(AuthHeaderKey); header != "" {
		token, ok := strings.CutPrefix(header, BearerPrefix)
		if !ok || token == "" || cfg.Verifier == nil {
			return nil, auth.ErrInvalidToken
		}
		return cfg.Verifier.Verify(token)
	}

	if !cfg.AllowHeaderIdentity {
		return nil, errNoCredentials
	}
	tenantID, err := uuid.Parse(c.GetHeader(TenantIDHeader))
	if err != nil || tenantID == uuid.Nil {
		return nil, auth.ErrMissingTenantID
	}
	userID, err := uuid.Parse(c.GetHeader(UserIDHeader))
	if err != nil || userID == uuid.Nil {
		return nil, auth.ErrMissingUserID
	}
	return &auth.Identity{TenantID: tenantID, UserID: userID}, nil
}

func rejectUnauthenticated(c *gin.Context, log *zap.Logger, err error) {
	code, message := dto.ErrCodeUnauthorized, "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenNotYetValid):
		message = "Invalid token"
	case errors.Is(err, auth.ErrMissingTenantID), errors.Is(err, auth.ErrMissingUserID):
		message = err.Error()
	}

	requestID := logger.GetRequestID(c.Request.Context())
	log.Debug("Authentication failed",
		zap.String("request_id", requestID),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.Failure(code, message, requestID))
}

// GetIdentity returns the caller resolved by Authenticate
func GetIdentity(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return auth.Identity{}, false
	}
	identity, ok := v.(auth.Identity)
	return identity, ok
}
