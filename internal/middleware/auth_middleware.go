package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/coachhub/coachhub-api/internal/core"
	"github.com/coachhub/coachhub-api/internal/models"
)

const (
	actorKey   = "actor"
	profileKey = "profile"
)

// errorBody mirrors the api envelope. It is defined here to avoid importing internal/api.
type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorBody{Success: false, Message: message})
}

// AuthMiddleware verifies bearer tokens and loads the caller's profile.
type AuthMiddleware struct {
	identity IdentityProvider
	profiles core.ProfileService
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(identity IdentityProvider, profiles core.ProfileService, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{identity: identity, profiles: profiles, logger: logger}
}

// VerifyToken authenticates the request and stores the core.Actor in the gin context.
func (m *AuthMiddleware) VerifyToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abort(c, http.StatusUnauthorized, "Authorization header format must be 'Bearer {token}'")
			return
		}

		identity, err := m.identity.VerifyToken(c.Request.Context(), parts[1])
		if err != nil {
			if errors.Is(err, core.ErrDependency) {
				m.logger.Error("identity provider unavailable", zap.Error(err))
				abort(c, http.StatusServiceUnavailable, "Authentication service unavailable")
				return
			}
			m.logger.Debug("rejected bearer token", zap.Error(err))
			abort(c, http.StatusUnauthorized, "Invalid or expired authentication token")
			return
		}

		profile, err := m.profiles.GetProfile(c.Request.Context(), identity.UID)
		switch {
		case errors.Is(err, core.ErrNotFound):
			abort(c, http.StatusForbidden, "No profile is registered for this account")
			return
		case err != nil:
			m.logger.Error("failed to load caller profile", zap.String("uid", identity.UID), zap.Error(err))
			abort(c, http.StatusServiceUnavailable, "Could not load account profile")
			return
		}
		if profile.Email == "" {
			profile.Email = identity.Email
		}

		c.Set(actorKey, core.ActorFromProfile(profile))
		c.Set(profileKey, profile)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not listed. It must run after VerifyToken.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "Insufficient permissions")
	}
}

// ActorFrom returns the authenticated caller.
func ActorFrom(c *gin.Context) (core.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return core.Actor{}, false
	}
	actor, ok := v.(core.Actor)
	return actor, ok
}

// ProfileFrom returns the authenticated caller's profile.
func ProfileFrom(c *gin.Context) (*models.Profile, bool) {
	v, ok := c.Get(profileKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*models.Profile)
	return p, ok
}
