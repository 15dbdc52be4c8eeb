package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blogapi/internal/service"
	"blogapi/internal/token"
)

const claimsKey = "claims"

// Authenticate creates a Gin middleware for JWT authentication. Only tokens of
// the listed types get through; with no types listed any type is accepted.
func Authenticate(authService service.AuthService, logger *zap.Logger, allowed ...token.Type) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abort(c, err)
			return
		}

		claims, err := authService.Authorize(c.Request.Context(), tokenString)
		if err != nil {
			if !isAuthError(err) {
				logger.Error("Failed to authorize request", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to authorize request"})
				return
			}
			abort(c, err)
			return
		}

		if !typeAllowed(claims.Type, allowed) {
			if claims.Type == token.Access {
				abort(c, service.ErrRefreshTokenRequired)
			} else {
				abort(c, service.ErrAccessTokenRequired)
			}
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// Claims returns the claims stored by Authenticate.
func Claims(c *gin.Context) *token.Claims {
	return c.MustGet(claimsKey).(*token.Claims)
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", service.ErrMissingToken
	}

	parts := strings.Fields(header)
	if len(parts) == 1 && strings.EqualFold(parts[0], "Bearer") {
		return "", service.ErrMissingToken
	}
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", service.ErrInvalidToken
	}
	return parts[1], nil
}

func typeAllowed(t token.Type, allowed []token.Type) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == t {
			return true
		}
	}
	return false
}

func isAuthError(err error) bool {
	return errors.Is(err, service.ErrMissingToken) ||
		errors.Is(err, service.ErrInvalidToken) ||
		errors.Is(err, service.ErrExpiredToken) ||
		errors.Is(err, service.ErrRevokedToken)
}

func abort(c *gin.Context, err error) {
	var msg string
	switch {
	case errors.Is(err, service.ErrMissingToken):
		msg = "Authorization header required"
	case errors.Is(err, service.ErrExpiredToken):
		msg = "Token expired"
	case errors.Is(err, service.ErrRevokedToken):
		msg = "Token has been revoked"
	case errors.Is(err, service.ErrRefreshTokenRequired):
		msg = "Only refresh tokens are allowed"
	case errors.Is(err, service.ErrAccessTokenRequired):
		msg = "Only access tokens are allowed"
	default:
		msg = "Invalid token"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
