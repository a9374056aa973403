package middleware

import (
	"net/http"
	"slices"
	"strings"

	"autoparts/internal/logger"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ContextAccountID = "accountId"
	ContextRole      = "role"
	ContextEmail     = "email"
)

func abortUnauthorized(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

// AuthGuard requires a valid bearer token. When roles are given the token's
// role must be one of them.
func AuthGuard(secret string, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.From(c, "AUTH")

		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if raw == "" {
			abortUnauthorized(c, http.StatusUnauthorized, "missing token")
			return
		}

		parts := strings.Fields(raw)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c, http.StatusUnauthorized, "invalid token")
			return
		}

		claims, err := ParseAccessToken(secret, parts[1])
		if err != nil {
			if err == ErrTokenExpired {
				abortUnauthorized(c, http.StatusUnauthorized, "token expired")
				return
			}
			log.WithError(err).Debug("token validation failed")
			abortUnauthorized(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		accountID, err := primitive.ObjectIDFromHex(claims.Subject)
		if err != nil {
			log.Warn("token subject is not an object id")
			abortUnauthorized(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		if len(allowedRoles) > 0 && !slices.Contains(allowedRoles, claims.Role) {
			abortUnauthorized(c, http.StatusForbidden, "forbidden")
			return
		}

		c.Set(ContextAccountID, accountID)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextEmail, claims.Email)
		c.Next()
	}
}

// CurrentAccount returns the identity set by AuthGuard.
func CurrentAccount(c *gin.Context) (primitive.ObjectID, string, bool) {
	value, ok := c.Get(ContextAccountID)
	if !ok {
		return primitive.NilObjectID, "", false
	}
	id, ok := value.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, "", false
	}
	return id, c.GetString(ContextRole), true
}
