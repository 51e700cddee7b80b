package auth

import (
	"errors"
	"net/http"
	"strings"

	"crypto-portfolio-tracker/internal/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	authorizationHeader = "Authorization"

	ContextUserID   = "userID"
	ContextUsername = "userName"
	ContextAdmin    = "isAdmin"
)

// Middleware validates the bearer token and stores the caller in the context.
func Middleware(svc *Service, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("auth")
	return func(c *gin.Context) {
		header := c.GetHeader(authorizationHeader)
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "auth header is empty"})
			return
		}

		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			log.Warn("Invalid auth header format")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid auth header format"})
			return
		}

		userID, claims, err := authenticate(svc, parts[1])
		if err != nil {
			if !errors.Is(err, errs.ErrUnauthorized) {
				log.Error("Failed to authenticate", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			log.Warn("Rejected token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		active, err := svc.IsActive(c.Request.Context(), userID)
		if err != nil {
			log.Error("Failed to check account", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !active {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account is closed"})
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextAdmin, claims.Admin)
		c.Next()
	}
}

func authenticate(svc *Service, token string) (uint, *Claims, error) {
	claims, err := svc.ParseToken(token)
	if err != nil {
		return 0, nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return 0, nil, err
	}
	return userID, claims, nil
}

// RequireAdmin rejects callers without the admin capability.
// It must run after Middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ContextAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated caller's id.
func UserID(c *gin.Context) uint {
	return c.GetUint(ContextUserID)
}
