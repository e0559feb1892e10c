// Package httpkit provides identity extraction helpers for handlers.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MustGetProviderID returns the provider ID bound to the authenticated user,
// aborting with 403 when the token carries no provider profile. Handlers for
// provider-facing routes call this first.
func MustGetProviderID(c *gin.Context) (uuid.UUID, bool) {
	raw, ok := c.Get(ContextProviderIDKey)
	if !ok {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "no provider profile"})
		return uuid.Nil, false
	}

	providerID, ok := raw.(uuid.UUID)
	if !ok || providerID == uuid.Nil {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "no provider profile"})
		return uuid.Nil, false
	}
	return providerID, true
}

// GetUserID returns the authenticated user ID, if any.
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	raw, ok := c.Get(ContextUserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	userID, ok := raw.(uuid.UUID)
	return userID, ok
}
