// Package middleware contains Gin middleware functions.
// Middleware in Gin is a handler that runs before (or after) your route handler.
// It calls c.Next() to proceed or c.Abort() to stop the chain.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKeyAPIKey is where the auth middleware stores the caller's key.
const ContextKeyAPIKey = "api_key"

// APIKeyAuth returns middleware that validates API keys.
// The key can be provided via X-API-Key header, a Bearer token, or the api_key
// query param (needed for <img src="...?api_key=xxx"> previews in browsers).
//
// With no keys configured the API is open, which suits local development.
//
// Go closures: this function returns a function. The outer function captures
// `keySet` in its closure, so the returned handler has access to it.
func APIKeyAuth(validKeys []string) gin.HandlerFunc {
	keySet := newKeySet(validKeys)

	return func(c *gin.Context) {
		if len(keySet) == 0 {
			c.Next()
			return
		}

		key := requestKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}

		if _, ok := keySet[key]; !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid API key",
			})
			return
		}

		// Store the key in the context for downstream handlers (e.g., rate limiting).
		c.Set(ContextKeyAPIKey, key)
		c.Next()
	}
}

// AdminKeyAuth returns middleware that validates admin API keys.
// Unlike APIKeyAuth it never runs open: no admin keys means no admin access.
func AdminKeyAuth(adminKeys []string) gin.HandlerFunc {
	keySet := newKeySet(adminKeys)

	return func(c *gin.Context) {
		key := requestKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing admin API key",
			})
			return
		}

		if _, ok := keySet[key]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid admin API key",
			})
			return
		}

		c.Set(ContextKeyAPIKey, key)
		c.Next()
	}
}

// newKeySet builds a set for O(1) lookups. Go doesn't have a built-in Set type,
// so we use map[string]struct{}; struct{} takes zero bytes of memory.
func newKeySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

func requestKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return c.Query("api_key")
}
