// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides Identity, the authentication middleware. Every
// user-scoped route requires a caller identity; requests without one are
// rejected with 401 before any handler or repository runs, so lower
// layers can treat an empty user id as a programming error rather than a
// reachable state.
//
// The identity is resolved in order of preference:
//  1. Authorization: Bearer <token>   (the token is the opaque user id;
//     verification against an identity provider happens at the edge)
//  2. X-User-ID header                (trusted-network and test traffic)
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderUserID identifies the caller on trusted-network and test traffic.
const HeaderUserID = "X-User-ID"

// ctxKeyUserID is where the resolved identity is stashed for handlers.
const ctxKeyUserID = "userID"

// UserIDFrom returns the authenticated user id set by Identity, or "".
func UserIDFrom(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Identity resolves the caller identity and rejects anonymous requests.
//
// Responses use the same compact JSON error shape as the handlers layer
// so clients see one taxonomy regardless of which layer rejected them.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := resolveUserID(c)
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "unauthenticated",
				"message": "authentication required",
			})
			return
		}
		c.Set(ctxKeyUserID, uid)
		c.Next()
	}
}

func resolveUserID(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		const prefix = "Bearer "
		if strings.HasPrefix(auth, prefix) {
			if tok := strings.TrimSpace(auth[len(prefix):]); tok != "" {
				return tok
			}
		}
	}
	return strings.TrimSpace(c.GetHeader(HeaderUserID))
}
