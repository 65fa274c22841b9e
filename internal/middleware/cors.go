package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OriginPolicy is a CORS allow-list. An empty list or "*" allows every origin.
type OriginPolicy map[string]bool

// NewOriginPolicy builds a policy from a list such as config.ServerConfig.Origins().
func NewOriginPolicy(origins []string) OriginPolicy {
	p := make(OriginPolicy, len(origins))
	for _, o := range origins {
		if o != "" {
			p[o] = true
		}
	}
	return p
}

// Allow returns the Access-Control-Allow-Origin value for origin, or "".
func (p OriginPolicy) Allow(origin string) string {
	if len(p) == 0 || p["*"] {
		return "*"
	}
	if origin != "" && p[origin] {
		return origin
	}
	return ""
}

// CORS returns a middleware that sets CORS headers for cross-origin requests.
func CORS(policy OriginPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if allowOrigin := policy.Allow(c.GetHeader("Origin")); allowOrigin != "" {
			c.Header("Access-Control-Allow-Origin", allowOrigin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
