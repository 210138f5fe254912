package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iconduit/go-iconduit/env"
	"github.com/iconduit/go-iconduit/util"
)

func IsOriginAllowed(requestOrigin string) bool {
	allowed := util.SplitCSV(env.GetString("ALLOWED_ORIGINS"))
	if len(allowed) == 0 {
		return true
	}
	return util.ContainsString(allowed, requestOrigin)
}

// HandleCORS sets the CORS headers. Without an origin allowlist every origin
// is admitted via a wildcard; with one, allowed origins are reflected.
func HandleCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestOrigin := c.Request.Header.Get("Origin")

		allowed := util.SplitCSV(env.GetString("ALLOWED_ORIGINS"))
		switch {
		case len(allowed) == 0:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case util.ContainsString(allowed, requestOrigin):
			c.Writer.Header().Set("Access-Control-Allow-Origin", requestOrigin)
			c.Writer.Header().Set("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, If-None-Match")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
