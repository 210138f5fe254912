package middleware

import (
	"context"
	"strings"

	sentry "github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/iconduit/go-iconduit/env"
	"github.com/iconduit/go-iconduit/service/logger"
	"github.com/iconduit/go-iconduit/util"
)

// RequestID assigns each request a correlation id of the form req_<uuid>,
// reusing an inbound X-Request-ID when present, and scopes the request logger
// to it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Request.Header.Get("X-Request-ID")
		if id == "" || !strings.HasPrefix(id, "req_") {
			id = util.NewRequestID()
		}
		c.Set(util.RequestIDKey, id)
		c.Writer.Header().Set("X-Request-ID", id)

		loggerCtx := logger.NewContextWithFields(c.Request.Context(), logrus.Fields{
			"requestId": id,
		})
		c.Request = c.Request.WithContext(loggerCtx)
		c.Next()
	}
}

// SecurityHeaders sets the baseline security headers on every response. The
// per-content-type CSP is set where the body is written.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// ErrLogger is a middleware that logs errors
func ErrLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.For(c).Errorf("%s %s %s %s %s", c.Request.Method, c.Request.URL, c.ClientIP(), c.Request.Header.Get("User-Agent"), c.Errors.JSON())
		}
	}
}

// GinContextToContext is a middleware that adds the Gin context to the request context,
// allowing the Gin context to be retrieved from within service code.
func GinContextToContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), util.GinContextKey, c)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Sentry forwards panics and gin errors to Sentry. A no-op when no DSN is
// configured.
func Sentry(reportGinErrors bool) gin.HandlerFunc {
	if env.GetString("SENTRY_DSN") == "" {
		return func(c *gin.Context) { c.Next() }
	}

	handler := sentrygin.New(sentrygin.Options{Repanic: true})

	return func(c *gin.Context) {
		// Clone a new hub for each request
		hub := sentry.CurrentHub().Clone()
		c.Request = c.Request.WithContext(sentry.SetHubOnContext(c.Request.Context(), hub))

		// Invoke the sentrygin handler. We don't call c.Next() here because sentrygin does it for us.
		handler(c)

		if reportGinErrors {
			for _, err := range c.Errors {
				hub.CaptureException(err)
			}
		}
	}
}
