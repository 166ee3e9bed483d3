package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Ctx keys and helpers for the buyer identity attached to a request.
// Using unexported type to avoid collisions.

type ctxKey string

const buyerKey ctxKey = "buyer"

// Buyer is the lightweight identity an established buyer presents. There is
// no account system behind it; a recognized identity just lets checkout
// skip the contact step.
type Buyer struct {
	Name  string
	Email string
}

func ContextWithBuyer(ctx context.Context, buyer Buyer) context.Context {
	return context.WithValue(ctx, buyerKey, buyer)
}

func BuyerFromContext(ctx context.Context) (Buyer, bool) {
	v := ctx.Value(buyerKey)
	if v == nil {
		return Buyer{}, false
	}
	buyer, ok := v.(Buyer)
	return buyer, ok
}

// BuyerIdentity picks the optional buyer identity off the request headers.
func BuyerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.GetHeader("X-Buyer-Email")
		if email != "" {
			buyer := Buyer{
				Name:  c.GetHeader("X-Buyer-Name"),
				Email: email,
			}
			c.Set("buyer_email", email)
			c.Request = c.Request.WithContext(ContextWithBuyer(c.Request.Context(), buyer))
		}
		c.Next()
	}
}

func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Buyer-Name, X-Buyer-Email")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}

		c.Next()
	}
}

// Logger logs completed requests; successful requests are logged at debug
// level only through the metrics middleware, errors get a structured entry.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		buyerEmail, exists := c.Get("buyer_email")

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", c.Writer.Status(),
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}

		if exists {
			logFields = append(logFields, "buyer_email", buyerEmail)
		}

		if c.Writer.Status() >= 400 {
			if len(c.Errors) > 0 {
				logFields = append(logFields, "error", c.Errors.String())
			}
			slog.Error("Request completed with error", logFields...)
		}
	}
}

func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		slog.Error("PANIC recovered",
			"panic", recovered,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		)

		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
	})
}
