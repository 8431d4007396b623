package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coinrush-app/coinrush-backend/internal/handler"
	"github.com/coinrush-app/coinrush-backend/internal/ratelimit"
	"github.com/coinrush-app/coinrush-backend/pkg/logger"
	"github.com/coinrush-app/coinrush-backend/pkg/metrics"
)

const correlationHeader = "X-Correlation-ID"

// CorrelationID attaches a correlation id to the request context, reusing the
// inbound header when the caller supplied one.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := logger.WithCorrelationID(c.Request.Context(), c.GetHeader(correlationHeader))
		c.Request = c.Request.WithContext(ctx)
		c.Header(correlationHeader, logger.CorrelationIDFromContext(ctx))
		c.Next()
	}
}

// RequestLogger records each request with method, route, status and timing.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		log.Info("handled http request",
			slog.String("method", c.Request.Method),
			slog.String("path", route),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("correlation_id", logger.CorrelationIDFromContext(c.Request.Context())),
		)
	}
}

// Metrics reports request counts and latencies to Prometheus.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		metrics.RecordHTTPRequest(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
		)
	}
}

// Recovery converts handler panics into a 500 without leaking internals.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("recovered from http handler panic",
					slog.Any("panic", r),
					slog.String("path", c.Request.URL.Path),
					slog.String("correlation_id", logger.CorrelationIDFromContext(c.Request.Context())),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, handler.Envelope{
					Success: false,
					Error:   "внутренняя ошибка сервера",
				})
			}
		}()

		c.Next()
	}
}

// CORS allows the game webapp and the admin panel to call the API from any
// origin, mirroring the open policy the clients were built against.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Correlation-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RateLimit guards an endpoint with the shared limiter. Limiter failures
// other than an exceeded limit fail open.
func RateLimit(limiter ratelimit.Limiter, name string, limit int, window time.Duration, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("http:%s:%s", name, c.ClientIP())
		result, err := limiter.Check(context.Background(), key, limit, window)
		if err != nil && result == nil {
			log.Warn("rate limiter error", slog.String("endpoint", name), slog.String("error", err.Error()))
			c.Next()
			return
		}

		if result != nil && !result.Allowed {
			retryAfter := int(time.Until(result.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, handler.Envelope{
				Success: false,
				Error:   fmt.Sprintf("Слишком много запросов. Попробуйте через %d секунд", retryAfter),
			})
			return
		}

		c.Next()
	}
}
