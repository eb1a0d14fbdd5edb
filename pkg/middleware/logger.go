package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/context"
	"github.com/labstack/echo/v4"
)

// quietPrefixes are probe and scrape routes that only log on failure.
var quietPrefixes = []string{"/metrics", "/api/v1/health"}

func isQuiet(path string) bool {
	for _, prefix := range quietPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Logger logs one line per request after the error handler has written the response.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			if res.Status < http.StatusBadRequest && isQuiet(c.Path()) {
				return nil
			}

			ctx := req.Context()
			log := logger.WithContext(ctx).WithFields(map[string]any{
				"request_id":  context.GetRequestID(ctx),
				"tenant_id":   context.GetTenantID(ctx),
				"mapper_id":   context.GetMapperID(ctx),
				"method":      req.Method,
				"route":       c.Path(),
				"uri":         req.RequestURI,
				"status":      res.Status,
				"remote_ip":   c.RealIP(),
				"duration_ms": time.Since(start).Milliseconds(),
				"bytes_in":    req.ContentLength,
				"bytes_out":   res.Size,
			})
			if res.Status >= http.StatusInternalServerError {
				log.Warn("Request failed")
			} else {
				log.Info("Request")
			}

			return nil
		}
	}
}
