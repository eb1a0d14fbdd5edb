package middleware

import (
	"github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	HeaderTraceID = "X-Trace-ID"

	maxRequestIDLength = 128
)

// Context stores the request id and route in the request context. The request id and
// trace id are echoed in the response headers.
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" || len(requestID) > maxRequestIDLength {
				requestID = uuid.New().String()
			}

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetRoute(ctx, c.Path())

			c.Response().Header().Set(echo.HeaderXRequestID, requestID)
			if traceID := tracing.GetTraceID(ctx); traceID != "" {
				c.Response().Header().Set(HeaderTraceID, traceID)
			}

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
