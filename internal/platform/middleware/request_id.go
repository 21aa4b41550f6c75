package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const RequestIDHeader = "X-Request-ID"

// RequestID propagates an inbound X-Request-ID or generates one, exposing it
// as the "request_id" context value and on the response. The request context
// also carries a zerolog logger tagged with the id.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" || len(rid) > 128 {
				rid = uuid.NewString()
			}
			c.Set("request_id", rid)
			c.Response().Header().Set(RequestIDHeader, rid)

			ctx := c.Request().Context()
			l := zerolog.Ctx(ctx).With().Str("request_id", rid).Logger()
			c.SetRequest(c.Request().WithContext(l.WithContext(ctx)))
			return next(c)
		}
	}
}
