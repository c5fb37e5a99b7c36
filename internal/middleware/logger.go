package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-booking/internal/log"
)

// Correlation reads X-Correlation-ID from the request (or generates one),
// echoes it on the response and stores it, together with a logger entry
// carrying it, on the request context.
func Correlation() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(log.CorrelationHeader)
			if id == "" {
				id = log.NewCorrelationID()
			}
			c.Response().Header().Set(log.CorrelationHeader, id)
			c.SetRequest(req.WithContext(log.ContextWithCorrelationID(req.Context(), id)))
			return next(c)
		}
	}
}

// Logger logs one line per request after it has been served.
func Logger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// Let echo write the error response so the logged status
				// matches what the client receives.
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			entry := log.FromContext(req.Context()).WithFields(logrus.Fields{
				"method":     req.Method,
				"path":       req.URL.Path,
				"status":     status,
				"duration":   time.Since(start),
				"client_ip":  c.RealIP(),
				"user_agent": req.UserAgent(),
			})
			if uid := UserID(c); uid != "" {
				entry = entry.WithField("user_id", uid)
			}

			switch {
			case status >= 500:
				entry.Error("Request failed")
			case status >= 400:
				entry.Warn("Request rejected")
			default:
				entry.Info("Request processed")
			}
			return nil
		}
	}
}
