package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

type RequestObserver interface {
	ObserveRequest(method string, route string, status string, elapsed time.Duration)
}

// Metrics records every request under its route pattern, not the raw path.
func Metrics(observer RequestObserver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := strconv.Itoa(c.Response().Status)
			observer.ObserveRequest(c.Request().Method, route, status, time.Since(start))
			return nil
		}
	}
}
