package transform

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/dshills/topicstore/internal/broker"
)

// Throttle passes at most one value per interval and drops the rest.
// The limiter is shared by every topic the middleware is registered for.
func Throttle(interval time.Duration) broker.TransformFunc {
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	return func(v any) (any, error) {
		if !limiter.Allow() {
			return nil, broker.ErrDrop
		}
		return v, nil
	}
}
