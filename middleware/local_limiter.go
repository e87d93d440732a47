// middleware/local_limiter.go

package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter is a per-process token bucket limiter, used when no redis is
// configured. Limits are per instance, not per cluster.
type LocalLimiter struct {
	limiters sync.Map // key -> *rate.Limiter
}

func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{}
}

func (l *LocalLimiter) getLimiter(key string, limit int, per time.Duration) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}
	every := rate.Every(per / time.Duration(limit))
	v, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(every, limit))
	return v.(*rate.Limiter)
}

// Allow spends one token from key's bucket. The bucket holds limit tokens
// and refills at limit per per.
func (l *LocalLimiter) Allow(_ context.Context, key string, limit int, per time.Duration) (bool, error) {
	if limit <= 0 || per <= 0 {
		return true, nil
	}
	return l.getLimiter(key, limit, per).Allow(), nil
}
