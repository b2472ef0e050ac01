package discord

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// userLimiter allows each Discord user max messages per window, refilled evenly.
type userLimiter struct {
	limiters *sync.Map // map[string]*rate.Limiter
	every    rate.Limit
	burst    int
}

func newUserLimiter(max int, window time.Duration) *userLimiter {
	if max <= 0 || window <= 0 {
		return nil
	}
	return &userLimiter{
		limiters: &sync.Map{},
		every:    rate.Every(window / time.Duration(max)),
		burst:    max,
	}
}

// Allow reports whether userID may send another message now. A nil limiter allows everything.
func (l *userLimiter) Allow(userID string) bool {
	if l == nil {
		return true
	}
	if limiter, ok := l.limiters.Load(userID); ok {
		return limiter.(*rate.Limiter).Allow()
	}

	// Use the existing limiter if another goroutine created it first
	actual, _ := l.limiters.LoadOrStore(userID, rate.NewLimiter(l.every, l.burst))
	return actual.(*rate.Limiter).Allow()
}
