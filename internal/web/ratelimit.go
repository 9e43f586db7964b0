package web

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

var errRateLimited = errors.New("rate limit exceeded")

// visitorTTL is how long an idle client keeps its token bucket.
const visitorTTL = 10 * time.Minute

// ipLimiter is a token bucket per client IP. Idle buckets expire from the
// cache so the table does not grow without bound.
type ipLimiter struct {
	mu         sync.Mutex
	visitors   *gocache.Cache
	limit      rate.Limit
	burst      int
	retryAfter string
}

// newIPLimiter allows perMinute requests per IP with bursts of up to burst.
func newIPLimiter(perMinute, burst int) *ipLimiter {
	return &ipLimiter{
		visitors:   gocache.New(visitorTTL, visitorTTL/2),
		limit:      rate.Limit(float64(perMinute) / 60),
		burst:      burst,
		retryAfter: strconv.Itoa(int(math.Ceil(60 / float64(perMinute)))),
	}
}

// allow consumes a token for ip, reporting false when none is left.
func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	lim, ok := l.visitors.Get(ip)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
	}
	// Refresh the expiry on every request
	l.visitors.SetDefault(ip, lim)
	l.mu.Unlock()

	return lim.(*rate.Limiter).Allow()
}

// middleware returns an HTTP middleware that rate limits by IP.
func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			w.Header().Set("Retry-After", l.retryAfter)
			respondError(w, r, errRateLimited, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the request's client address without the port.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
