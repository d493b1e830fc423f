package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimit allows each client IP limit requests per window, refilled
// smoothly, with a burst of limit. Idle limiters expire after a few windows.
// A non-positive limit disables limiting.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 || per <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	interval := per / time.Duration(limit)
	retryAfter := strconv.Itoa(int(interval.Seconds()) + 1)
	every := rate.Every(interval)
	limiters := cache.New(3*per, 6*per)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIPForRateLimit(r)
			var lim *rate.Limiter
			if v, ok := limiters.Get(ip); ok {
				lim = v.(*rate.Limiter)
			} else {
				lim = rate.NewLimiter(every, limit)
				if err := limiters.Add(ip, lim, cache.DefaultExpiration); err != nil {
					// lost a race with another request from the same ip
					if v, ok := limiters.Get(ip); ok {
						lim = v.(*rate.Limiter)
					}
				}
			}
			limiters.SetDefault(ip, lim)

			if !lim.Allow() {
				w.Header().Set("Retry-After", retryAfter)
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
