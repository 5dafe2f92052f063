package httprpc

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Processor is transport middleware run before RPC handling.
//
// Protocol:
//   - Processors MUST call next unless they intend to short-circuit the
//     request.
//   - A non-nil error stops the chain and is rendered as an HTTP error.
type Processor interface {
	Process(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error
}

// ProcessorFunc adapts a function to a Processor.
type ProcessorFunc func(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error

func (f ProcessorFunc) Process(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error {
	return f(w, r, next)
}

// SecurityHeaders sets recommended response headers for an API endpoint:
// nosniff, DENY framing, a deny-all CSP, and no-referrer.
func SecurityHeaders() Processor {
	return ProcessorFunc(func(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Referrer-Policy", "no-referrer")
		return next(w, r)
	})
}

// rateLimiter applies a token bucket per client address and periodically
// evicts idle entries.
type rateLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu    sync.Mutex
	byKey map[string]*limiterEntry
	hits  uint64
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit throttles requests per client IP at rps with the given burst.
// Clients over the limit receive 429 Too Many Requests.
func RateLimit(rps float64, burst int) Processor {
	if rps <= 0 || burst <= 0 {
		// Disabled limiter passes everything through.
		return ProcessorFunc(func(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error {
			return next(w, r)
		})
	}
	l := &rateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		byKey:   make(map[string]*limiterEntry),
	}
	return ProcessorFunc(func(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error {
		if !l.allow(clientKey(r), time.Now()) {
			return Error(http.StatusTooManyRequests, "rate limit exceeded")
		}
		return next(w, r)
	})
}

func (l *rateLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}
	return allowed
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

// RequestLog logs each HTTP request with its latency.
func RequestLog(log *zap.Logger) Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return ProcessorFunc(func(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error {
		started := time.Now()
		err := next(w, r)
		fields := []zap.Field{
			zap.String("remote", clientKey(r)),
			zap.String("path", r.URL.Path),
			zap.Duration("latency", time.Since(started)),
		}
		if err != nil {
			log.Warn("rpc http request failed", append(fields, zap.Error(err))...)
		} else {
			log.Info("rpc http request", fields...)
		}
		return err
	})
}
