package wrangler

import (
	"context"
	"net"
	"net/http"

	"github.com/lactoserv/lactoserv/ratelimit"
)

// connLimitedListener gates Accept on a connection-rate ratelimit.Service,
// closing and discarding any connection the service denies rather than
// handing it to the PROXY/TLS/HTTP layers above (spec §2, "RateLimitService
// ... connections").
type connLimitedListener struct {
	net.Listener
	limiter *ratelimit.Service
}

func newConnLimitedListener(inner net.Listener, limiter *ratelimit.Service) net.Listener {
	if limiter == nil {
		return inner
	}
	return &connLimitedListener{Listener: inner, limiter: limiter}
}

// Accept implements net.Listener. A denied connection is closed
// immediately and Accept retries on the next one rather than returning
// an error, so a transient rate limit never trips the server's own
// accept-error backoff.
func (l *connLimitedListener) Accept() (net.Conn, error) {
	for {
		c, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}

		admitted, err := l.limiter.Admit(context.Background())
		if err != nil || !admitted {
			c.Close()
			continue
		}

		return c, nil
	}
}

// rateLimitedResponseWriter gates each Write call through a byte-rate
// ratelimit.Service, looping on partial grants until the full chunk is
// written or the limiter denies outright (spec §4.1, "byte-rate limiters
// use the same state machine").
type rateLimitedResponseWriter struct {
	http.ResponseWriter
	limiter *ratelimit.Service
}

func newRateLimitedResponseWriter(w http.ResponseWriter, limiter *ratelimit.Service) http.ResponseWriter {
	if limiter == nil {
		return w
	}
	return &rateLimitedResponseWriter{ResponseWriter: w, limiter: limiter}
}

// Write implements http.ResponseWriter.
func (w *rateLimitedResponseWriter) Write(p []byte) (int, error) {
	ctx := context.Background()
	written := 0

	for written < len(p) {
		granted, err := w.limiter.RequestBytes(ctx, float64(len(p)-written))
		if err != nil {
			return written, err
		}
		if granted <= 0 {
			return written, context.DeadlineExceeded
		}

		n, err := w.ResponseWriter.Write(p[written : written+int(granted)])
		written += n
		if err != nil {
			return written, err
		}
	}

	return written, nil
}

// dataRateLimitingHandler wraps handler so every response write is gated
// by limiter.
func dataRateLimitingHandler(handler http.Handler, limiter *ratelimit.Service) http.Handler {
	if limiter == nil {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(newRateLimitedResponseWriter(w, limiter), r)
	})
}
