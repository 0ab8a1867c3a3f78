package ratelimit

import (
	"context"
	"fmt"

	"github.com/lactoserv/lactoserv/logging"
)

// Service wraps a TokenBucket for one of the three rate-limited concerns
// named in spec §4.1: connections, requests, or bytes. Connection and
// request limiting request a single token per event; byte limiting
// requests the event's size in bytes and may receive a smaller grant,
// which the caller is expected to use as a write-chunk size and request
// again for the remainder.
type Service struct {
	name   string
	bucket *TokenBucket
	log    logging.Logger
}

// NewConnectionLimiter returns a Service gating connection acceptance,
// one token per connection.
func NewConnectionLimiter(name string, cfg Config, log logging.Logger) *Service {
	return newService(name, cfg, log)
}

// NewRequestLimiter returns a Service gating request dispatch, one token
// per request (spec §4.4, "Request-time rate limiting").
func NewRequestLimiter(name string, cfg Config, log logging.Logger) *Service {
	return newService(name, cfg, log)
}

// NewDataLimiter returns a Service gating response body byte throughput;
// callers request the number of bytes they want to write and loop on
// partial grants (spec §4.1, "Byte-rate limiters use the same state
// machine").
func NewDataLimiter(name string, cfg Config, log logging.Logger) *Service {
	return newService(name, cfg, log)
}

func newService(name string, cfg Config, log logging.Logger) *Service {
	return &Service{
		name:   name,
		bucket: New(cfg),
		log:    logging.Derive(log, name),
	}
}

// Admit requests a single token, used for connection and request gating.
// It reports whether the event is admitted.
func (s *Service) Admit(ctx context.Context) (bool, error) {
	g, err := s.bucket.RequestGrant(ctx, 1)
	if err != nil {
		return false, fmt.Errorf("ratelimit: %s: %w", s.name, err)
	}
	if !g.Granted {
		s.log.V(1).Info("denied", "tokens", 1.0)
	}
	return g.Granted, nil
}

// RequestBytes requests up to n bytes of throughput and returns the
// number of bytes actually granted (which may be less than n when the
// bucket caps per-queued-waiter grant size). A zero result with no error
// means the request was denied outright (queue full or shut down).
func (s *Service) RequestBytes(ctx context.Context, n float64) (float64, error) {
	g, err := s.bucket.RequestGrant(ctx, n)
	if err != nil {
		return 0, fmt.Errorf("ratelimit: %s: %w", s.name, err)
	}
	if !g.Granted {
		s.log.V(1).Info("denied", "bytes", n)
		return 0, nil
	}
	return g.GrantSize, nil
}

// Stop shuts down the underlying bucket, denying every queued waiter and
// every future request.
func (s *Service) Stop() {
	s.bucket.Close()
}
