// Package endpoint implements NetworkEndpoint, which owns a
// ProtocolWrangler plus a compiled hostname→path mount tree and routes
// each accepted request to the matching Application (spec §4.4).
package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/lactoserv/lactoserv/accesslog"
	"github.com/lactoserv/lactoserv/app"
	"github.com/lactoserv/lactoserv/component"
	"github.com/lactoserv/lactoserv/pathtree"
	"github.com/lactoserv/lactoserv/ratelimit"
)

// mountTree is one endpoint's hostname → (path → ApplicationRef) tree.
type mountTree = pathtree.TreePathMap[*pathtree.TreePathMap[app.Ref]]

// NetworkEndpoint routes requests arriving on its wrangler through a
// compiled mount tree to applications, optionally gated by a request
// rate limiter (spec §4.4).
type NetworkEndpoint struct {
	component.Lifecycle

	ctx            *component.Context
	mounts         []app.Mount
	applications   app.Manager
	requestLimiter *ratelimit.Service
	accessLog      *accesslog.Service

	tree *mountTree // nil until Start resolves application references
}

// Config configures a NetworkEndpoint's mount tree. Mounts are grouped
// by hostname pattern before compiling each hostname's path tree.
// Applications is consulted only at Start time, not at New, so endpoint
// construction never depends on application construction order (spec
// §4.6).
type Config struct {
	Mounts         []app.Mount
	Applications   app.Manager
	RequestLimiter *ratelimit.Service // nil disables request-rate gating
	AccessLog      *accesslog.Service // nil disables access logging
}

// New records cfg's mounts without resolving any application reference;
// resolution against cfg.Applications happens in Start.
func New(ctx *component.Context, cfg Config) (*NetworkEndpoint, error) {
	e := &NetworkEndpoint{
		ctx:            ctx,
		mounts:         cfg.Mounts,
		applications:   cfg.Applications,
		requestLimiter: cfg.RequestLimiter,
		accessLog:      cfg.AccessLog,
	}
	e.Attach(ctx)
	return e, nil
}

// Init satisfies the component lifecycle; application binding happens
// in Start, so Init performs no further work.
func (e *NetworkEndpoint) Init(ctx context.Context, isReload bool) error {
	return e.Lifecycle.Init(ctx, isReload, func(context.Context, bool) error { return nil })
}

// Start resolves every mount's application name against the application
// manager and compiles the resulting mount tree (spec §4.6, "Endpoints
// resolve application references by name against the application
// manager at start time").
func (e *NetworkEndpoint) Start(isReload bool) error {
	return e.Lifecycle.Start(isReload, func(bool) error {
		byHost := map[string][]app.Mount{}
		for _, m := range e.mounts {
			byHost[m.HostnamePattern] = append(byHost[m.HostnamePattern], m)
		}

		tree := pathtree.New[*pathtree.TreePathMap[app.Ref]]()

		for hostPattern, mounts := range byHost {
			pathsTree := pathtree.New[app.Ref]()
			for _, m := range mounts {
				var a app.Application
				if e.applications != nil {
					a, _ = e.applications.Lookup(m.ApplicationName)
				}
				ref := app.Ref{Name: m.ApplicationName, App: a}
				if err := pathsTree.Add(pathtree.NewURIKey(m.PathPattern), ref); err != nil {
					return err
				}
			}
			if err := tree.Add(pathtree.NewHostnameKey(hostPattern), pathsTree); err != nil {
				return err
			}
		}

		e.tree = tree
		return nil
	})
}

// Stop satisfies the component lifecycle.
func (e *NetworkEndpoint) Stop(willReload bool) error {
	return e.Lifecycle.Stop(willReload, func(bool) error { return nil })
}

// logHostNotFound logs a failed Host/SNI lookup against the actual
// lookup key that was searched for.
func (e *NetworkEndpoint) logHostNotFound(hostKey pathtree.PathKey) {
	e.ctx.Logger.Info("host not found", "hostKey", hostKey.HostnameString())
}

// HandleRequest dispatches req per spec §4.4's handleRequest algorithm:
// host lookup, request-rate gate, then ordered fallthrough over the
// matching path mounts. The request/response pair is recorded through
// AccessLog, when configured, regardless of which step produced the
// response (spec §2 data flow, "AccessLogService records the pair").
func (e *NetworkEndpoint) HandleRequest(ctx context.Context, req *app.Request, w http.ResponseWriter) {
	start := time.Now()
	rec := newResponseRecorder(w)

	if e.accessLog != nil {
		defer func() {
			e.accessLog.Write(accesslog.Record{
				Time:      start,
				RemoteIP:  req.HTTP.RemoteAddr,
				Method:    req.HTTP.Method,
				URI:       req.HTTP.RequestURI,
				Host:      req.HTTP.Host,
				Path:      req.HTTP.URL.Path,
				Referer:   req.HTTP.Referer(),
				UserAgent: req.HTTP.UserAgent(),
				Status:    rec.status,
				Latency:   time.Since(start),
				TxBytes:   rec.bytesWritten,
			})
		}()
	}

	hostKey := pathtree.NewHostnameKey(req.HTTP.Host)

	hostMatches := e.tree.Find(hostKey, false)
	if len(hostMatches) == 0 {
		e.logHostNotFound(hostKey)
		http.NotFound(rec, req.HTTP)
		return
	}

	if e.requestLimiter != nil {
		admitted, err := e.requestLimiter.Admit(ctx)
		if err != nil || !admitted {
			http.Error(rec, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
	}

	pathKey := pathtree.NewURIKey(req.HTTP.URL.Path)
	pathMatches := hostMatches[0].Value.Find(pathKey, true)

	for _, m := range pathMatches {
		if m.Value.App == nil {
			continue
		}

		dispatch := app.DispatchInfo{
			Base:  m.Base.URIString(),
			Extra: pathKey.Slice(m.Base.Len(), pathKey.Len()).URIString(),
		}

		handled, err := m.Value.App.HandleRequest(ctx, req, dispatch, rec)
		if err != nil || handled {
			return
		}
	}

	http.NotFound(rec, req.HTTP)
}

// responseRecorder wraps an http.ResponseWriter to capture the status
// code and byte count an AccessLog record needs, without altering what
// is actually written to the client.
type responseRecorder struct {
	http.ResponseWriter
	status       int
	bytesWritten int64
	wroteHeader  bool
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: w, status: http.StatusOK}
}

// WriteHeader implements http.ResponseWriter.
func (r *responseRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

// Write implements http.ResponseWriter.
func (r *responseRecorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(p)
	r.bytesWritten += int64(n)
	return n, err
}
