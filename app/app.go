// Package app defines the Application contract, the Mount a
// NetworkEndpoint compiles its routing tree from, and the per-dispatch
// DispatchInfo passed to a handler (spec §3, §4.4).
package app

import (
	"context"
	"net/http"
)

// Request is the subset of request state an Application needs to
// produce a response. It wraps the standard library's request/response
// primitives the way the dispatch pipeline passes them through.
type Request struct {
	HTTP    *http.Request
	ID      string
	Cookies []*http.Cookie
	Headers Headers
}

// DispatchInfo describes where in the mount tree a request landed: the
// matched prefix (Base) and the remainder of the request path (Extra). A
// directory dispatch is indicated by a trailing empty component in Extra
// (spec §4.4).
type DispatchInfo struct {
	Base  string
	Extra string
}

// IsDirectoryDispatch reports whether Extra ends with a trailing empty
// component, i.e. the matched mount was a directory.
func (d DispatchInfo) IsDirectoryDispatch() bool {
	return len(d.Extra) > 0 && d.Extra[len(d.Extra)-1] == '/'
}

// Application is the request handler contract. A nil response return
// means "pass to the next mount in the fallthrough chain" (spec §4.4,
// step 2); concrete implementations (static-file server, simple
// response, redirector) are supplied externally.
type Application interface {
	Name() string
	HandleRequest(ctx context.Context, req *Request, dispatch DispatchInfo, w http.ResponseWriter) (handled bool, err error)
}

// Mount is a triple (hostnameKey, pathKey, applicationName) contributed
// by an endpoint's configuration (spec §3, "Mount").
type Mount struct {
	HostnamePattern string
	PathPattern     string
	ApplicationName string
}

// Ref is a resolved reference to an Application, bound by name against
// the application manager at endpoint start-time rather than at
// construction time (spec §3, "Lifecycle ownership").
type Ref struct {
	Name string
	App  Application
}

// Manager resolves application names to Applications. An endpoint holds
// a Manager from construction but only calls Lookup at Start time,
// decoupling construction order from binding order (spec §4.6).
type Manager interface {
	Lookup(name string) (Application, bool)
}

// MapManager is a Manager backed by a fixed name→Application map, the
// shape webapp.Config.Applications assembles into for its endpoints.
type MapManager map[string]Application

// Lookup implements Manager.
func (m MapManager) Lookup(name string) (Application, bool) {
	a, ok := m[name]
	return a, ok
}
