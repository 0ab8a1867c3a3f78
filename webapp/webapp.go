// Package webapp implements WebappRoot, the top-level composition of
// hosts, services, applications, and endpoints, with the ordered
// start/stop sequencing of spec §4.6.
package webapp

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lactoserv/lactoserv/component"
	"github.com/lactoserv/lactoserv/endpoint"
)

// Default grace windows between stop layers (spec §4.6).
const (
	DefaultEndpointStopGracePeriod    = 250 * time.Millisecond
	DefaultApplicationStopGracePeriod = 250 * time.Millisecond
)

// Startable is the subset of a managed component's surface WebappRoot
// drives directly; hosts, services, and applications all implement it
// in addition to their own domain-specific methods.
type Startable interface {
	Init(ctx context.Context, isReload bool) error
	Start(isReload bool) error
	Stop(willReload bool) error
}

// Config lists the four managed layers WebappRoot owns, dependency-
// ordered leaves first (spec §3, "Lifecycle ownership": WebappRoot owns
// the four child managers).
type Config struct {
	Hosts        []Startable
	Services     []Startable
	Applications []Startable
	Endpoints    []*endpoint.NetworkEndpoint

	EndpointStopGracePeriod    time.Duration
	ApplicationStopGracePeriod time.Duration
}

// WebappRoot orchestrates the four layers' lifecycle in the order
// required by spec §4.6: start hosts→services→applications→endpoints
// (parallel within each layer), stop endpoints→applications→services→
// hosts with grace windows between layers.
type WebappRoot struct {
	component.Lifecycle

	cfg Config
}

// New returns a WebappRoot over cfg, attached to ctx.
func New(ctx *component.Context, cfg Config) *WebappRoot {
	if cfg.EndpointStopGracePeriod == 0 {
		cfg.EndpointStopGracePeriod = DefaultEndpointStopGracePeriod
	}
	if cfg.ApplicationStopGracePeriod == 0 {
		cfg.ApplicationStopGracePeriod = DefaultApplicationStopGracePeriod
	}

	r := &WebappRoot{cfg: cfg}
	r.Attach(ctx)
	return r
}

// Init initializes every component across all four layers in parallel;
// init performs no observable side effects, so layer ordering does not
// matter here (spec §4.5).
func (r *WebappRoot) Init(ctx context.Context, isReload bool) error {
	return r.Lifecycle.Init(ctx, isReload, func(ctx context.Context, isReload bool) error {
		g, gctx := errgroup.WithContext(ctx)
		for _, c := range r.all() {
			c := c
			g.Go(func() error { return c.Init(gctx, isReload) })
		}
		return g.Wait()
	})
}

// Start starts hosts, then services, then applications, then endpoints,
// each layer fully started (in parallel within the layer) before the
// next begins (spec §4.6).
func (r *WebappRoot) Start(isReload bool) error {
	return r.Lifecycle.Start(isReload, func(isReload bool) error {
		if err := startLayer(r.cfg.Hosts, isReload); err != nil {
			return err
		}
		if err := startLayer(r.cfg.Services, isReload); err != nil {
			return err
		}
		if err := startLayer(r.cfg.Applications, isReload); err != nil {
			return err
		}
		return startLayer(endpointsAsStartable(r.cfg.Endpoints), isReload)
	})
}

// Stop stops endpoints, waits a grace window, stops applications, waits
// a grace window, then stops services and hosts together (spec §4.6).
func (r *WebappRoot) Stop(willReload bool) error {
	return r.Lifecycle.Stop(willReload, func(willReload bool) error {
		if err := stopLayer(endpointsAsStartable(r.cfg.Endpoints), willReload); err != nil {
			return err
		}

		time.Sleep(r.cfg.EndpointStopGracePeriod)

		if err := stopLayer(r.cfg.Applications, willReload); err != nil {
			return err
		}

		time.Sleep(r.cfg.ApplicationStopGracePeriod)

		g := &errgroup.Group{}
		g.Go(func() error { return stopLayer(r.cfg.Services, willReload) })
		g.Go(func() error { return stopLayer(r.cfg.Hosts, willReload) })
		return g.Wait()
	})
}

// Reload stops r (willReload=true), then constructs, inits, and starts a
// new WebappRoot from newCfg over the same component context. It never
// retains state outside the component tree itself, so the resulting tree
// is disjoint from r's; the new tree only replaces r's once its init and
// start both succeed (spec §4.5, "Reload is an in-process operation").
func Reload(ctx *component.Context, r *WebappRoot, newCfg Config) (*WebappRoot, error) {
	if err := r.Stop(true); err != nil {
		return nil, err
	}

	next := New(ctx, newCfg)

	if err := next.Init(context.Background(), true); err != nil {
		return nil, err
	}
	if err := next.Start(true); err != nil {
		return nil, err
	}

	return next, nil
}

func (r *WebappRoot) all() []Startable {
	var out []Startable
	out = append(out, r.cfg.Hosts...)
	out = append(out, r.cfg.Services...)
	out = append(out, r.cfg.Applications...)
	out = append(out, endpointsAsStartable(r.cfg.Endpoints)...)
	return out
}

func startLayer(layer []Startable, isReload bool) error {
	g := &errgroup.Group{}
	for _, c := range layer {
		c := c
		g.Go(func() error { return c.Start(isReload) })
	}
	return g.Wait()
}

func stopLayer(layer []Startable, willReload bool) error {
	g := &errgroup.Group{}
	for _, c := range layer {
		c := c
		g.Go(func() error { return c.Stop(willReload) })
	}
	return g.Wait()
}

func endpointsAsStartable(eps []*endpoint.NetworkEndpoint) []Startable {
	out := make([]Startable, len(eps))
	for i, e := range eps {
		out[i] = e
	}
	return out
}
