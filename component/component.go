// Package component implements the lifecycle state machine shared by
// every named, configured subsystem in the tree (spec §3 "Component",
// §4.5), and the RootControlContext that roots the whole-tree path
// index.
package component

import (
	"context"
	"fmt"
	"sync"

	"github.com/lactoserv/lactoserv/logging"
	"github.com/lactoserv/lactoserv/pathtree"
)

// State is one of the lifecycle states of spec §3.
type State int

const (
	StateNew State = iota
	StateInitializing
	StateStopped
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInitializing:
		return "initializing"
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// RootControlContext holds the whole-tree path index, shared by every
// component in a tree. It is mutated only during init/start, by adding
// nodes, never removing them (spec §5, "Shared-resource policy").
type RootControlContext struct {
	mu    sync.Mutex
	index *pathtree.TreePathMap[*Context]
}

// NewRootControlContext returns an empty RootControlContext.
func NewRootControlContext() *RootControlContext {
	return &RootControlContext{index: pathtree.New[*Context]()}
}

// register adds ctx to the tree's path index under key. It is safe to
// call during init/start only.
func (r *RootControlContext) register(key pathtree.PathKey, ctx *Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index.Add(key, ctx)
}

// Find looks up the Context registered at key.
func (r *RootControlContext) Find(key pathtree.PathKey) (*Context, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matches := r.index.Find(key, false)
	if len(matches) == 0 {
		return nil, false
	}
	return matches[0].Value, true
}

// Context is a component's immutable-once-assigned handle: its domain
// path, its derived logger, and the root it is registered under (spec
// §3, "a component's context, once assigned, is immutable for the
// component's lifetime").
type Context struct {
	Name   string
	Path   pathtree.PathKey
	Logger logging.Logger
	Root   *RootControlContext
}

// NewContext derives a child Context from parent (nil for a root
// component), registering it in root's path index.
func NewContext(root *RootControlContext, parent *Context, name string) (*Context, error) {
	var path pathtree.PathKey
	var logger logging.Logger

	if parent == nil {
		path = pathtree.NewURIKey("/" + name)
		logger = logging.NewNamed(name)
	} else {
		path = pathtree.NewURIKey(parent.Path.URIString() + "/" + name)
		logger = logging.Derive(parent.Logger, name)
	}

	ctx := &Context{Name: name, Path: path, Logger: logger, Root: root}

	if err := root.register(path, ctx); err != nil {
		return nil, fmt.Errorf("component: registering %q: %w", path.URIString(), err)
	}

	return ctx, nil
}

// Lifecycle implements the new→stopped→running→stopped state machine
// shared by every component (spec §4.5). Embed it in concrete component
// types and call its methods from the wrapping Init/Start/Stop.
type Lifecycle struct {
	mu    sync.Mutex
	state State
	ctx   *Context
}

// Attach assigns a Lifecycle's Context. It must be called exactly once,
// before Init.
func (l *Lifecycle) Attach(ctx *Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ctx = ctx
}

// State returns the component's current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Init transitions new→stopped. It is an error to call Init more than
// once for a given component instance (spec §4.5, "called exactly once
// per component-instance, before any start").
func (l *Lifecycle) Init(ctx context.Context, isReload bool, body func(context.Context, bool) error) error {
	l.mu.Lock()
	if l.state != StateNew {
		l.mu.Unlock()
		return fmt.Errorf("component: %s: init called in state %s, want %s", l.ctx.Name, l.state, StateNew)
	}
	l.state = StateInitializing
	l.mu.Unlock()

	l.ctx.Logger.V(1).Info("initializing", "isReload", isReload)

	if err := body(ctx, isReload); err != nil {
		l.mu.Lock()
		l.state = StateNew
		l.mu.Unlock()
		return err
	}

	l.mu.Lock()
	l.state = StateStopped
	l.mu.Unlock()

	return nil
}

// Start transitions stopped→running. state = stopped is required (spec
// §3 invariant ii).
func (l *Lifecycle) Start(isReload bool, body func(bool) error) error {
	l.mu.Lock()
	if l.state != StateStopped {
		l.mu.Unlock()
		return fmt.Errorf("component: %s: start called in state %s, want %s", l.ctx.Name, l.state, StateStopped)
	}
	l.state = StateStarting
	l.mu.Unlock()

	l.ctx.Logger.Info("starting", "isReload", isReload)

	if err := body(isReload); err != nil {
		l.mu.Lock()
		l.state = StateStopped
		l.mu.Unlock()
		return err
	}

	l.mu.Lock()
	l.state = StateRunning
	l.mu.Unlock()

	return nil
}

// Stop transitions running→stopped. state = running is required (spec
// §3 invariant iii).
func (l *Lifecycle) Stop(willReload bool, body func(bool) error) error {
	l.mu.Lock()
	if l.state != StateRunning {
		l.mu.Unlock()
		return fmt.Errorf("component: %s: stop called in state %s, want %s", l.ctx.Name, l.state, StateRunning)
	}
	l.state = StateStopping
	l.mu.Unlock()

	l.ctx.Logger.Info("stopping", "willReload", willReload)

	err := body(willReload)

	l.mu.Lock()
	l.state = StateStopped
	l.mu.Unlock()

	return err
}
