// Package logging provides the hierarchical logger abstraction used by
// every component in the tree. It never formats log lines itself — that
// is the job of an external collaborator wired in through the logr.Logger
// sink — it only knows how to derive a child logger for a component's
// position in the tree.
package logging

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
)

// Logger is the opaque hierarchical logger interface every component
// receives from its context. It is satisfied by logr.Logger directly.
type Logger = logr.Logger

// Discard returns a Logger that throws every record away, for components
// under test or that otherwise opt out of logging.
func Discard() Logger {
	return logr.Discard()
}

// NewNamed returns a root Logger backed by a minimal stdout-formatting
// sink, named root. Real deployments are expected to supply their own
// logr.Logger (e.g. one backed by zap, logrus, or another formatter);
// this constructor only exists so the tree has something to derive from
// when no sink has been injected.
func NewNamed(root string) Logger {
	l := funcr.New(func(prefix, args string) {
		if prefix != "" {
			println(prefix + ": " + args)
		} else {
			println(args)
		}
	}, funcr.Options{})
	return l.WithName(root)
}

// Derive returns a child logger for the named component, optionally
// nested under an existing parent logger. This is the sole mechanism by
// which a component's logger reflects its tree path: each level appends
// one more WithName segment, and the parent is always passed down from
// the component's Context.
func Derive(parent Logger, name string) Logger {
	return parent.WithName(name)
}
