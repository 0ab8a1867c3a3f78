package certs

import (
	"crypto/tls"
	"fmt"

	"github.com/fsnotify/fsnotify"

	"github.com/lactoserv/lactoserv/logging"
	"github.com/lactoserv/lactoserv/pathtree"
)

// HostManager maintains a TreePathMap[*TLSContext] keyed by hostname
// PathKey, compiled from a set of HostConfigs on construction (spec
// §4.3).
type HostManager struct {
	tree *pathtree.TreePathMap[*TLSContext]
	log  logging.Logger

	watcher *fsnotify.Watcher
}

// New compiles cfgs into a HostManager. Self-signed generation for any
// selfSigned host starts asynchronously and does not block New.
func New(cfgs []HostConfig, log logging.Logger) (*HostManager, error) {
	tree := pathtree.New[*TLSContext]()

	for _, cfg := range cfgs {
		ctx, err := compile(cfg)
		if err != nil {
			return nil, err
		}

		for _, h := range cfg.Hostnames {
			if err := tree.Add(pathtree.NewHostnameKey(h), ctx); err != nil {
				return nil, fmt.Errorf("certs: registering host %q: %w", h, err)
			}
		}
	}

	return &HostManager{tree: tree, log: logging.Derive(log, "hostmanager")}, nil
}

// SniCallback parses serverName into a reverse hostname PathKey, looks it
// up, and returns the resulting certificate. It is safe for concurrent
// invocation from the TLS machinery (spec §4.3).
func (m *HostManager) SniCallback(chi *tls.ClientHelloInfo) (*tls.Certificate, error) {
	serverName := chi.ServerName
	key := pathtree.NewHostnameKey(serverName)

	matches := m.tree.Find(key, false)
	if len(matches) == 0 {
		m.log.Info("sni lookup failed", "hostKey", key.HostnameString())
		return nil, fmt.Errorf("certs: unknown host %q", serverName)
	}

	return matches[0].Value.GetSecureContext(chi.Context())
}

// MakeSubset returns a new HostManager restricted to the supplied
// hostname patterns, used by NetworkEndpoint to limit SNI scope (spec
// §4.3).
func (m *HostManager) MakeSubset(names []string) *HostManager {
	subset := pathtree.New[*TLSContext]()

	for _, n := range names {
		key := pathtree.NewHostnameKey(n)
		for _, match := range m.tree.Find(key, true) {
			_ = subset.Add(match.Base, match.Value)
		}
	}

	return &HostManager{tree: subset, log: m.log}
}

// WatchFiles starts an fsnotify watch on the given certificate/key file
// paths and invokes onChange whenever any of them is written, so callers
// can recompile affected HostConfigs and swap in a fresh HostManager.
func (m *HostManager) WatchFiles(paths []string, onChange func(path string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("certs: starting file watch: %w", err)
	}

	for _, p := range paths {
		if err := w.Add(p); err != nil {
			w.Close()
			return fmt.Errorf("certs: watching %q: %w", p, err)
		}
	}

	m.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					onChange(ev.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				m.log.Error(err, "certificate file watch error")
			}
		}
	}()

	return nil
}

// Close stops the file watch, if one was started.
func (m *HostManager) Close() error {
	if m.watcher == nil {
		return nil
	}
	return m.watcher.Close()
}
