// Package certs implements HostManager and the TLSContext compilation
// described in spec §4.3: assembling PEM certificate/key material into a
// usable TLS server context, generating self-signed pairs on demand, and
// resolving SNI server names against a wildcard-aware hostname tree.
package certs

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
)

// HostConfig describes one configured host: the hostname patterns it
// serves, and either supplied PEM certificate+key material or a request
// to mint a self-signed pair (spec §3, "HostConfig").
type HostConfig struct {
	Hostnames   []string
	Certificate []byte // PEM chain, one or more CERTIFICATE blocks
	PrivateKey  []byte // PEM, PKCS#8 / PKCS#1 / SEC1
	SelfSigned  bool
}

// TLSContext is the compiled, ready-to-serve result of one HostConfig.
// getSecureContext is asynchronous per spec §4.3 because self-signed
// generation happens on a background goroutine; Wait blocks until the
// certificate is ready (or generation failed).
type TLSContext struct {
	hostnames []string

	mu   sync.Mutex
	cond *sync.Cond
	cert *tls.Certificate
	err  error
	done bool
}

func newPendingContext(hostnames []string) *TLSContext {
	c := &TLSContext{hostnames: hostnames}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func newReadyContext(hostnames []string, cert tls.Certificate) *TLSContext {
	c := &TLSContext{hostnames: hostnames, cert: &cert, done: true}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *TLSContext) resolve(cert tls.Certificate, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.err = err
	} else {
		c.cert = &cert
	}
	c.done = true
	c.cond.Broadcast()
}

// GetSecureContext blocks until the certificate has finished compiling
// (immediately, for pre-supplied material; after background generation,
// for self-signed pairs), honoring ctx cancellation.
func (c *TLSContext) GetSecureContext(ctx context.Context) (*tls.Certificate, error) {
	doneC := make(chan struct{})
	go func() {
		c.mu.Lock()
		for !c.done {
			c.cond.Wait()
		}
		c.mu.Unlock()
		close(doneC)
	}()

	select {
	case <-doneC:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.cert, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Hostnames returns the hostname patterns this context was compiled for.
func (c *TLSContext) Hostnames() []string {
	return c.hostnames
}

// compile assembles a ready TLSContext from supplied PEM material, or
// starts asynchronous self-signed generation and returns a pending one.
func compile(cfg HostConfig) (*TLSContext, error) {
	if cfg.SelfSigned {
		ctx := newPendingContext(cfg.Hostnames)
		go func() {
			cert, err := generateSelfSigned(cfg.Hostnames)
			ctx.resolve(cert, err)
		}()
		return ctx, nil
	}

	cert, err := tls.X509KeyPair(cfg.Certificate, cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("certs: compiling host %v: %w", cfg.Hostnames, err)
	}

	return newReadyContext(cfg.Hostnames, cert), nil
}
