package wrangler_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lactoserv/lactoserv/component"
	"github.com/lactoserv/lactoserv/logging"
	"github.com/lactoserv/lactoserv/ratelimit"
	"github.com/lactoserv/lactoserv/wrangler"
)

func newTestContext(t *testing.T, name string) *component.Context {
	t.Helper()
	root := component.NewRootControlContext()
	ctx, err := component.NewContext(root, nil, name)
	require.NoError(t, err)
	return ctx
}

func TestProtocolWranglerHTTPServesRequests(t *testing.T) {
	ctx := newTestContext(t, "wrangler")

	w, err := wrangler.New(ctx, wrangler.Config{Protocol: wrangler.ProtocolHTTP, Address: "127.0.0.1:0"})
	require.NoError(t, err)

	require.NoError(t, w.Init(context.Background(), false))

	handler := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("ok"))
	})

	require.NoError(t, w.Start(false, handler))
	defer w.Stop(false, time.Second)

	resp, err := http.Get("http://" + w.Addr().String() + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestProtocolWranglerHTTPSRequiresHostManager(t *testing.T) {
	ctx := newTestContext(t, "wrangler")
	_, err := wrangler.New(ctx, wrangler.Config{Protocol: wrangler.ProtocolHTTPS, Address: "127.0.0.1:0"})
	assert.Error(t, err)
}

func TestProtocolWranglerConnectionLimiterDeniesExcessConnections(t *testing.T) {
	ctx := newTestContext(t, "wrangler")

	connLimiter := ratelimit.NewConnectionLimiter("test-conns", ratelimit.Config{
		FlowRate: 0, MaxBurstSize: 1, MaxQueueSize: 0,
	}, logging.Discard())
	defer connLimiter.Stop()

	w, err := wrangler.New(ctx, wrangler.Config{
		Protocol:          wrangler.ProtocolHTTP,
		Address:           "127.0.0.1:0",
		ConnectionLimiter: connLimiter,
	})
	require.NoError(t, err)
	require.NoError(t, w.Init(context.Background(), false))

	handler := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})
	require.NoError(t, w.Start(false, handler))
	defer w.Stop(false, time.Second)

	// The first connection consumes the single burst token; opening a
	// second in rapid succession must be refused at accept time.
	first, err := http.Get("http://" + w.Addr().String() + "/")
	require.NoError(t, err)
	first.Body.Close()

	client := &http.Client{Timeout: 500 * time.Millisecond}
	_, err = client.Get("http://" + w.Addr().String() + "/")
	assert.Error(t, err, "second connection should have been denied by the connection limiter")
}

func TestProtocolWranglerDataLimiterThrottlesResponseWrites(t *testing.T) {
	ctx := newTestContext(t, "wrangler")

	dataLimiter := ratelimit.NewDataLimiter("test-bytes", ratelimit.Config{
		FlowRate: 1 << 20, MaxBurstSize: 1 << 20, MaxQueueSize: 1 << 20,
	}, logging.Discard())
	defer dataLimiter.Stop()

	w, err := wrangler.New(ctx, wrangler.Config{
		Protocol:    wrangler.ProtocolHTTP,
		Address:     "127.0.0.1:0",
		DataLimiter: dataLimiter,
	})
	require.NoError(t, err)
	require.NoError(t, w.Init(context.Background(), false))

	handler := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Write([]byte("throttled"))
	})
	require.NoError(t, w.Start(false, handler))
	defer w.Stop(false, time.Second)

	resp, err := http.Get("http://" + w.Addr().String() + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "throttled", string(body))
}
