package webapp_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lactoserv/lactoserv/component"
	"github.com/lactoserv/lactoserv/webapp"
)

type recordingComponent struct {
	mu     *sync.Mutex
	events *[]string
	name   string
}

func (c *recordingComponent) Init(context.Context, bool) error {
	c.record("init:" + c.name)
	return nil
}

func (c *recordingComponent) Start(bool) error {
	c.record("start:" + c.name)
	return nil
}

func (c *recordingComponent) Stop(bool) error {
	c.record("stop:" + c.name)
	return nil
}

func (c *recordingComponent) record(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*c.events = append(*c.events, event)
}

func newRoot(t *testing.T) *component.Context {
	t.Helper()
	root := component.NewRootControlContext()
	ctx, err := component.NewContext(root, nil, "webapp")
	require.NoError(t, err)
	return ctx
}

func indexOf(events []string, target string) int {
	for i, e := range events {
		if e == target {
			return i
		}
	}
	return -1
}

func TestWebappRootStartOrdersLayers(t *testing.T) {
	var mu sync.Mutex
	var events []string

	host := &recordingComponent{mu: &mu, events: &events, name: "host"}
	svc := &recordingComponent{mu: &mu, events: &events, name: "svc"}
	appC := &recordingComponent{mu: &mu, events: &events, name: "app"}

	root := webapp.New(newRoot(t), webapp.Config{
		Hosts:        []webapp.Startable{host},
		Services:     []webapp.Startable{svc},
		Applications: []webapp.Startable{appC},
	})

	require.NoError(t, root.Init(context.Background(), false))
	require.NoError(t, root.Start(false))

	assert.Less(t, indexOf(events, "start:host"), indexOf(events, "start:svc"))
	assert.Less(t, indexOf(events, "start:svc"), indexOf(events, "start:app"))
}

func TestWebappRootStopOrdersLayersWithGraceWindows(t *testing.T) {
	var mu sync.Mutex
	var events []string

	host := &recordingComponent{mu: &mu, events: &events, name: "host"}
	svc := &recordingComponent{mu: &mu, events: &events, name: "svc"}
	appC := &recordingComponent{mu: &mu, events: &events, name: "app"}

	root := webapp.New(newRoot(t), webapp.Config{
		Hosts:                      []webapp.Startable{host},
		Services:                   []webapp.Startable{svc},
		Applications:               []webapp.Startable{appC},
		EndpointStopGracePeriod:    time.Millisecond,
		ApplicationStopGracePeriod: time.Millisecond,
	})

	require.NoError(t, root.Init(context.Background(), false))
	require.NoError(t, root.Start(false))
	require.NoError(t, root.Stop(false))

	assert.Less(t, indexOf(events, "stop:app"), indexOf(events, "stop:svc"))
	assert.Less(t, indexOf(events, "stop:app"), indexOf(events, "stop:host"))
}

func TestReloadSwapsInFreshTree(t *testing.T) {
	var mu sync.Mutex
	var events []string
	ctx := newRoot(t)

	host := &recordingComponent{mu: &mu, events: &events, name: "host"}
	root := webapp.New(ctx, webapp.Config{
		Hosts:                      []webapp.Startable{host},
		EndpointStopGracePeriod:    time.Millisecond,
		ApplicationStopGracePeriod: time.Millisecond,
	})
	require.NoError(t, root.Init(context.Background(), false))
	require.NoError(t, root.Start(false))

	host2 := &recordingComponent{mu: &mu, events: &events, name: "host2"}
	next, err := webapp.Reload(ctx, root, webapp.Config{
		Hosts:                      []webapp.Startable{host2},
		EndpointStopGracePeriod:    time.Millisecond,
		ApplicationStopGracePeriod: time.Millisecond,
	})
	require.NoError(t, err)
	require.NotNil(t, next)

	assert.Contains(t, events, "stop:host")
	assert.Contains(t, events, "start:host2")
}
