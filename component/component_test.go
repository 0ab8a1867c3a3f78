package component_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lactoserv/lactoserv/component"
)

func newTestComponent(t *testing.T, name string) (*component.Lifecycle, *component.Context) {
	t.Helper()
	root := component.NewRootControlContext()
	ctx, err := component.NewContext(root, nil, name)
	require.NoError(t, err)

	lc := &component.Lifecycle{}
	lc.Attach(ctx)
	return lc, ctx
}

func TestLifecycleHappyPath(t *testing.T) {
	lc, _ := newTestComponent(t, "svc")

	assert.Equal(t, component.StateNew, lc.State())

	require.NoError(t, lc.Init(context.Background(), false, func(context.Context, bool) error { return nil }))
	assert.Equal(t, component.StateStopped, lc.State())

	require.NoError(t, lc.Start(false, func(bool) error { return nil }))
	assert.Equal(t, component.StateRunning, lc.State())

	require.NoError(t, lc.Stop(false, func(bool) error { return nil }))
	assert.Equal(t, component.StateStopped, lc.State())

	require.NoError(t, lc.Start(true, func(bool) error { return nil }))
	assert.Equal(t, component.StateRunning, lc.State())
}

func TestLifecycleDoubleInitFails(t *testing.T) {
	lc, _ := newTestComponent(t, "svc")

	require.NoError(t, lc.Init(context.Background(), false, func(context.Context, bool) error { return nil }))
	err := lc.Init(context.Background(), false, func(context.Context, bool) error { return nil })
	assert.Error(t, err)
}

func TestLifecycleStartRequiresStopped(t *testing.T) {
	lc, _ := newTestComponent(t, "svc")

	err := lc.Start(false, func(bool) error { return nil })
	assert.Error(t, err)
}

func TestLifecycleStopRequiresRunning(t *testing.T) {
	lc, _ := newTestComponent(t, "svc")

	require.NoError(t, lc.Init(context.Background(), false, func(context.Context, bool) error { return nil }))
	err := lc.Stop(false, func(bool) error { return nil })
	assert.Error(t, err)
}

func TestLifecycleInitFailureResetsToNew(t *testing.T) {
	lc, _ := newTestComponent(t, "svc")

	err := lc.Init(context.Background(), false, func(context.Context, bool) error {
		return assert.AnError
	})
	assert.Error(t, err)
	assert.Equal(t, component.StateNew, lc.State())
}

func TestRootControlContextRegistersAndFinds(t *testing.T) {
	root := component.NewRootControlContext()
	ctx, err := component.NewContext(root, nil, "svc")
	require.NoError(t, err)

	found, ok := root.Find(ctx.Path)
	require.True(t, ok)
	assert.Same(t, ctx, found)
}

func TestContextChildDerivesPathAndLogger(t *testing.T) {
	root := component.NewRootControlContext()
	parent, err := component.NewContext(root, nil, "parent")
	require.NoError(t, err)

	child, err := component.NewContext(root, parent, "child")
	require.NoError(t, err)

	assert.Equal(t, "/parent/child", child.Path.URIString())
}
