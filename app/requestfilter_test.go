package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lactoserv/lactoserv/app"
)

func TestFilterConfigValidateRejectsTwoRejectFlags(t *testing.T) {
	cfg := app.FilterConfig{RejectFiles: true, RejectDirectories: true}
	assert.Error(t, cfg.Validate())
}

func TestFilterConfigValidateAllowsOneRejectAndOneRedirect(t *testing.T) {
	cfg := app.FilterConfig{RejectFiles: true, RedirectDirectories: true}
	assert.NoError(t, cfg.Validate())
}

func TestApplyRejectsDirectory(t *testing.T) {
	cfg := app.FilterConfig{RejectDirectories: true}
	v := app.Apply(cfg, app.DispatchInfo{Base: "/a", Extra: "/"})
	assert.True(t, v.Rejected)
}

func TestApplyRedirectsFile(t *testing.T) {
	cfg := app.FilterConfig{RedirectFiles: true, RedirectSuffix: "/"}
	v := app.Apply(cfg, app.DispatchInfo{Base: "/a", Extra: "/b"})
	assert.False(t, v.Rejected)
	assert.Equal(t, "/a/b/", v.RedirectTo)
}

func TestApplyRejectAndRedirectTogetherAppliesToDifferentShapes(t *testing.T) {
	cfg := app.FilterConfig{RejectFiles: true, RedirectDirectories: true, RedirectSuffix: "/"}

	fileVerdict := app.Apply(cfg, app.DispatchInfo{Base: "/a", Extra: "/b"})
	assert.True(t, fileVerdict.Rejected)

	dirVerdict := app.Apply(cfg, app.DispatchInfo{Base: "/a", Extra: "/"})
	assert.False(t, dirVerdict.Rejected)
	assert.NotEmpty(t, dirVerdict.RedirectTo)
}
