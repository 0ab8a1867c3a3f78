package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lactoserv/lactoserv/app"
)

func TestHeadersGetSetCaseInsensitive(t *testing.T) {
	hs := app.Headers{}
	hs.Set("Content-Type", []string{"text/plain"})
	assert.Equal(t, []string{"text/plain"}, hs.Get("content-type"))
}

func TestHeadersAddAppends(t *testing.T) {
	hs := app.Headers{}
	hs.Add("X-Trace", "a")
	hs.Add("x-trace", "b")
	assert.Equal(t, []string{"a", "b"}, hs.Get("X-TRACE"))
}

func TestHeadersFirstEmptyWhenAbsent(t *testing.T) {
	hs := app.Headers{}
	assert.Equal(t, "", hs.First("missing"))
}
