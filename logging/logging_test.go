package logging_test

import (
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"

	"github.com/lactoserv/lactoserv/logging"
)

func TestDeriveAppendsName(t *testing.T) {
	root := testr.New(t)
	hosts := logging.Derive(root, "hosts")
	example := logging.Derive(hosts, "example.com")

	// logr does not expose the accumulated name directly, but deriving
	// must not panic and must return a distinct, usable logger.
	assert.NotNil(t, example)
	example.Info("ready")
}

func TestDiscardNeverPanics(t *testing.T) {
	l := logging.Discard()
	assert.NotPanics(t, func() {
		l.Info("ignored")
		l.Error(nil, "also ignored")
	})
}
