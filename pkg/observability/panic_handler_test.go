package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	func() {
		defer RecoverPanic(logger, "worker")
		panic("kaboom")
	}()

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "PANIC recovered", entry["message"])
	assert.Equal(t, "kaboom", entry["panic"])
	assert.Equal(t, "worker", entry["context"])
	assert.Contains(t, entry["stack"], "panic_handler_test.go")
}

func TestRecoverPanic_NoPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	func() {
		defer RecoverPanic(logger, "worker")
	}()

	assert.Zero(t, buf.Len())
}

func TestRecoverToError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	run := func() (err error) {
		defer RecoverToError(logger, "api server", &err)
		panic("listener exploded")
	}

	err := run()
	require.Error(t, err)
	assert.Equal(t, "panic in api server: listener exploded", err.Error())
}
