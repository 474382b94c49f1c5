package plugin

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindNotFound:        "NotFound",
		KindDisabled:        "Disabled",
		KindLoadFailed:      "LoadFailed",
		KindAbiMismatch:     "AbiMismatch",
		KindDuplicateName:   "DuplicateName",
		KindExecutionFailed: "ExecutionFailed",
		KindTimeout:         "Timeout",
		KindConfigError:     "ConfigError",
		KindIoError:         "IoError",
		Kind(999):           "Unknown",
	}
	for k, want := range cases {
		assert.Equal(t, want, k.String())
	}
}

func TestErrorMessageFormatting(t *testing.T) {
	withPlugin := NewError(KindExecutionFailed, "echo", "boom", nil)
	assert.Equal(t, "ExecutionFailed: echo: boom", withPlugin.Error())

	withoutPlugin := NewError(KindConfigError, "", "bad yaml", nil)
	assert.Equal(t, "ConfigError: bad yaml", withoutPlugin.Error())
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := NewError(KindIoError, "", "save failed", cause)

	assert.Same(t, cause, errors.Unwrap(wrapped))
	assert.ErrorIs(t, wrapped, cause)
}

func TestIsKind(t *testing.T) {
	err := NewError(KindNotFound, "x", "missing", nil)
	assert.True(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(err, KindDisabled))

	wrapped := fmt.Errorf("context: %w", err)
	assert.True(t, IsKind(wrapped, KindNotFound))

	assert.False(t, IsKind(errors.New("plain"), KindNotFound))
}
