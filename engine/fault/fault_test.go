package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFaultClassification(t *testing.T) {
	cause := errors.New("driver said no")
	tests := []struct {
		name     string
		err      error
		sentinel error
		kind     Kind
	}{
		{"initialization", Initialization("create context", cause), ErrInitialization, KindInitialization},
		{"link", Link("link program", "missing fs_main", cause), ErrLink, KindLink},
		{"build", Build("build kernel", "line 3: unknown type", cause), ErrBuild, KindBuild},
		{"dispatch", Dispatch("enqueue kernel", cause), ErrRuntimeDispatch, KindRuntimeDispatch},
		{"protocol", Protocol("acquire", "already compute owned"), ErrProtocolViolation, KindProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.kind, KindOf(tt.err))

			wrapped := fmt.Errorf("bring-up: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Equal(t, tt.kind, KindOf(wrapped))

			for _, other := range []error{ErrInitialization, ErrLink, ErrBuild, ErrRuntimeDispatch, ErrProtocolViolation} {
				if other != tt.sentinel {
					assert.NotErrorIs(t, tt.err, other)
				}
			}
		})
	}
}

func TestFaultUnwrapAndDiagnostics(t *testing.T) {
	cause := errors.New("bad token")
	err := fmt.Errorf("setup: %w", Build("build kernel", "1:4 expected ';'", cause))

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "1:4 expected ';'", DiagnosticsOf(err))
	assert.Contains(t, err.Error(), "build error: build kernel: bad token")
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.Equal(t, "", DiagnosticsOf(nil))
	assert.Equal(t, "fault kind 42", Kind(42).String())
}
