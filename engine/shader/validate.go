package shader

import (
	"strings"

	"github.com/gogpu/naga"
)

// Validate runs the WGSL front end over source and returns the compiler's diagnostics on failure.
// It catches syntax and type errors with readable messages before a driver compiles the module.
//
// Parameters:
//   - source: the WGSL source
//
// Returns:
//   - string: diagnostic text, empty on success
//   - error: the compile error, nil on success
func Validate(source string) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "empty source", errEmptySource
	}
	if _, err := naga.Compile(source); err != nil {
		return err.Error(), err
	}
	return "", nil
}

type validationError string

func (e validationError) Error() string { return string(e) }

const errEmptySource = validationError("shader source is empty")
