package common

// Key codes the window reacts to. The values match GLFW key codes, which use ASCII for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyQ   = 81  // Q key (ASCII)
	KeyEsc = 256 // Escape key (GLFW)
)

// QuitKeys lists the keys that close the surface window.
var QuitKeys = []int{KeyEsc, KeyQ}
