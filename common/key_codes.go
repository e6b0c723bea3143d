package common

// Key is a virtual key code. Values match GLFW key codes, which use ASCII for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
type Key int

const (
	KeySpace  Key = 32  // Spacebar (ASCII)
	KeyN      Key = 78  // N key (ASCII)
	KeyP      Key = 80  // P key (ASCII)
	KeyR      Key = 82  // R key (ASCII)
	KeyEscape Key = 256 // Escape key (GLFW)
)
