package dialog

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fatal failure classes of the window context.
// All of them abort the session and surface as an Error result so the
// protocol caller gets a clean failure instead of a hang.
var (
	// ErrConnection wraps display socket and negotiation failures.
	ErrConnection = errors.New("wayland connection failed")

	// ErrMissingGlobal matches any MissingGlobalError. A required global
	// absent from the registry is fatal; there is no degraded mode.
	ErrMissingGlobal = errors.New("missing required capability")

	// ErrBufferAllocation wraps shared-memory pool setup failures.
	ErrBufferAllocation = errors.New("buffer allocation failed")
)

// MissingGlobalError reports which required registry global was absent.
type MissingGlobalError struct {
	Name string
}

func (e *MissingGlobalError) Error() string {
	return fmt.Sprintf("missing required capability %s", e.Name)
}

func (e *MissingGlobalError) Is(target error) bool {
	return target == ErrMissingGlobal
}
