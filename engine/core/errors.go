package core

import (
	"errors"
	"fmt"
)

var (
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	ErrUnknown          = errors.New("unknown")

	ErrUnsupported      = errors.New("unsupported by backend")
	ErrInvalidHandle    = errors.New("invalid or destroyed handle")
	ErrCompile          = errors.New("shader compilation failed")
	ErrLink             = errors.New("program link failed")
	ErrResourceCreation = errors.New("resource creation failed")
	ErrNotReady         = errors.New("result not ready")
)

// Assert aborts the call path on a programmer error. It is never used for
// conditions a caller can recover from.
func Assert(cond bool, format string, args ...interface{}) {
	if cond {
		return
	}
	msg := fmt.Sprintf(format, args...)
	getLogger().Helper()
	LogError("assertion failed: %s", msg)
	panic("assertion failed: " + msg)
}
