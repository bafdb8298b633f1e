//go:build !linux || !amd64

package debugger

import (
	"errors"

	"github.com/go-deet/deet/pkg/proc"
)

// ErrUnsupportedArch is returned when the ptrace backend is not available
// on this system.
var ErrUnsupportedArch = errors.New("the native backend only supports linux/amd64")

func nativeLaunch(cmd []string, workingDir, tty string) (proc.Process, error) {
	return nil, ErrUnsupportedArch
}
