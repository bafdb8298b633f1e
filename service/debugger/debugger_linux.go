//go:build linux && amd64

package debugger

import (
	"debug/elf"
	"errors"
	"fmt"
	"io/ioutil"
	"os"

	sys "golang.org/x/sys/unix"

	"github.com/go-deet/deet/pkg/proc"
	"github.com/go-deet/deet/pkg/proc/native"
	"github.com/go-deet/deet/service/api"
)

//lint:file-ignore ST1005 errors here can be capitalized

func nativeLaunch(cmd []string, workingDir, tty string) (proc.Process, error) {
	if err := verifyBinaryFormat(cmd[0]); err != nil {
		return nil, err
	}
	p, err := native.Launch(cmd, native.LaunchOptions{WorkingDir: workingDir, TTY: tty})
	if err != nil {
		return nil, launchErrorMessage(err)
	}
	return p, nil
}

func verifyBinaryFormat(exePath string) error {
	f, err := os.Open(exePath)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	if (fi.Mode() & 0111) == 0 {
		return api.ErrNotExecutable
	}

	// check that the binary format is what we expect for the host system
	ef, err := elf.NewFile(f)
	if err != nil || ef.Machine != elf.EM_X86_64 {
		return api.ErrNotExecutable
	}
	return nil
}

func launchErrorMessage(err error) error {
	fallbackerr := fmt.Errorf("could not launch process: %w", err)
	if errors.Is(err, sys.EPERM) {
		bs, rerr := ioutil.ReadFile("/proc/sys/kernel/yama/ptrace_scope")
		if rerr == nil && len(bs) >= 1 && bs[0] == '3' {
			// Yama documentation: https://www.kernel.org/doc/Documentation/security/Yama.txt
			return fmt.Errorf("Could not launch process: ptrace is disabled by a kernel security setting (/proc/sys/kernel/yama/ptrace_scope is 3): %w", err)
		}
		return fmt.Errorf("Could not launch process: this could be caused by a container or kernel security setting that forbids ptrace: %w", err)
	}
	return fallbackerr
}
