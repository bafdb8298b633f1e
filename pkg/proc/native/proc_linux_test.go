//go:build linux && amd64

package native

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sys "golang.org/x/sys/unix"

	"github.com/go-deet/deet/pkg/proc"
	protest "github.com/go-deet/deet/pkg/proc/test"
	"github.com/go-deet/deet/pkg/symbols"
)

func TestMain(m *testing.M) {
	os.Exit(protest.RunTestsWithFixtures(m))
}

func withTestProcess(t *testing.T, name string, opts LaunchOptions, fn func(p *Process, bi *symbols.BinaryInfo, fixture protest.Fixture)) {
	t.Helper()
	fixture := protest.BuildFixture(t, name)
	bi, err := symbols.Load(fixture.Path, "")
	require.NoError(t, err)

	p, err := Launch([]string{fixture.Path}, opts)
	protest.SkipOnPtraceDenied(t, err)
	require.NoError(t, err)
	defer p.Kill()

	fn(p, bi, fixture)
}

func TestLaunchStopsBeforeFirstInstruction(t *testing.T) {
	withTestProcess(t, "breaks", LaunchOptions{}, func(p *Process, bi *symbols.BinaryInfo, fixture protest.Fixture) {
		assert.NotZero(t, p.Pid())
		assert.False(t, p.Exited())

		regs, err := p.Registers()
		require.NoError(t, err)
		assert.NotZero(t, regs.PC())

		st, err := p.Resume()
		require.NoError(t, err)
		assert.Equal(t, proc.Exited{Code: 7}, st)
		assert.True(t, p.Exited())

		_, err = p.Resume()
		assert.IsType(t, proc.ErrProcessExited{}, err)
	})
}

func TestLaunchNonexistent(t *testing.T) {
	_, err := Launch([]string{"/nonexistent/deet-target"}, LaunchOptions{})
	assert.Error(t, err)
}

func TestBreakpointTrapAndStepOver(t *testing.T) {
	withTestProcess(t, "breaks", LaunchOptions{}, func(p *Process, bi *symbols.BinaryInfo, fixture protest.Fixture) {
		addr, ok := bi.AddressForFunction("foo")
		require.True(t, ok)

		bpmap := proc.NewBreakpointMap()
		bp, err := bpmap.Set(p, addr)
		require.NoError(t, err)
		require.True(t, bp.Installed())

		word, err := p.ReadWord(addr)
		require.NoError(t, err)
		assert.Equal(t, proc.TrapByte, byte(word))

		st, err := p.Resume()
		require.NoError(t, err)
		require.Equal(t, proc.Stopped{Signal: sys.SIGTRAP, PC: addr + proc.TrapWidth}, st)
		assert.Equal(t, bp, bpmap.AtStop(st.(proc.Stopped).PC))

		fn, ok := bi.FunctionAt(addr)
		assert.True(t, ok)
		assert.Equal(t, "foo", fn)

		st, err = bpmap.StepOver(p, bp)
		require.NoError(t, err)
		require.True(t, proc.Alive(st))
		assert.True(t, bp.Installed())

		word, err = p.ReadWord(addr)
		require.NoError(t, err)
		assert.Equal(t, proc.TrapByte, byte(word))

		st, err = p.Resume()
		require.NoError(t, err)
		assert.Equal(t, proc.Exited{Code: 7}, st)
	})
}

func TestBreakpointOnLine(t *testing.T) {
	withTestProcess(t, "breaks", LaunchOptions{}, func(p *Process, bi *symbols.BinaryInfo, fixture protest.Fixture) {
		addr, ok := bi.AddressForLine("", 12)
		require.True(t, ok)

		bpmap := proc.NewBreakpointMap()
		_, err := bpmap.Set(p, addr)
		require.NoError(t, err)

		st, err := p.Resume()
		require.NoError(t, err)
		stopped, ok := st.(proc.Stopped)
		require.True(t, ok)
		bp := bpmap.AtStop(stopped.PC)
		require.NotNil(t, bp)

		file, line, ok := bi.LineAt(bp.Addr)
		require.True(t, ok)
		assert.Equal(t, filepath.Base(fixture.Source), filepath.Base(file))
		assert.Equal(t, 12, line)
	})
}

func TestPatchByteInvalidAddress(t *testing.T) {
	withTestProcess(t, "breaks", LaunchOptions{}, func(p *Process, bi *symbols.BinaryInfo, fixture protest.Fixture) {
		_, err := p.PatchByte(0xdeadbeef, proc.TrapByte)
		require.Error(t, err)
		assert.True(t, proc.IsInvalidAddress(err))

		_, err = p.ReadWord(0xdeadbeef)
		assert.True(t, proc.IsInvalidAddress(err))

		// the process is unaffected
		st, err := p.Resume()
		require.NoError(t, err)
		assert.Equal(t, proc.Exited{Code: 7}, st)
	})
}

func TestStacktraceNested(t *testing.T) {
	withTestProcess(t, "nested", LaunchOptions{}, func(p *Process, bi *symbols.BinaryInfo, fixture protest.Fixture) {
		addr, ok := bi.AddressForLine("", 4)
		require.True(t, ok)
		bpmap := proc.NewBreakpointMap()
		_, err := bpmap.Set(p, addr)
		require.NoError(t, err)

		st, err := p.Resume()
		require.NoError(t, err)
		require.True(t, proc.Alive(st))

		frames, err := proc.Stacktrace(p, bi, bi.EntryFunction, 0)
		require.NoError(t, err)
		var names []string
		for _, frame := range frames {
			names = append(names, frame.Function)
		}
		assert.Equal(t, []string{"depth", "depth", "depth", "depth", "main"}, names)
		assert.Equal(t, 4, frames[0].Line)
		for _, frame := range frames[1:4] {
			assert.Equal(t, 5, frame.Line)
		}
		assert.Equal(t, 10, frames[4].Line)
	})
}

func TestSignalIsForwarded(t *testing.T) {
	withTestProcess(t, "segv", LaunchOptions{}, func(p *Process, bi *symbols.BinaryInfo, fixture protest.Fixture) {
		st, err := p.Resume()
		require.NoError(t, err)
		stopped, ok := st.(proc.Stopped)
		require.True(t, ok)
		assert.Equal(t, sys.SIGSEGV, stopped.Signal)

		st, err = p.Resume()
		require.NoError(t, err)
		assert.Equal(t, proc.Signaled{Signal: sys.SIGSEGV}, st)
		assert.True(t, p.Exited())
	})
}

func TestKill(t *testing.T) {
	withTestProcess(t, "breaks", LaunchOptions{}, func(p *Process, bi *symbols.BinaryInfo, fixture protest.Fixture) {
		pid := p.Pid()
		require.NoError(t, p.Kill())
		assert.True(t, p.Exited())
		assert.Equal(t, sys.ESRCH, sys.Kill(pid, 0))

		_, err := p.Registers()
		assert.True(t, proc.IsProcessGone(err))
		assert.NoError(t, p.Kill())
	})
}

func TestLaunchWithTTY(t *testing.T) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("no pseudo terminal available: %v", err)
	}
	defer ptmx.Close()
	defer tty.Close()

	withTestProcess(t, "breaks", LaunchOptions{TTY: tty.Name()}, func(p *Process, bi *symbols.BinaryInfo, fixture protest.Fixture) {
		st, err := p.Resume()
		require.NoError(t, err)
		assert.Equal(t, proc.Exited{Code: 7}, st)

		out := make(chan string, 1)
		go func() {
			line, _ := bufio.NewReader(ptmx).ReadString('\n')
			out <- line
		}()
		select {
		case line := <-out:
			assert.Contains(t, line, "foo 6")
		case <-time.After(5 * time.Second):
			t.Fatal("no output on the terminal")
		}
	})
}
