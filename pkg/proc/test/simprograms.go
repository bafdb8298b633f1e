package test

import (
	"github.com/go-deet/deet/pkg/proc"
)

// CallOpcode is the first byte of a near call instruction.
const CallOpcode = 0xe8

// BreaksProgram runs main, which calls foo, then exits with status 7.
//
//	 3 int foo(int a)
//	 4 {
//	 5 	return a + 1;
//	 6 }
//	 ...
//	 9 int main(void)
//	10 {
//	11 	int a = foo(6);
//	12 	return a;
//	13 }
func BreaksProgram() (*SimProgram, *SimSymbols) {
	prog := &SimProgram{
		Trace: []uint64{
			0x401000, 0x401004, // main prologue
			0x401008,                     // call foo
			0x401100, 0x401101, 0x401104, // foo
			0x401110,           // ret
			0x401010, 0x401018, // return a
		},
		ExitCode: 7,
		SP:       0x7fefe0,
		BP:       0x7ff000,
	}
	fill := func(start, end uint64) {
		for addr := start; addr < end; addr++ {
			prog.Map(addr, []byte{0x90})
		}
	}
	fill(0x401000, 0x401040)
	fill(0x401100, 0x401120)
	prog.Map(0x401008, []byte{CallOpcode})
	prog.MapWord(0x7ff000, 0)
	prog.MapWord(0x7ff008, 0x401010)

	syms := &SimSymbols{
		File: "breaks.c",
		Funcs: []SimFunction{
			{Name: "main", Entry: 0x401000, End: 0x401040, Body: 0x401008},
			{Name: "foo", Entry: 0x401100, End: 0x401120, Body: 0x401104},
		},
		Lines: map[int]uint64{
			3:  0x401100,
			5:  0x401104,
			6:  0x401110,
			10: 0x401000,
			11: 0x401008,
			12: 0x401018,
		},
	}
	return prog, syms
}

// SimLauncher starts simulated processes running Prog. Pids start at 100.
type SimLauncher struct {
	Prog *SimProgram
	// Procs lists the started processes.
	Procs []*SimProcess
	// Args lists the command line of every launch attempt.
	Args [][]string
	// Err, if set, makes launches fail.
	Err error
}

// Launch has the signature of debugger.LaunchFunc.
func (l *SimLauncher) Launch(cmd []string, workingDir, tty string) (proc.Process, error) {
	l.Args = append(l.Args, cmd)
	if l.Err != nil {
		return nil, l.Err
	}
	p := l.Prog.Start(100 + len(l.Procs))
	l.Procs = append(l.Procs, p)
	return p, nil
}

