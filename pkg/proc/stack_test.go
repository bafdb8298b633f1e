package proc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-deet/deet/pkg/proc"
	protest "github.com/go-deet/deet/pkg/proc/test"
)

func stackSymbols() *protest.SimSymbols {
	return &protest.SimSymbols{
		File: "nested.c",
		Funcs: []protest.SimFunction{
			{Name: "main", Entry: 0x401000, End: 0x401100, Body: 0x401008},
			{Name: "one", Entry: 0x401100, End: 0x401200, Body: 0x401108},
			{Name: "two", Entry: 0x401200, End: 0x401300, Body: 0x401208},
			{Name: "three", Entry: 0x401300, End: 0x401400, Body: 0x401308},
		},
		Lines: map[int]uint64{
			3:  0x401000,
			4:  0x40102a,
			5:  0x401035,
			10: 0x401100,
			11: 0x40111b,
			12: 0x401125,
			20: 0x401200,
			21: 0x40121b,
			22: 0x401225,
			30: 0x401300,
			31: 0x40130c,
		},
	}
}

// nestedProgram is stopped in three, called by two, called by one, called
// by main.
func nestedProgram() *protest.SimProgram {
	prog := &protest.SimProgram{
		Trace: []uint64{0x401310},
		SP:    0x7fefe0,
		BP:    0x7ff000,
	}
	// frame of three
	prog.MapWord(0x7ff000, 0x7ff100)
	prog.MapWord(0x7ff008, 0x401220)
	// frame of two
	prog.MapWord(0x7ff100, 0x7ff200)
	prog.MapWord(0x7ff108, 0x401120)
	// frame of one
	prog.MapWord(0x7ff200, 0x7ff300)
	prog.MapWord(0x7ff208, 0x401030)
	// frame of main
	prog.MapWord(0x7ff300, 0)
	prog.MapWord(0x7ff308, 0x7ffff7a05b97)
	return prog
}

func TestStacktraceNested(t *testing.T) {
	p := nestedProgram().Start(1)
	frames, err := proc.Stacktrace(p, stackSymbols(), "main", 0)
	require.NoError(t, err)

	type frame struct {
		fn   string
		line int
	}
	var got []frame
	for _, f := range frames {
		got = append(got, frame{f.Function, f.Line})
	}
	assert.Equal(t, []frame{{"three", 31}, {"two", 21}, {"one", 11}, {"main", 4}}, got)
	assert.Equal(t, uint64(0x401310), frames[0].PC)
	assert.Equal(t, uint64(0x7ff000), frames[0].BP)
	assert.Equal(t, uint64(0x401030), frames[3].PC)
	assert.Equal(t, "nested.c:4", frames[3].Location())
}

func TestStacktraceStopsAtUnknownFunction(t *testing.T) {
	prog := nestedProgram()
	prog.MapWord(0x7ff108, 0x500000)
	p := prog.Start(1)

	frames, err := proc.Stacktrace(p, stackSymbols(), "main", 0)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, "??", frames[2].Function)
	assert.Equal(t, uint64(0x500000), frames[2].PC)
	assert.Equal(t, "0x500000", frames[2].Location())
}

func TestStacktraceReadError(t *testing.T) {
	prog := nestedProgram()
	prog.MapWord(0x7ff100, 0x10)
	p := prog.Start(1)

	frames, err := proc.Stacktrace(p, stackSymbols(), "main", 0)
	require.Error(t, err)
	assert.True(t, proc.IsInvalidAddress(err))
	require.Len(t, frames, 3)
	assert.Equal(t, "one", frames[2].Function)
}

func TestStacktraceDepthLimit(t *testing.T) {
	prog := nestedProgram()
	// a frame pointer chain that loops on itself
	prog.MapWord(0x7ff000, 0x7ff000)
	prog.MapWord(0x7ff008, 0x401310)
	p := prog.Start(1)

	frames, err := proc.Stacktrace(p, stackSymbols(), "main", 5)
	require.NoError(t, err)
	assert.Len(t, frames, 5)
}

func TestStacktraceNullFramePointer(t *testing.T) {
	prog := nestedProgram()
	p := prog.Start(1)
	p.SetBP(0)

	frames, err := proc.Stacktrace(p, stackSymbols(), "main", 0)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "three", frames[0].Function)
}
