package terminal

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// isDumb returns true if colour escapes must not be written to stdout,
// either because TERM says so or because stdout is not a terminal.
func isDumb() bool {
	if strings.ToLower(os.Getenv("TERM")) == "dumb" {
		return true
	}
	return !isatty.IsTerminal(os.Stdout.Fd())
}

// getColorableWriter returns a writer for stdout that understands ANSI
// colour escapes.
func getColorableWriter() io.Writer {
	return colorable.NewColorableStdout()
}
