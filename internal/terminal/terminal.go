package terminal

import (
	"io"
	"os"

	"golang.org/x/term"
)

type Capabilities struct {
	IsTerminal bool
	Width      int
	Height     int
}

// DetectCapabilities inspects f. Width and Height are zero when f is not a
// terminal, e.g. when output is piped into a status bar.
func DetectCapabilities(f *os.File) *Capabilities {
	caps := &Capabilities{}
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return caps
	}

	caps.IsTerminal = true
	if w, h, err := term.GetSize(fd); err == nil {
		caps.Width = w
		caps.Height = h
	}
	return caps
}

// Reset restores cursor, colors, the main screen and mouse reporting after a
// program that died without cleaning up.
func Reset(w io.Writer) {
	for _, seq := range []string{
		"\033[?25h",
		"\033[0m",
		"\033[?1049l",
		"\033[?1000l",
		"\033[?1002l",
		"\033[?1003l",
		"\033[?1006l",
	} {
		_, _ = io.WriteString(w, seq)
	}
	if f, ok := w.(*os.File); ok {
		_ = f.Sync()
	}
}
