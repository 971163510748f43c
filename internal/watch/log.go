package watch

import (
	"io"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// logger writes diagnostics gated by the configured verbosity.
type logger struct {
	out       *log.Logger
	verbosity int

	info, event, debug, warn *color.Color
}

// newLogger colours its tags only when w itself is a terminal, so redirecting
// stdout leaves the diagnostics on stderr coloured.
func newLogger(w io.Writer, verbosity int) *logger {
	tty := isTerminal(w)
	if tty {
		w = colorable.NewColorable(w.(*os.File))
	}
	l := &logger{
		out:       log.New(w, "", log.LstdFlags),
		verbosity: verbosity,
		info:      color.New(color.FgGreen),
		event:     color.New(color.FgYellow),
		debug:     color.New(color.FgCyan),
		warn:      color.New(color.FgRed),
	}
	for _, c := range []*color.Color{l.info, l.event, l.debug, l.warn} {
		if tty {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return l
}

// isTerminal reports whether w is a terminal that accepts colour. NO_COLOR
// and TERM=dumb turn colour off.
func isTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// printf logs when the verbosity is at least level.
func (l *logger) printf(level int, format string, args ...any) {
	if l.verbosity < level {
		return
	}
	tag := l.info.Sprint("watch")
	switch {
	case level >= 3:
		tag = l.debug.Sprint("debug")
	case level == 2:
		tag = l.event.Sprint("event")
	}
	l.out.Printf(tag+" "+format, args...)
}

// warnf logs regardless of verbosity.
func (l *logger) warnf(format string, args ...any) {
	l.out.Printf(l.warn.Sprint("warning")+": "+format, args...)
}
