// Package printer writes colored status output for registryctl.
package printer

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// Printer writes results to out and diagnostics to errOut.
type Printer struct {
	out    io.Writer
	errOut io.Writer
}

// New creates a printer. Color follows fatih/color's detection, which
// honors NO_COLOR and non-terminal output.
func New(out, errOut io.Writer) *Printer {
	return &Printer{out: out, errOut: errOut}
}

// Stdio returns a printer on stdout and stderr.
func Stdio() *Printer {
	return New(os.Stdout, os.Stderr)
}

// Success prints a green line with a checkmark prefix.
func (p *Printer) Success(format string, a ...any) {
	green.Fprintf(p.out, "✓ %s\n", fmt.Sprintf(format, a...))
}

// Warning prints a yellow line to the diagnostic stream.
func (p *Printer) Warning(format string, a ...any) {
	yellow.Fprintf(p.errOut, "! %s\n", fmt.Sprintf(format, a...))
}

// Step prints an emphasized progress line.
func (p *Printer) Step(format string, a ...any) {
	cyan.Fprintf(p.out, "→ %s\n", fmt.Sprintf(format, a...))
}

// Info prints a plain line.
func (p *Printer) Info(format string, a ...any) {
	fmt.Fprintf(p.out, format+"\n", a...)
}

// Check prints a pass/fail line for one verification step.
func (p *Printer) Check(ok bool, name, detail string) {
	if ok {
		green.Fprintf(p.out, "  ✓ %-10s", name)
	} else {
		red.Fprintf(p.out, "  ✗ %-10s", name)
	}
	fmt.Fprintf(p.out, " %s\n", detail)
}

// ReportedError is returned by Error after the error has been printed.
type ReportedError struct {
	Title string
}

func (e *ReportedError) Error() string {
	return e.Title
}

// Error prints a titled error with an explanation and suggestions to the
// diagnostic stream and returns a *ReportedError carrying only the title.
func (p *Printer) Error(title, explanation string, suggestions ...string) error {
	red.Fprintf(p.errOut, "%s\n", title)

	if explanation != "" {
		fmt.Fprintf(p.errOut, "\n%s\n", explanation)
	}

	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(p.errOut, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(p.errOut, "\nEither:\n")
		for i, s := range suggestions {
			fmt.Fprintf(p.errOut, "  %d. %s\n", i+1, s)
		}
	}

	return &ReportedError{Title: title}
}
