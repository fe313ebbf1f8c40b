package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

// Console writes results to Out and status lines to Err.
type Console struct {
	Out     io.Writer
	Err     io.Writer
	Verbose bool

	// Interactive enables spinners and progress bars.
	Interactive bool

	success *color.Color
	failure *color.Color
	info    *color.Color
	dim     *color.Color
}

// NewConsole creates a console on out and errOut. Animations are enabled
// only when errOut is a terminal.
func NewConsole(out, errOut io.Writer, noColor, verbose bool) *Console {
	if noColor {
		color.NoColor = true
	}
	interactive := false
	if f, ok := errOut.(*os.File); ok {
		interactive = isTerminal(f) && !noColor
	}
	return newConsole(out, errOut, verbose, interactive)
}

// NewTestConsole creates a non-interactive console with colors disabled.
func NewTestConsole(out, errOut io.Writer) *Console {
	c := newConsole(out, errOut, true, false)
	for _, cl := range []*color.Color{c.success, c.failure, c.info, c.dim} {
		cl.DisableColor()
	}
	return c
}

func newConsole(out, errOut io.Writer, verbose, interactive bool) *Console {
	return &Console{
		Out:         out,
		Err:         errOut,
		Verbose:     verbose,
		Interactive: interactive,
		success:     color.New(color.FgGreen),
		failure:     color.New(color.FgRed, color.Bold),
		info:        color.New(color.FgCyan),
		dim:         color.New(color.Faint),
	}
}

// Success prints a success line to Err.
func (c *Console) Success(format string, args ...interface{}) {
	c.success.Fprintf(c.Err, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Error prints the single-line error report.
func (c *Console) Error(err error) {
	c.failure.Fprintf(c.Err, "Error: %s\n", oneLine(err.Error()))
}

// Info prints an informational line to Err.
func (c *Console) Info(format string, args ...interface{}) {
	c.info.Fprintf(c.Err, "ℹ %s\n", fmt.Sprintf(format, args...))
}

// Detail prints an indented line to Err in verbose mode only.
func (c *Console) Detail(format string, args ...interface{}) {
	if !c.Verbose {
		return
	}
	c.dim.Fprintf(c.Err, "  %s\n", fmt.Sprintf(format, args...))
}

// Result prints one line to Out.
func (c *Console) Result(line string) {
	fmt.Fprintln(c.Out, line)
}

// Table prints rows aligned under headers to Err.
func (c *Console) Table(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(c.Err, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(headers, "\t"))

	separator := make([]string, len(headers))
	for i := range separator {
		separator[i] = strings.Repeat("-", len(headers[i]))
	}
	fmt.Fprintln(w, strings.Join(separator, "\t"))

	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	_ = w.Flush()
}

// Spinner returns a spinner bound to Err, or nil when not interactive.
func (c *Console) Spinner(message string) *Spinner {
	if !c.Interactive {
		return nil
	}
	return NewSpinner(c.Err, message)
}

// ProgressBar returns a bar bound to Err, or nil when not interactive.
func (c *Console) ProgressBar(total int, description string) *ProgressBar {
	if !c.Interactive || total <= 0 {
		return nil
	}
	return NewProgressBar(c.Err, total, description)
}

// FormatDuration formats a duration in a human-readable way.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	d = d.Round(time.Second)

	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// oneLine collapses an error message onto a single line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
