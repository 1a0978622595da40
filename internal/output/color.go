package output

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ColorScheme provides color functions for different output elements.
type ColorScheme struct {
	JobName  func(format string, a ...interface{}) string
	Success  func(format string, a ...interface{}) string
	Error    func(format string, a ...interface{}) string
	Warning  func(format string, a ...interface{}) string
	Header   func(format string, a ...interface{}) string
	Duration func(format string, a ...interface{}) string

	// Disabled indicates if colors are disabled
	Disabled bool
}

// NewColorScheme creates a color scheme for w. Colors are disabled for
// non-TTY writers or when noColor is true.
func NewColorScheme(w io.Writer, noColor bool) *ColorScheme {
	if noColor || !isTTY(w) {
		plain := color.New().Sprintf
		return &ColorScheme{
			JobName:  plain,
			Success:  plain,
			Error:    plain,
			Warning:  plain,
			Header:   plain,
			Duration: plain,
			Disabled: true,
		}
	}

	return &ColorScheme{
		JobName:  color.New(color.FgCyan, color.Bold).Sprintf,
		Success:  color.New(color.FgGreen).Sprintf,
		Error:    color.New(color.FgRed, color.Bold).Sprintf,
		Warning:  color.New(color.FgYellow).Sprintf,
		Header:   color.New(color.FgWhite, color.Bold).Sprintf,
		Duration: color.New(color.FgBlue).Sprintf,
	}
}

func isTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// StatusColor returns the color function for a job status.
func (cs *ColorScheme) StatusColor(status Status) func(format string, a ...interface{}) string {
	switch status {
	case StatusSucceeded:
		return cs.Success
	case StatusFailed:
		return cs.Error
	default:
		return cs.Warning
	}
}
