// Package presenter renders user-facing CLI output: status lines, prompts
// and install summaries, with color support and a quiet mode. Diagnostics for
// operators go through pkg/logger instead.
package presenter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Presenter defines the interface for consistent CLI output
type Presenter interface {
	Error(err error, context string)
	Success(message string)
	Warning(message string)
	Info(message string)
	Section(title string)
	Prompt(question string, options ...string) string
	Summary(scope string, targets []TargetCounts)
	LogHint(errorCount int, logPath string)
	SetQuiet(quiet bool)
	IsQuiet() bool
}

// ColorMode represents different color output modes
type ColorMode int

const (
	// ColorAuto lets the color package detect terminal support
	ColorAuto ColorMode = iota
	// ColorAlways forces colored output
	ColorAlways
	// ColorNever disables colored output
	ColorNever
)

// ParseColorMode maps an AGENTDEPS_COLOR value to a ColorMode. Unknown values
// mean ColorAuto.
func ParseColorMode(value string) ColorMode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "always", "force":
		return ColorAlways
	case "never", "off":
		return ColorNever
	default:
		return ColorAuto
	}
}

// detectColorMode honours NO_COLOR first, then AGENTDEPS_COLOR
func detectColorMode() ColorMode {
	if os.Getenv("NO_COLOR") != "" {
		return ColorNever
	}
	return ParseColorMode(os.Getenv("AGENTDEPS_COLOR"))
}

type styles struct {
	err     *color.Color
	success *color.Color
	warning *color.Color
	header  *color.Color
	prompt  *color.Color
	hint    *color.Color
}

func newStyles() styles {
	return styles{
		err:     color.New(color.FgRed, color.Bold),
		success: color.New(color.FgGreen, color.Bold),
		warning: color.New(color.FgYellow, color.Bold),
		header:  color.New(color.Bold),
		prompt:  color.New(color.FgCyan),
		hint:    color.New(color.FgYellow),
	}
}

// TerminalPresenter implements Presenter for terminal output
type TerminalPresenter struct {
	output      io.Writer
	errorOutput io.Writer
	input       *bufio.Reader
	colorMode   ColorMode
	styles      styles
	quiet       bool
}

// New creates a TerminalPresenter on stdout and stderr
func New() *TerminalPresenter {
	return NewWithOptions(os.Stdout, os.Stderr, detectColorMode())
}

// NewWithOptions creates a TerminalPresenter with custom writers and color mode
func NewWithOptions(output, errorOutput io.Writer, colorMode ColorMode) *TerminalPresenter {
	switch colorMode {
	case ColorAlways:
		color.NoColor = false
	case ColorNever:
		color.NoColor = true
	}

	return &TerminalPresenter{
		output:      output,
		errorOutput: errorOutput,
		input:       bufio.NewReader(os.Stdin),
		colorMode:   colorMode,
		styles:      newStyles(),
	}
}

func (p *TerminalPresenter) print(w io.Writer, style *color.Color, format string, args ...interface{}) {
	if style == nil {
		fmt.Fprintf(w, format, args...)
		return
	}
	style.Fprintf(w, format, args...)
}

// Error displays an error on the error output. Errors are shown in quiet mode.
func (p *TerminalPresenter) Error(err error, context string) {
	if err == nil {
		return
	}
	if context != "" {
		p.print(p.errorOutput, p.styles.err, "[ERROR] %s: %v\n", context, err)
		return
	}
	p.print(p.errorOutput, p.styles.err, "[ERROR] %v\n", err)
}

// Success displays a success message
func (p *TerminalPresenter) Success(message string) {
	if p.quiet {
		return
	}
	p.print(p.output, p.styles.success, "✓ %s\n", message)
}

// Warning displays a warning message
func (p *TerminalPresenter) Warning(message string) {
	if p.quiet {
		return
	}
	p.print(p.output, p.styles.warning, "⚠ %s\n", message)
}

// Info displays an informational message
func (p *TerminalPresenter) Info(message string) {
	if p.quiet {
		return
	}
	p.print(p.output, nil, "%s\n", message)
}

// Section displays a title underlined to its length
func (p *TerminalPresenter) Section(title string) {
	if p.quiet {
		return
	}
	p.print(p.output, p.styles.header, "%s\n%s\n", title, strings.Repeat("-", len(title)))
}

// Prompt asks a question and returns the trimmed answer, or "" when input
// is exhausted
func (p *TerminalPresenter) Prompt(question string, options ...string) string {
	if len(options) > 0 {
		p.print(p.output, p.styles.prompt, "%s [%s]: ", question, strings.Join(options, "/"))
	} else {
		p.print(p.output, p.styles.prompt, "%s: ", question)
	}

	response, err := p.input.ReadString('\n')
	if err != nil && response == "" {
		return ""
	}
	return strings.TrimSpace(response)
}

// SetInput replaces the reader prompts read answers from
func (p *TerminalPresenter) SetInput(r io.Reader) {
	p.input = bufio.NewReader(r)
}

// Summary displays the outcome of one install scope
func (p *TerminalPresenter) Summary(scope string, targets []TargetCounts) {
	if p.quiet {
		return
	}
	p.print(p.output, p.styles.success, "%s\n", FormatScope(scope, targets))
}

// LogHint tells the user where the details of a run's errors were logged.
// It is shown in quiet mode.
func (p *TerminalPresenter) LogHint(errorCount int, logPath string) {
	hint := FormatLogHint(errorCount, logPath)
	if hint == "" {
		return
	}
	p.print(p.errorOutput, p.styles.hint, "\n%s\n", hint)
}

// SetQuiet enables or disables quiet mode
func (p *TerminalPresenter) SetQuiet(quiet bool) {
	p.quiet = quiet
}

// IsQuiet returns whether quiet mode is enabled
func (p *TerminalPresenter) IsQuiet() bool {
	return p.quiet
}

var defaultPresenter = New()

// Error displays an error using the default presenter
func Error(err error, context string) { defaultPresenter.Error(err, context) }

// Success displays a success message using the default presenter
func Success(message string) { defaultPresenter.Success(message) }

// Warning displays a warning using the default presenter
func Warning(message string) { defaultPresenter.Warning(message) }

// Info displays an informational message using the default presenter
func Info(message string) { defaultPresenter.Info(message) }

// Section displays a section header using the default presenter
func Section(title string) { defaultPresenter.Section(title) }

// Prompt asks a question using the default presenter
func Prompt(question string, options ...string) string {
	return defaultPresenter.Prompt(question, options...)
}

// Summary displays an install scope outcome using the default presenter
func Summary(scope string, targets []TargetCounts) { defaultPresenter.Summary(scope, targets) }

// LogHint displays the log file hint using the default presenter
func LogHint(errorCount int, logPath string) { defaultPresenter.LogHint(errorCount, logPath) }

// SetInput replaces the prompt input of the default presenter
func SetInput(r io.Reader) { defaultPresenter.SetInput(r) }

// SetQuiet enables or disables quiet mode of the default presenter
func SetQuiet(quiet bool) { defaultPresenter.SetQuiet(quiet) }

// IsQuiet returns whether the default presenter is quiet
func IsQuiet() bool { return defaultPresenter.IsQuiet() }
