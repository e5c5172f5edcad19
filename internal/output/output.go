// Package output provides CLI output handling with support for multiple modes.
//
// This package abstracts stdout/stderr writing to enable:
//   - Testable CLI commands via io.Writer injection
//   - JSON and YAML output modes for scripting
//   - Quiet mode for CI environments
//   - Colored output with TTY detection
//   - Spinner animations while probes run
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/musher-dev/claudewatch/internal/terminal"
)

// contextKey is the key for storing Writer in context.
type contextKey struct{}

// Tone selects the color and symbol of a status line.
type Tone int

const (
	ToneInfo Tone = iota
	ToneSuccess
	ToneWarning
	ToneError
	ToneMuted
)

// Writer handles CLI output with multiple modes.
type Writer struct {
	Out      io.Writer
	Err      io.Writer
	JSON     bool
	YAML     bool
	Quiet    bool
	Verbose  bool
	terminal *terminal.Info

	tones map[Tone]*color.Color
}

// Default returns a Writer configured for stdout/stderr.
func Default() *Writer {
	return newWriter(os.Stdout, os.Stderr, terminal.Detect())
}

// NewWriter creates a Writer with custom writers and terminal info.
func NewWriter(out, err io.Writer, term *terminal.Info) *Writer {
	return newWriter(out, err, term)
}

func newWriter(out, err io.Writer, term *terminal.Info) *Writer {
	w := &Writer{
		Out:      out,
		Err:      err,
		terminal: term,
		tones: map[Tone]*color.Color{
			ToneInfo:    color.New(color.FgCyan),
			ToneSuccess: color.New(color.FgGreen),
			ToneWarning: color.New(color.FgYellow),
			ToneError:   color.New(color.FgRed),
			ToneMuted:   color.New(color.FgHiBlack),
		},
	}

	if !term.ColorEnabled() {
		color.NoColor = true
	}

	return w
}

// WithContext stores the Writer in the context.
func (w *Writer) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, w)
}

// FromContext retrieves the Writer from context, or returns Default().
func FromContext(ctx context.Context) *Writer {
	if w, ok := ctx.Value(contextKey{}).(*Writer); ok {
		return w
	}

	return Default()
}

// Terminal returns the terminal info.
func (w *Writer) Terminal() *terminal.Info {
	return w.terminal
}

// SetNoColor disables colored output.
func (w *Writer) SetNoColor(disabled bool) {
	w.terminal.ForceFlag = disabled
	if disabled {
		color.NoColor = true
	}
}

// Structured reports whether a machine-readable format was requested.
func (w *Writer) Structured() bool {
	return w.JSON || w.YAML
}

// Print writes to stdout (respects quiet mode).
func (w *Writer) Print(format string, args ...any) {
	if !w.Quiet {
		fmt.Fprintf(w.Out, format, args...)
	}
}

// Println writes a line to stdout (respects quiet mode).
func (w *Writer) Println(args ...any) {
	if !w.Quiet {
		fmt.Fprintln(w.Out, args...)
	}
}

// PrintJSON outputs structured data as indented JSON.
func (w *Writer) PrintJSON(v any) error {
	enc := json.NewEncoder(w.Out)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// PrintYAML outputs structured data as YAML.
func (w *Writer) PrintYAML(v any) error {
	enc := yaml.NewEncoder(w.Out)
	enc.SetIndent(2)

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	return enc.Close()
}

// PrintStructured writes v as YAML when YAML mode is on and as JSON otherwise.
func (w *Writer) PrintStructured(v any) error {
	if w.YAML {
		return w.PrintYAML(v)
	}

	return w.PrintJSON(v)
}

// Error writes to stderr.
func (w *Writer) Error(format string, args ...any) {
	fmt.Fprintf(w.Err, format, args...)
}

// Write implements io.Writer, writing to Out.
func (w *Writer) Write(p []byte) (n int, err error) {
	if w.Quiet {
		return len(p), nil
	}

	return w.Out.Write(p)
}

// Debug writes to stdout only in verbose mode.
func (w *Writer) Debug(format string, args ...any) {
	if w.Verbose {
		w.tones[ToneMuted].Fprintf(w.Out, "[debug] "+format+"\n", args...)
	}
}

func (w *Writer) writeStatus(writer io.Writer, tone Tone, prefix, message string) {
	if w.terminal.ColorEnabled() {
		w.tones[tone].Fprint(writer, prefix+" ")
		fmt.Fprintln(writer, message)
	} else {
		fmt.Fprintln(writer, prefix+" "+message)
	}
}

// Status writes a message to stdout prefixed with the symbol of tone.
func (w *Writer) Status(tone Tone, format string, args ...any) {
	if w.Quiet {
		return
	}

	msg := fmt.Sprintf(format, args...)

	if tone == ToneMuted {
		w.Muted("%s", msg)
		return
	}

	w.writeStatus(w.Out, tone, symbols[tone], msg)
}

// Success writes a success message with a checkmark.
func (w *Writer) Success(format string, args ...any) {
	w.Status(ToneSuccess, format, args...)
}

// Failure writes an error message with an X mark to stderr. It is not
// silenced by quiet mode.
func (w *Writer) Failure(format string, args ...any) {
	w.writeStatus(w.Err, ToneError, XMark, fmt.Sprintf(format, args...))
}

// Warning writes a warning message.
func (w *Writer) Warning(format string, args ...any) {
	w.Status(ToneWarning, format, args...)
}

// Info writes an info message.
func (w *Writer) Info(format string, args ...any) {
	w.Status(ToneInfo, format, args...)
}

// Muted writes muted/gray text.
func (w *Writer) Muted(format string, args ...any) {
	if w.Quiet {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if w.terminal.ColorEnabled() {
		w.tones[ToneMuted].Fprintln(w.Out, msg)
	} else {
		fmt.Fprintln(w.Out, msg)
	}
}

// Status symbols
const (
	CheckMark   = "\u2713" // ✓
	XMark       = "\u2717" // ✗
	WarningMark = "\u26A0" // ⚠
	InfoMark    = "\u2139" // ℹ
)

var symbols = map[Tone]string{
	ToneInfo:    InfoMark,
	ToneSuccess: CheckMark,
	ToneWarning: WarningMark,
	ToneError:   XMark,
}

// Spinner creates a new spinner for long operations. The returned spinner
// falls back to plain text when spinners are disabled (non-TTY or quiet).
func (w *Writer) Spinner(message string) *Spinner {
	if w.Quiet || w.Structured() || !w.terminal.SpinnersEnabled() {
		return &Spinner{disabled: true, writer: w}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Writer = w.Err
	s.Suffix = " " + message

	return &Spinner{
		spinner: s,
		writer:  w,
	}
}

// Spinner wraps briandowns/spinner with graceful fallback.
type Spinner struct {
	spinner  *spinner.Spinner
	writer   *Writer
	disabled bool
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	if s.disabled {
		return
	}

	s.spinner.Start()
}

// Stop stops the spinner animation.
func (s *Spinner) Stop() {
	if s.disabled {
		return
	}

	s.spinner.Stop()
}

// StopWith stops the spinner and writes message in tone.
func (s *Spinner) StopWith(tone Tone, message string) {
	s.Stop()

	if message != "" {
		s.writer.Status(tone, "%s", message)
	}
}
