// Package terminal reports terminal capabilities: TTY detection, NO_COLOR
// support and dimensions.
package terminal

import (
	"os"

	"golang.org/x/term"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
)

// Info holds terminal capability information.
type Info struct {
	IsTTY     bool
	NoColor   bool
	Width     int
	Height    int
	ForceFlag bool // set by --no-color
}

// Detect returns terminal information for stdout.
func Detect() *Info {
	return DetectFD(int(os.Stdout.Fd()))
}

// DetectFD returns terminal information for the given file descriptor.
func DetectFD(fd int) *Info {
	isTTY := term.IsTerminal(fd)

	width, height := defaultWidth, defaultHeight

	if isTTY {
		if w, h, err := term.GetSize(fd); err == nil {
			width, height = w, h
		}
	}

	// https://no-color.org/
	_, noColor := os.LookupEnv("NO_COLOR")

	if os.Getenv("TERM") == "dumb" {
		noColor = true
	}

	return &Info{
		IsTTY:   isTTY,
		NoColor: noColor,
		Width:   width,
		Height:  height,
	}
}

// Plain returns Info for a non-interactive, colorless sink such as a pipe or
// a test buffer.
func Plain() *Info {
	return &Info{NoColor: true, Width: defaultWidth, Height: defaultHeight}
}

// ColorEnabled returns true if colored output should be used.
func (t *Info) ColorEnabled() bool {
	if t.ForceFlag {
		return false
	}

	return t.IsTTY && !t.NoColor
}

// InteractiveEnabled returns true if a full-screen indicator can be drawn.
func (t *Info) InteractiveEnabled() bool {
	return t.IsTTY
}

// SpinnersEnabled returns true if spinners should be used.
func (t *Info) SpinnersEnabled() bool {
	return t.IsTTY && !t.NoColor
}
