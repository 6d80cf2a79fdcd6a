// Package main provides UI utilities for the FPL graph-RAG CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// UI provides user-friendly output utilities.
type UI struct {
	noColor  bool
	jsonMode bool
}

// NewUI creates a new UI instance.
func NewUI(jsonMode, noColor bool) *UI {
	return &UI{noColor: noColor, jsonMode: jsonMode}
}

// Success prints a success message.
func (ui *UI) Success(format string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	if ui.noColor {
		fmt.Printf("✓ %s\n", fmt.Sprintf(format, args...))
	} else {
		color.New(color.FgGreen).Printf("✓ %s\n", fmt.Sprintf(format, args...))
	}
}

// Error prints an error message.
func (ui *UI) Error(format string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	if ui.noColor {
		fmt.Fprintf(os.Stderr, "✗ %s\n", fmt.Sprintf(format, args...))
	} else {
		color.New(color.FgRed).Fprintf(os.Stderr, "✗ %s\n", fmt.Sprintf(format, args...))
	}
}

// Info prints an info message.
func (ui *UI) Info(format string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	if ui.noColor {
		fmt.Printf("ℹ %s\n", fmt.Sprintf(format, args...))
	} else {
		color.New(color.FgCyan).Printf("ℹ %s\n", fmt.Sprintf(format, args...))
	}
}

// Dim prints a de-emphasized line, used for retrieval transparency output.
func (ui *UI) Dim(format string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	if ui.noColor {
		fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
	} else {
		color.New(color.Faint).Printf("  %s\n", fmt.Sprintf(format, args...))
	}
}

// Answer prints a generated answer.
func (ui *UI) Answer(text string) {
	if ui.jsonMode {
		return
	}
	if ui.noColor {
		fmt.Printf("\n%s\n\n", text)
	} else {
		color.New(color.FgWhite, color.Bold).Printf("\n%s\n\n", text)
	}
}

// Spinner starts a spinner with a label. The returned stop function is safe
// to call more than once.
func (ui *UI) Spinner(label string) func() {
	if ui.jsonMode || ui.noColor {
		return func() {}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + label
	_ = s.Color("cyan")
	s.Start()

	stopped := false
	return func() {
		if !stopped {
			s.Stop()
			stopped = true
		}
	}
}
