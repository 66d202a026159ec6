// Package main provides UI utilities for the EV assistant CLI.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// UI provides user-friendly output utilities.
type UI struct {
	out      io.Writer
	noColor  bool
	jsonMode bool
}

// NewUI creates a new UI writing to out.
func NewUI(out io.Writer, jsonMode, noColor bool) *UI {
	return &UI{
		out:      out,
		noColor:  noColor || !IsTerminal(),
		jsonMode: jsonMode,
	}
}

func (ui *UI) printf(attr color.Attribute, prefix, format string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	line := fmt.Sprintf("%s %s\n", prefix, fmt.Sprintf(format, args...))
	if ui.noColor {
		fmt.Fprint(ui.out, line)
		return
	}
	color.New(attr).Fprint(ui.out, line)
}

// Success prints a success message.
func (ui *UI) Success(format string, args ...interface{}) {
	ui.printf(color.FgGreen, "✓", format, args...)
}

// Error prints an error message.
func (ui *UI) Error(format string, args ...interface{}) {
	ui.printf(color.FgRed, "✗", format, args...)
}

// Warning prints a warning message.
func (ui *UI) Warning(format string, args ...interface{}) {
	ui.printf(color.FgYellow, "⚠", format, args...)
}

// Info prints an info message.
func (ui *UI) Info(format string, args ...interface{}) {
	ui.printf(color.FgCyan, "ℹ", format, args...)
}

// Reply prints an assistant reply.
func (ui *UI) Reply(text string) {
	if ui.jsonMode {
		return
	}
	if ui.noColor {
		fmt.Fprintln(ui.out, text)
		return
	}
	color.New(color.FgWhite, color.Bold).Fprintln(ui.out, text)
}

// Section prints a section header.
func (ui *UI) Section(title string) {
	if ui.jsonMode {
		return
	}
	fmt.Fprintln(ui.out)
	if ui.noColor {
		fmt.Fprintf(ui.out, "━━━ %s ━━━\n", strings.ToUpper(title))
	} else {
		color.New(color.FgMagenta, color.Bold).Fprintf(ui.out, "━━━ %s ━━━\n", strings.ToUpper(title))
	}
	fmt.Fprintln(ui.out)
}

// KeyValue prints a key-value pair.
func (ui *UI) KeyValue(key string, value interface{}) {
	if ui.jsonMode {
		return
	}
	if ui.noColor {
		fmt.Fprintf(ui.out, "  %s: %v\n", key, value)
		return
	}
	color.New(color.FgYellow).Fprintf(ui.out, "  %s: ", key)
	fmt.Fprintf(ui.out, "%v\n", value)
}

// Table prints rows aligned under headers.
func (ui *UI) Table(headers []string, rows [][]string) {
	if ui.jsonMode || len(headers) == 0 {
		return
	}

	w := tabwriter.NewWriter(ui.out, 0, 0, 2, ' ', 0)
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

// Spinner wraps a spinner for indeterminate progress. A nil Spinner is a
// no-op so callers need not check for JSON or piped output.
type Spinner struct {
	spinner *spinner.Spinner
}

// NewSpinner creates a spinner writing to stderr, or nil when output is
// not interactive.
func (ui *UI) NewSpinner(message string) *Spinner {
	if ui.jsonMode || !IsTerminal() {
		return nil
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = os.Stderr
	return &Spinner{spinner: s}
}

// Start starts the spinner animation.
func (s *Spinner) Start() {
	if s != nil {
		s.spinner.Start()
	}
}

// Stop stops the spinner animation and clears the line.
func (s *Spinner) Stop() {
	if s != nil {
		s.spinner.Stop()
	}
}

// NewProgressBar creates a determinate progress bar on stderr.
func (ui *UI) NewProgressBar(total int64, description string) *progressbar.ProgressBar {
	if ui.jsonMode || !IsTerminal() {
		return progressbar.DefaultSilent(total, description)
	}
	return progressbar.NewOptions64(
		total,
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("rows"),
		progressbar.OptionShowIts(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// NewProgress creates a multi-bar container, or nil when output is not
// interactive.
func (ui *UI) NewProgress() *mpb.Progress {
	if ui.jsonMode || !IsTerminal() {
		return nil
	}
	return mpb.New(mpb.WithWidth(64), mpb.WithOutput(os.Stderr))
}

// AddBar adds a counting bar to p. It returns nil when p is nil.
func AddBar(p *mpb.Progress, name string, total int64) *mpb.Bar {
	if p == nil {
		return nil
	}
	return p.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DSyncSpaceR}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.OnComplete(
				decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 12}),
				" done",
			),
		),
	)
}

// IsTerminal checks if stdout is a terminal.
func IsTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
