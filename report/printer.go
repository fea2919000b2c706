package report

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"interest-profiler/profile"
)

// ColorMode selects when the printer emits ANSI colors.
type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// ParseColorMode parses "auto", "always" or "never".
func ParseColorMode(s string) (ColorMode, error) {
	switch s {
	case "", "auto":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return ColorAuto, fmt.Errorf("invalid color mode %q: must be auto, always, or never", s)
	}
}

// ResolveColors decides whether to color output. Auto mode honors NO_COLOR
// and dumb terminals, then defers to fatih/color's tty detection.
func ResolveColors(mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			return false
		}
		if os.Getenv("TERM") == "dumb" {
			return false
		}
		return !color.NoColor
	}
}

// Printer writes reports to a terminal.
type Printer struct {
	out       io.Writer
	useColors bool

	header  *color.Color
	label   *color.Color
	warn    *color.Color
	suggest *color.Color
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer, mode ColorMode) *Printer {
	p := &Printer{
		out:       out,
		useColors: ResolveColors(mode),
		header:    color.New(color.FgCyan, color.Bold),
		label:     color.New(color.FgGreen),
		warn:      color.New(color.FgYellow),
		suggest:   color.New(color.FgMagenta),
	}
	for _, c := range []*color.Color{p.header, p.label, p.warn, p.suggest} {
		if p.useColors {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Report prints a full run: per-source results, skipped sources, the
// aggregate profile and any suggestions.
func (p *Printer) Report(rep *profile.Report) {
	if rep.User != "" {
		fmt.Fprintf(p.out, "\nHello %s, here are your URL Analysis Results:\n", rep.User)
	}
	fmt.Fprintln(p.out, rule)

	for _, src := range rep.Sources {
		p.header.Fprintf(p.out, "\nResults received for %s:\n", src.Source.URL)
		fmt.Fprintln(p.out, SourceLine(src))
	}

	if len(rep.Failures) > 0 {
		fmt.Fprintln(p.out)
		for _, f := range rep.Failures {
			p.warn.Fprintf(p.out, "[SKIPPED] %s\n", FailureLine(f))
		}
	}

	fmt.Fprintln(p.out)
	p.Profile(rep.User, rep.Profile)

	if len(rep.Suggestions) > 0 {
		fmt.Fprintln(p.out, rule)
		p.header.Fprintln(p.out, "Suggested products:")
		for _, s := range rep.Suggestions {
			p.suggest.Fprintf(p.out, " - %s\n", s)
		}
	}
}

// Profile prints the aggregate profile block.
func (p *Printer) Profile(user string, prof profile.Profile) {
	fmt.Fprintln(p.out, rule)
	p.header.Fprintln(p.out, profileHeader(user))
	fmt.Fprintln(p.out, rule)
	for _, e := range prof {
		fmt.Fprint(p.out, " - ")
		p.label.Fprint(p.out, e.Label)
		fmt.Fprintf(p.out, ": %.2f%%\n", e.Percentage)
	}
}

// Warning prints a highlighted one-line message.
func (p *Printer) Warning(format string, args ...interface{}) {
	p.warn.Fprintf(p.out, "[WARN] "+format+"\n", args...)
}

// Print prints a plain line.
func (p *Printer) Print(format string, args ...interface{}) {
	fmt.Fprintf(p.out, format+"\n", args...)
}
