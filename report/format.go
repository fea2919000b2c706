// Package report renders analysis results for people: a colored console
// report for the CLI and plain text for chat messages.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"interest-profiler/profile"
)

const rule = "-------------------------------"

// SourceLine formats one source's labels, then its weight:
//
//	Technology: 70.00% | News: 30.00% | Multiplier: 1.5x (Video Detected, length: 9 minutes)
func SourceLine(r profile.SourceResult) string {
	parts := make([]string, 0, len(r.Distribution)+1)
	for _, ls := range r.Distribution {
		parts = append(parts, fmt.Sprintf("%s: %.2f%%", ls.Label, ls.Score*100))
	}
	parts = append(parts, "Multiplier: "+MultiplierText(r.Multiplier, r.Source.Kind, r.Duration))
	return strings.Join(parts, " | ")
}

// MultiplierText formats a weight as "2x", adding the video length when one
// was found.
func MultiplierText(m profile.Multiplier, kind profile.Kind, d profile.DurationHint) string {
	s := strconv.FormatFloat(float64(m), 'f', -1, 64) + "x"
	if kind == profile.KindVideo && d.Known {
		s += fmt.Sprintf(" (Video Detected, length: %d minutes)", d.Minutes())
	}
	return s
}

// EntryLine formats one profile entry as " - Label: 42.50%".
func EntryLine(e profile.Entry) string {
	return fmt.Sprintf(" - %s: %.2f%%", e.Label, e.Percentage)
}

// FailureLine formats a source that dropped out of a run.
func FailureLine(f *profile.SourceError) string {
	return fmt.Sprintf("%s (%s): %v", f.URL, f.Stage, f.Err)
}

// Text renders a full report without color.
func Text(rep *profile.Report) string {
	var sb strings.Builder

	for _, src := range rep.Sources {
		fmt.Fprintf(&sb, "Results received for %s:\n%s\n\n", src.Source.URL, SourceLine(src))
	}

	if len(rep.Failures) > 0 {
		sb.WriteString("Skipped sources:\n")
		for _, f := range rep.Failures {
			sb.WriteString(" - " + FailureLine(f) + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString(ProfileText(rep.User, rep.Profile))

	if len(rep.Suggestions) > 0 {
		sb.WriteString("\nSuggested products:\n")
		for _, s := range rep.Suggestions {
			sb.WriteString(" - " + s + "\n")
		}
	}

	return sb.String()
}

// ProfileText renders the aggregate profile block.
func ProfileText(user string, p profile.Profile) string {
	var sb strings.Builder
	sb.WriteString(profileHeader(user) + "\n")
	for _, e := range p {
		sb.WriteString(EntryLine(e) + "\n")
	}
	return sb.String()
}

func profileHeader(user string) string {
	if user == "" {
		return "User Engagement Profile (Normalized Percentages):"
	}
	return fmt.Sprintf("User Engagement Profile for %s (Normalized Percentages):", user)
}
