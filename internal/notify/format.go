package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/DJCastle/homeBrewScripts/internal/maintenance"
	"github.com/DJCastle/homeBrewScripts/internal/report"
)

// Summary renders the one-line status used by the short-message channel.
func Summary(rep report.RunReport) string {
	host := rep.Host
	if host == "" {
		host = "localhost"
	}
	if rep.Skipped() {
		return fmt.Sprintf("🍺 brewmaint on %s: skipped (%s)", host, rep.SkipReason)
	}

	var failed []string
	for _, st := range rep.Steps {
		if st.Outcome != maintenance.OutcomeSucceeded {
			failed = append(failed, st.Name)
		}
	}
	if len(failed) == 0 {
		return fmt.Sprintf("🍺 brewmaint on %s: all %d steps ok in %s",
			host, len(rep.Steps), roundDuration(rep.Duration()))
	}
	return fmt.Sprintf("🍺 brewmaint on %s: %d/%d steps ok (failed: %s)",
		host, rep.SuccessCount, len(rep.Steps), strings.Join(failed, ", "))
}

// Subject renders the mail subject line.
func Subject(rep report.RunReport) string {
	host := rep.Host
	if host == "" {
		host = "localhost"
	}
	switch {
	case rep.Skipped():
		return fmt.Sprintf("[brewmaint] %s: run skipped (%s)", host, rep.SkipReason)
	case rep.FailureCount > 0:
		return fmt.Sprintf("[brewmaint] %s: %d of %d steps failed", host, rep.FailureCount, len(rep.Steps))
	default:
		return fmt.Sprintf("[brewmaint] %s: maintenance complete", host)
	}
}

// Detailed renders the full report body used by the detailed channel,
// including the bounded log excerpt of every step.
func Detailed(rep report.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Homebrew maintenance report for %s\n", rep.Host)
	fmt.Fprintf(&b, "Started:  %s\n", rep.StartedAt.Format(time.RFC1123))
	fmt.Fprintf(&b, "Finished: %s (%s)\n", rep.FinishedAt.Format(time.RFC1123), roundDuration(rep.Duration()))
	if rep.Network != "" {
		fmt.Fprintf(&b, "Network:  %s\n", rep.Network)
	}
	if rep.Power != "" {
		fmt.Fprintf(&b, "Power:    %s\n", rep.Power)
	}
	b.WriteString("\n")

	if rep.Skipped() {
		fmt.Fprintf(&b, "Run skipped: %s.\nNo maintenance steps were executed.\n", rep.SkipReason)
		return b.String()
	}

	fmt.Fprintf(&b, "Steps: %d succeeded, %d failed\n\n", rep.SuccessCount, rep.FailureCount)
	for i, st := range rep.Steps {
		marker := "✔"
		if st.Outcome != maintenance.OutcomeSucceeded {
			marker = "✘"
		}
		fmt.Fprintf(&b, "%d. %s %s (%s)\n", i+1, marker, st.Name, roundDuration(st.Finished.Sub(st.Started)))
		if log := strings.TrimSpace(st.Log); log != "" {
			for _, line := range strings.Split(log, "\n") {
				b.WriteString("   ")
				b.WriteString(line)
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func roundDuration(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > time.Minute {
		return d.Round(time.Second)
	}
	return d.Round(time.Millisecond)
}
