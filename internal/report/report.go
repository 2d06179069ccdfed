// Package report turns executed maintenance steps into the immutable
// record of one run. Building is pure bookkeeping: count, stamp, and bound
// the log excerpts so notification payloads stay small.
package report

import (
	"errors"
	"strings"
	"time"

	"github.com/DJCastle/homeBrewScripts/internal/maintenance"
)

// ErrSkipWithSteps guards the terminal-state invariant: a skipped run has,
// by definition, executed nothing.
var ErrSkipWithSteps = errors.New("report: skipped run cannot carry executed steps")

// RunReport is the aggregate outcome of one invocation. Immutable after
// construction.
type RunReport struct {
	Host       string
	StartedAt  time.Time
	FinishedAt time.Time

	Steps        []maintenance.Step
	SuccessCount int
	FailureCount int

	// SkipReason is set when no maintenance ran ("network", "power",
	// "package-manager-unavailable"). Empty for completed runs.
	SkipReason string

	// Observed environment at decision time, for the notification text.
	Network string
	Power   string
}

func (r RunReport) Skipped() bool { return r.SkipReason != "" }

// Duration of the whole run, including precondition waiting.
func (r RunReport) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

type Builder struct {
	Host string

	// ExcerptLines bounds each step's log to its last N lines
	// (default 20).
	ExcerptLines int

	// Now is injectable for tests.
	Now func() time.Time
}

// Build assembles a RunReport. skipReason and steps are mutually
// exclusive; violating that is the one construction error, and it is
// treated as catastrophic by the caller.
func (b Builder) Build(startedAt time.Time, steps []maintenance.Step, skipReason string) (RunReport, error) {
	if skipReason != "" && len(steps) > 0 {
		return RunReport{}, ErrSkipWithSteps
	}

	now := b.Now
	if now == nil {
		now = time.Now
	}
	lines := b.ExcerptLines
	if lines <= 0 {
		lines = 20
	}

	rep := RunReport{
		Host:       b.Host,
		StartedAt:  startedAt,
		FinishedAt: now(),
		SkipReason: skipReason,
	}
	if len(steps) > 0 {
		rep.Steps = make([]maintenance.Step, len(steps))
		copy(rep.Steps, steps)
		for i := range rep.Steps {
			rep.Steps[i].Log = tailLines(rep.Steps[i].Log, lines)
			switch rep.Steps[i].Outcome {
			case maintenance.OutcomeSucceeded:
				rep.SuccessCount++
			default:
				rep.FailureCount++
			}
		}
	}
	return rep, nil
}

// tailLines keeps the last n lines of s, with a marker for what was cut.
func tailLines(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	all := strings.Split(s, "\n")
	if len(all) <= n {
		return s
	}
	kept := all[len(all)-n:]
	return "(… earlier output omitted)\n" + strings.Join(kept, "\n")
}
