// Package maintenance executes the ordered pipeline of package-manager
// operations. Steps run strictly sequentially (concurrent operations
// against the shared local package database are unsafe) and best-effort: a
// failed step is recorded, never allowed to abort the ones after it.
package maintenance

import (
	"context"
	"time"

	"github.com/DJCastle/homeBrewScripts/pkg/logx"
)

type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// StepDefinition is one unit of work to run. Invoke reports success and
// whatever text the underlying command produced.
type StepDefinition struct {
	Name   string
	Invoke func(ctx context.Context) (ok bool, logText string)
}

// Step is the executed record of a StepDefinition. Outcome is set exactly
// once during the run and read-only afterwards.
type Step struct {
	Name     string
	Outcome  Outcome
	Log      string
	Started  time.Time
	Finished time.Time
}

type Runner struct {
	// StepTimeout bounds each step individually; 0 disables the bound.
	// A timed-out step counts as failed, same as any other failure.
	StepTimeout time.Duration

	Log logx.Logger

	// now is injectable for tests.
	now func() time.Time
}

func NewRunner(stepTimeout time.Duration, log logx.Logger) *Runner {
	return &Runner{StepTimeout: stepTimeout, Log: log, now: time.Now}
}

// Run executes defs in declared order and returns one Step per definition,
// in the same order. It never returns early: later steps run regardless of
// earlier failures.
func (r *Runner) Run(ctx context.Context, defs []StepDefinition) []Step {
	now := r.now
	if now == nil {
		now = time.Now
	}

	steps := make([]Step, 0, len(defs))
	for _, def := range defs {
		st := Step{Name: def.Name, Outcome: OutcomePending, Started: now()}
		r.Log.Info("maintenance step starting", logx.String("step", def.Name))

		ok, logText := r.invoke(ctx, def)
		st.Log = logText
		st.Finished = now()
		if ok {
			st.Outcome = OutcomeSucceeded
			r.Log.Info("maintenance step succeeded",
				logx.String("step", def.Name),
				logx.Duration("took", st.Finished.Sub(st.Started)))
		} else {
			st.Outcome = OutcomeFailed
			r.Log.Warn("maintenance step failed",
				logx.String("step", def.Name),
				logx.Duration("took", st.Finished.Sub(st.Started)))
		}
		steps = append(steps, st)
	}
	return steps
}

func (r *Runner) invoke(ctx context.Context, def StepDefinition) (ok bool, logText string) {
	if def.Invoke == nil {
		return false, "(step has no action)"
	}
	if r.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.StepTimeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			logText = "(step panicked)"
			r.Log.Error("maintenance step panicked",
				logx.String("step", def.Name), logx.Any("panic", rec))
		}
	}()
	return def.Invoke(ctx)
}
