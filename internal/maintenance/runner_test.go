package maintenance

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DJCastle/homeBrewScripts/pkg/logx"
)

func TestRunExecutesInDeclaredOrder(t *testing.T) {
	var order []string
	defs := []StepDefinition{
		{Name: "a", Invoke: func(ctx context.Context) (bool, string) { order = append(order, "a"); return true, "" }},
		{Name: "b", Invoke: func(ctx context.Context) (bool, string) { order = append(order, "b"); return true, "" }},
		{Name: "c", Invoke: func(ctx context.Context) (bool, string) { order = append(order, "c"); return true, "" }},
	}
	r := NewRunner(0, logx.Nop())
	steps := r.Run(context.Background(), defs)
	if strings.Join(order, "") != "abc" {
		t.Fatalf("execution order = %v", order)
	}
	for i, st := range steps {
		if st.Name != defs[i].Name {
			t.Fatalf("step %d name = %q, want %q", i, st.Name, defs[i].Name)
		}
		if st.Outcome != OutcomeSucceeded {
			t.Fatalf("step %q outcome = %q", st.Name, st.Outcome)
		}
	}
}

func TestFailureDoesNotShortCircuit(t *testing.T) {
	ran := map[string]bool{}
	mk := func(name string, ok bool) StepDefinition {
		return StepDefinition{Name: name, Invoke: func(ctx context.Context) (bool, string) {
			ran[name] = true
			return ok, name + " output"
		}}
	}
	r := NewRunner(0, logx.Nop())
	steps := r.Run(context.Background(), []StepDefinition{
		mk(StepRefreshIndex, false),
		mk(StepUpgradePkgs, true),
		mk(StepUpgradeApps, true),
		mk(StepPruneCache, true),
	})

	for _, name := range []string{StepRefreshIndex, StepUpgradePkgs, StepUpgradeApps, StepPruneCache} {
		if !ran[name] {
			t.Fatalf("step %q did not run after earlier failure", name)
		}
	}
	if steps[0].Outcome != OutcomeFailed {
		t.Fatalf("first step outcome = %q, want failed", steps[0].Outcome)
	}
	for _, st := range steps[1:] {
		if st.Outcome != OutcomeSucceeded {
			t.Fatalf("step %q outcome = %q, want succeeded", st.Name, st.Outcome)
		}
	}
}

func TestIdempotentRerunsStaySuccessful(t *testing.T) {
	// "Already up to date" is still a zero-exit invocation, so re-running
	// the same pipeline must not raise the failure count.
	defs := []StepDefinition{
		{Name: StepRefreshIndex, Invoke: func(ctx context.Context) (bool, string) {
			return true, "Already up-to-date."
		}},
	}
	r := NewRunner(0, logx.Nop())
	for i := 0; i < 2; i++ {
		steps := r.Run(context.Background(), defs)
		if steps[0].Outcome != OutcomeSucceeded {
			t.Fatalf("run %d: outcome = %q", i, steps[0].Outcome)
		}
	}
}

func TestStepTimeoutCountsAsFailure(t *testing.T) {
	r := NewRunner(10*time.Millisecond, logx.Nop())
	steps := r.Run(context.Background(), []StepDefinition{
		{Name: "slow", Invoke: func(ctx context.Context) (bool, string) {
			<-ctx.Done()
			return false, "cut short"
		}},
		{Name: "after", Invoke: func(ctx context.Context) (bool, string) {
			// The per-step timeout must not poison later steps.
			if err := ctx.Err(); err != nil {
				return false, err.Error()
			}
			return true, ""
		}},
	})
	if steps[0].Outcome != OutcomeFailed {
		t.Fatalf("slow step outcome = %q, want failed", steps[0].Outcome)
	}
	if steps[1].Outcome != OutcomeSucceeded {
		t.Fatalf("following step outcome = %q, want succeeded", steps[1].Outcome)
	}
}

func TestPanickingStepIsIsolated(t *testing.T) {
	r := NewRunner(0, logx.Nop())
	steps := r.Run(context.Background(), []StepDefinition{
		{Name: "boom", Invoke: func(ctx context.Context) (bool, string) { panic("kaboom") }},
		{Name: "next", Invoke: func(ctx context.Context) (bool, string) { return true, "" }},
	})
	if steps[0].Outcome != OutcomeFailed {
		t.Fatalf("panicked step outcome = %q, want failed", steps[0].Outcome)
	}
	if steps[1].Outcome != OutcomeSucceeded {
		t.Fatalf("step after panic outcome = %q", steps[1].Outcome)
	}
}

type fakeInvoker struct{ got [][]string }

func (f *fakeInvoker) Invoke(ctx context.Context, args ...string) (bool, string) {
	f.got = append(f.got, args)
	return true, ""
}

func TestBrewStepsCanonicalOrder(t *testing.T) {
	pm := &fakeInvoker{}
	defs := BrewSteps(pm, true)
	want := []string{StepRefreshIndex, StepUpgradePkgs, StepUpgradeApps, StepPruneCache}
	if len(defs) != len(want) {
		t.Fatalf("got %d steps, want %d", len(defs), len(want))
	}
	for i, name := range want {
		if defs[i].Name != name {
			t.Fatalf("step %d = %q, want %q", i, defs[i].Name, name)
		}
	}

	defs = BrewSteps(pm, false)
	if len(defs) != 3 {
		t.Fatalf("without apps: got %d steps, want 3", len(defs))
	}
	if defs[len(defs)-1].Name != StepPruneCache {
		t.Fatalf("prune must stay last, got %q", defs[len(defs)-1].Name)
	}
}
