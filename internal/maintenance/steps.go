package maintenance

import "context"

// Canonical step names. The relative order is load-bearing: the index must
// be refreshed before anything upgrades (stale metadata risk), and pruning
// must come last so artifacts needed mid-upgrade are still around.
const (
	StepRefreshIndex = "refresh-index"
	StepUpgradePkgs  = "upgrade-packages"
	StepUpgradeApps  = "upgrade-applications"
	StepPruneCache   = "prune-cache"
)

// Invoker is the package-manager contract the steps need: a command in,
// success plus raw output back.
type Invoker interface {
	Invoke(ctx context.Context, args ...string) (ok bool, output string)
}

// BrewSteps declares the standard Homebrew maintenance pipeline.
// includeApps toggles the cask (GUI application) upgrade step; the other
// three always run.
func BrewSteps(pm Invoker, includeApps bool) []StepDefinition {
	steps := []StepDefinition{
		{Name: StepRefreshIndex, Invoke: brewStep(pm, "update")},
		{Name: StepUpgradePkgs, Invoke: brewStep(pm, "upgrade", "--formula")},
	}
	if includeApps {
		steps = append(steps, StepDefinition{Name: StepUpgradeApps, Invoke: brewStep(pm, "upgrade", "--cask")})
	}
	steps = append(steps, StepDefinition{Name: StepPruneCache, Invoke: brewStep(pm, "cleanup", "--prune=all")})
	return steps
}

func brewStep(pm Invoker, args ...string) func(ctx context.Context) (bool, string) {
	return func(ctx context.Context) (bool, string) {
		return pm.Invoke(ctx, args...)
	}
}
