// Package orch wires the run end to end: check the package manager, check
// the environment, run the pipeline, build the report, dispatch it. One
// invocation walks a fixed state machine; whatever happens to individual
// steps or channels, every invocation that gets past construction ends in
// a dispatch attempt, so silent failure needs every channel down at once.
package orch

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/DJCastle/homeBrewScripts/internal/maintenance"
	"github.com/DJCastle/homeBrewScripts/internal/notify"
	"github.com/DJCastle/homeBrewScripts/internal/precheck"
	"github.com/DJCastle/homeBrewScripts/internal/report"
	"github.com/DJCastle/homeBrewScripts/pkg/logx"
)

type State string

const (
	StateIdle        State = "idle"
	StateChecking    State = "checking-preconditions"
	StateSkipped     State = "skipped"
	StateRunning     State = "running"
	StateReporting   State = "reporting"
	StateDispatching State = "dispatching"
	StateDone        State = "done"
)

// Skip reasons surfaced in RunReport.SkipReason.
const (
	ReasonNetwork     = "network"
	ReasonPower       = "power"
	ReasonPackageMgr  = "package-manager-unavailable"
	ReasonInterrupted = "interrupted"
)

// ErrBusy means an invocation was attempted while another is in flight.
// Runs are not re-entrant; overlapping package-manager activity is unsafe.
var ErrBusy = errors.New("a maintenance run is already in progress")

type Checker interface {
	Evaluate(ctx context.Context) precheck.Result
}

// PackageManager is what the orchestrator itself needs from brew: an
// availability check before anything destructive starts.
type PackageManager interface {
	Available() error
}

type StepRunner interface {
	Run(ctx context.Context, defs []maintenance.StepDefinition) []maintenance.Step
}

type ReportDispatcher interface {
	Dispatch(ctx context.Context, rep report.RunReport, channels []notify.Channel) []notify.DeliveryResult
}

// HistorySink receives finished reports. A nil *history.Store satisfies it.
type HistorySink interface {
	Append(ctx context.Context, rep report.RunReport) error
	Prune(ctx context.Context) (int64, error)
}

type Orchestrator struct {
	checker    Checker
	pm         PackageManager
	runner     StepRunner
	steps      []maintenance.StepDefinition
	builder    report.Builder
	dispatcher ReportDispatcher
	channels   []notify.Channel
	history    HistorySink // may be nil
	log        logx.Logger

	now     func() time.Time
	running atomic.Bool
	state   atomic.Value // State
}

type Deps struct {
	Checker    Checker
	PM         PackageManager
	Runner     StepRunner
	Steps      []maintenance.StepDefinition
	Builder    report.Builder
	Dispatcher ReportDispatcher
	Channels   []notify.Channel
	History    HistorySink
	Log        logx.Logger
}

func New(d Deps) *Orchestrator {
	o := &Orchestrator{
		checker:    d.Checker,
		pm:         d.PM,
		runner:     d.Runner,
		steps:      d.Steps,
		builder:    d.Builder,
		dispatcher: d.Dispatcher,
		channels:   d.Channels,
		history:    d.History,
		log:        d.Log,
		now:        time.Now,
	}
	o.state.Store(StateIdle)
	return o
}

// Outcome is what one invocation produced.
type Outcome struct {
	Report     report.RunReport
	Deliveries []notify.DeliveryResult
}

// Delivered reports whether at least one enabled channel got the report
// (trivially true when none are configured).
func (out Outcome) Delivered() bool { return notify.Delivered(out.Deliveries) }

// State returns the last observed orchestrator state.
func (o *Orchestrator) State() State {
	s, _ := o.state.Load().(State)
	return s
}

func (o *Orchestrator) transition(s State) {
	o.state.Store(s)
	o.log.Debug("orchestrator state", logx.String("state", string(s)))
}

// RunOnce executes one full invocation. The returned error is reserved for
// catastrophic conditions (overlapping invocation, inability to construct
// a report); step failures, unmet preconditions, and channel failures are
// all data in the Outcome.
func (o *Orchestrator) RunOnce(ctx context.Context) (Outcome, error) {
	if !o.running.CompareAndSwap(false, true) {
		return Outcome{}, ErrBusy
	}
	defer o.running.Store(false)
	defer o.transition(StateIdle)

	started := o.now()
	o.transition(StateChecking)

	var (
		steps      []maintenance.Step
		skipReason string
		env        precheck.Result
	)

	// A missing package manager is fatal for the run itself, but the
	// report about it still goes out.
	if err := o.pm.Available(); err != nil {
		o.log.Error("package manager unavailable", logx.Err(err))
		o.transition(StateSkipped)
		skipReason = ReasonPackageMgr
	} else {
		env = o.checker.Evaluate(ctx)
		switch {
		case env.Satisfied:
			o.transition(StateRunning)
			o.log.Info("starting maintenance run", logx.Int("steps", len(o.steps)))
			steps = o.runner.Run(ctx, o.steps)
		case ctx.Err() != nil:
			o.transition(StateSkipped)
			skipReason = ReasonInterrupted
		default:
			o.transition(StateSkipped)
			skipReason = skipReasonFor(env)
			o.log.Warn("maintenance run skipped",
				logx.String("reason", skipReason),
				logx.Int("attempts", env.Attempts))
		}
	}

	o.transition(StateReporting)
	rep, err := o.buildReport(started, steps, skipReason, env)
	if err != nil {
		// Cannot even describe what happened; this is the one condition
		// allowed to escape as a process-level failure.
		return Outcome{}, err
	}

	o.transition(StateDispatching)
	// The report goes out even when the invocation context died during
	// precondition waiting; a cancelled context would fail every channel
	// before its transport is tried.
	dispatchCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		dispatchCtx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
	}
	results := o.dispatcher.Dispatch(dispatchCtx, rep, o.channels)

	o.persist(rep)

	o.transition(StateDone)
	return Outcome{Report: rep, Deliveries: results}, nil
}

func (o *Orchestrator) buildReport(started time.Time, steps []maintenance.Step, skipReason string, env precheck.Result) (report.RunReport, error) {
	rep, err := o.builder.Build(started, steps, skipReason)
	if err != nil {
		return report.RunReport{}, err
	}
	rep.Network = env.Network
	if env.Power.Source != "" {
		rep.Power = string(env.Power.Source)
	}
	return rep, nil
}

// persist is best-effort: history trouble is logged, never fatal, and must
// not interfere with the dispatch that already happened.
func (o *Orchestrator) persist(rep report.RunReport) {
	if o.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.history.Append(ctx, rep); err != nil {
		o.log.Warn("failed to persist run history", logx.Err(err))
		return
	}
	if n, err := o.history.Prune(ctx); err == nil && n > 0 {
		o.log.Debug("pruned old run history", logx.Int64("removed", n))
	}
}

// skipReasonFor names the gate that failed last; when both failed, the
// network gate wins (it is the one the user can usually do nothing about
// remotely, so it leads the message).
func skipReasonFor(env precheck.Result) string {
	if !env.NetworkOK {
		return ReasonNetwork
	}
	return ReasonPower
}
