// Package precheck decides whether the environment permits an unattended
// maintenance run: the machine must be on the expected network and on an
// acceptable power source. Both gates are re-sampled together on every
// attempt; indeterminate readings count as unsatisfied (fail-safe: never
// run destructive maintenance on a guess).
package precheck

import (
	"context"
	"time"

	"github.com/DJCastle/homeBrewScripts/internal/probe"
	"github.com/DJCastle/homeBrewScripts/pkg/logx"
)

type Config struct {
	// RequiredNetwork is the SSID that must be joined. Empty means any
	// network is acceptable and the network gate auto-satisfies.
	RequiredNetwork string

	// RequireACPower demands mains power; battery charge is irrelevant.
	RequireACPower bool
	// MinBatteryPercent, when > 0 and RequireACPower is false, lets a
	// sufficiently charged battery satisfy the power gate too.
	MinBatteryPercent int

	// MaxAttempts polls before giving up (min 1).
	MaxAttempts int
	// RetryDelay between polls. Sleeping happens only between attempts,
	// never after the final one.
	RetryDelay time.Duration
}

// Result is the outcome of one Evaluate call. Exhausting attempts is a
// normal outcome (Satisfied=false), not an error.
type Result struct {
	Satisfied bool
	Attempts  int

	Network   string // last observed SSID ("" when unknown)
	NetworkOK bool
	Power     probe.PowerStatus
	PowerOK   bool

	CheckedAt time.Time
}

type Checker struct {
	cfg     Config
	network probe.NetworkProber
	power   probe.PowerProber
	log     logx.Logger

	// sleep and now are injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func New(cfg Config, network probe.NetworkProber, power probe.PowerProber, log logx.Logger) *Checker {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Checker{
		cfg:     cfg,
		network: network,
		power:   power,
		log:     log,
		sleep:   sleepCtx,
		now:     time.Now,
	}
}

// Evaluate polls until both gates pass on the same attempt or attempts run
// out. Context cancellation cuts the wait short and returns the latest
// (unsatisfied) result.
func (c *Checker) Evaluate(ctx context.Context) Result {
	var res Result
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		res = c.sample(ctx)
		res.Attempts = attempt
		if res.Satisfied {
			c.log.Info("preconditions satisfied",
				logx.Int("attempt", attempt),
				logx.String("network", res.Network),
				logx.String("power", string(res.Power.Source)))
			return res
		}

		c.log.Warn("preconditions not met",
			logx.Int("attempt", attempt),
			logx.Int("max_attempts", c.cfg.MaxAttempts),
			logx.Bool("network_ok", res.NetworkOK),
			logx.String("network", res.Network),
			logx.Bool("power_ok", res.PowerOK),
			logx.String("power", string(res.Power.Source)))

		if attempt == c.cfg.MaxAttempts {
			break
		}
		if err := c.sleep(ctx, c.cfg.RetryDelay); err != nil {
			// Cancelled mid-wait; report what we have.
			return res
		}
	}
	return res
}

// sample takes one reading of both gates.
func (c *Checker) sample(ctx context.Context) Result {
	res := Result{CheckedAt: c.now(), Power: probe.PowerStatus{Source: probe.PowerUnknown, BatteryPercent: -1}}

	if c.network != nil {
		if ssid, err := c.network.CurrentNetworkID(ctx); err == nil {
			res.Network = ssid
		}
	}
	res.NetworkOK = c.cfg.RequiredNetwork == "" ||
		(res.Network != "" && res.Network == c.cfg.RequiredNetwork)

	if c.power != nil {
		if st, err := c.power.CurrentPower(ctx); err == nil {
			res.Power = st
		}
	}
	res.PowerOK = c.powerSatisfied(res.Power)

	res.Satisfied = res.NetworkOK && res.PowerOK
	return res
}

func (c *Checker) powerSatisfied(st probe.PowerStatus) bool {
	switch {
	case c.cfg.RequireACPower:
		return st.Source == probe.PowerAC
	case c.cfg.MinBatteryPercent > 0:
		if st.Source == probe.PowerAC {
			return true
		}
		return st.Source == probe.PowerBattery && st.BatteryPercent >= c.cfg.MinBatteryPercent
	default:
		return true
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
