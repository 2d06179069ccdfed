package precheck

import (
	"context"
	"testing"
	"time"

	"github.com/DJCastle/homeBrewScripts/internal/probe"
	"github.com/DJCastle/homeBrewScripts/pkg/logx"
)

type fakeNetwork struct {
	ssids []string
	calls int
}

func (f *fakeNetwork) CurrentNetworkID(ctx context.Context) (string, error) {
	i := f.calls
	f.calls++
	if i >= len(f.ssids) {
		i = len(f.ssids) - 1
	}
	if i < 0 {
		return "", nil
	}
	return f.ssids[i], nil
}

type fakePower struct {
	states []probe.PowerStatus
	calls  int
}

func (f *fakePower) CurrentPower(ctx context.Context) (probe.PowerStatus, error) {
	i := f.calls
	f.calls++
	if i >= len(f.states) {
		i = len(f.states) - 1
	}
	if i < 0 {
		return probe.PowerStatus{Source: probe.PowerUnknown, BatteryPercent: -1}, nil
	}
	return f.states[i], nil
}

func newTestChecker(cfg Config, net *fakeNetwork, pow *fakePower) (*Checker, *[]time.Duration) {
	c := New(cfg, net, pow, logx.Nop())
	sleeps := &[]time.Duration{}
	c.sleep = func(ctx context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return c, sleeps
}

func TestNoRequirementsSatisfiedFirstAttempt(t *testing.T) {
	c, sleeps := newTestChecker(Config{MaxAttempts: 3, RetryDelay: 5 * time.Minute},
		&fakeNetwork{}, &fakePower{})
	res := c.Evaluate(context.Background())
	if !res.Satisfied {
		t.Fatalf("expected satisfied with no requirements")
	}
	if res.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", res.Attempts)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("should not sleep when satisfied immediately")
	}
}

func TestNetworkMismatchExhaustsAttempts(t *testing.T) {
	net := &fakeNetwork{ssids: []string{"CoffeeShop"}}
	c, sleeps := newTestChecker(Config{RequiredNetwork: "CastleGhost", MaxAttempts: 3, RetryDelay: 5 * time.Minute},
		net, &fakePower{states: []probe.PowerStatus{{Source: probe.PowerAC, BatteryPercent: 100}}})

	res := c.Evaluate(context.Background())
	if res.Satisfied {
		t.Fatalf("expected unsatisfied")
	}
	if res.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", res.Attempts)
	}
	if res.NetworkOK || !res.PowerOK {
		t.Fatalf("expected network gate to be the failing one: %+v", res)
	}
	// Sleeping happens only between attempts, never after the final one.
	if len(*sleeps) != 2 {
		t.Fatalf("sleeps = %d, want 2", len(*sleeps))
	}
	if net.calls != 3 {
		t.Fatalf("network polled %d times, want 3", net.calls)
	}
}

func TestSatisfiedOnLaterAttempt(t *testing.T) {
	net := &fakeNetwork{ssids: []string{"", "", "CastleGhost"}}
	c, sleeps := newTestChecker(Config{RequiredNetwork: "CastleGhost", MaxAttempts: 3, RetryDelay: time.Minute},
		net, &fakePower{})
	res := c.Evaluate(context.Background())
	if !res.Satisfied {
		t.Fatalf("expected satisfied on third attempt")
	}
	if res.Attempts != 3 || len(*sleeps) != 2 {
		t.Fatalf("attempts=%d sleeps=%d, want 3/2", res.Attempts, len(*sleeps))
	}
	if res.Network != "CastleGhost" {
		t.Fatalf("network = %q", res.Network)
	}
}

func TestUnknownNetworkIsNotAnyNetwork(t *testing.T) {
	// Interface absent/disabled: observed SSID stays "", which must not
	// satisfy a concrete requirement.
	c, _ := newTestChecker(Config{RequiredNetwork: "CastleGhost", MaxAttempts: 1}, &fakeNetwork{}, &fakePower{})
	res := c.Evaluate(context.Background())
	if res.NetworkOK {
		t.Fatalf("unknown network must not satisfy a required SSID")
	}
}

func TestPowerPolicies(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		st   probe.PowerStatus
		want bool
	}{
		{"ac required on ac", Config{RequireACPower: true}, probe.PowerStatus{Source: probe.PowerAC, BatteryPercent: 50}, true},
		{"ac required on battery", Config{RequireACPower: true}, probe.PowerStatus{Source: probe.PowerBattery, BatteryPercent: 100}, false},
		{"ac required unknown", Config{RequireACPower: true}, probe.PowerStatus{Source: probe.PowerUnknown, BatteryPercent: -1}, false},
		{"threshold met", Config{MinBatteryPercent: 50}, probe.PowerStatus{Source: probe.PowerBattery, BatteryPercent: 80}, true},
		{"threshold missed", Config{MinBatteryPercent: 50}, probe.PowerStatus{Source: probe.PowerBattery, BatteryPercent: 30}, false},
		{"threshold on ac", Config{MinBatteryPercent: 50}, probe.PowerStatus{Source: probe.PowerAC, BatteryPercent: 10}, true},
		{"threshold unknown", Config{MinBatteryPercent: 50}, probe.PowerStatus{Source: probe.PowerUnknown, BatteryPercent: -1}, false},
		{"no policy", Config{}, probe.PowerStatus{Source: probe.PowerUnknown, BatteryPercent: -1}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.MaxAttempts = 1
			c, _ := newTestChecker(tc.cfg, &fakeNetwork{}, &fakePower{states: []probe.PowerStatus{tc.st}})
			res := c.Evaluate(context.Background())
			if res.PowerOK != tc.want {
				t.Fatalf("power ok = %v, want %v (%+v)", res.PowerOK, tc.want, res)
			}
		})
	}
}

func TestCancelledDuringWaitReturnsEarly(t *testing.T) {
	net := &fakeNetwork{ssids: []string{"Elsewhere"}}
	c := New(Config{RequiredNetwork: "CastleGhost", MaxAttempts: 5, RetryDelay: time.Minute},
		net, &fakePower{}, logx.Nop())
	c.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}
	res := c.Evaluate(context.Background())
	if res.Satisfied {
		t.Fatalf("expected unsatisfied")
	}
	if res.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (cancelled in first wait)", res.Attempts)
	}
}
