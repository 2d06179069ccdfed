package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/DJCastle/homeBrewScripts/internal/maintenance"
	"github.com/DJCastle/homeBrewScripts/internal/report"
	"github.com/DJCastle/homeBrewScripts/pkg/logx"
)

type fakeChannel struct {
	id       string
	enabled  bool
	err      error
	panicMsg string
	calls    int
}

func (f *fakeChannel) ID() string    { return f.id }
func (f *fakeChannel) Enabled() bool { return f.enabled }
func (f *fakeChannel) Deliver(ctx context.Context, rep report.RunReport) error {
	f.calls++
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.err
}

func sampleReport() report.RunReport {
	return report.RunReport{
		Host:       "imac",
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
		Steps: []maintenance.Step{
			{Name: maintenance.StepRefreshIndex, Outcome: maintenance.OutcomeSucceeded, Log: "Already up-to-date."},
			{Name: maintenance.StepUpgradePkgs, Outcome: maintenance.OutcomeFailed, Log: "Error: some formula broke"},
		},
		SuccessCount: 1,
		FailureCount: 1,
	}
}

func TestDispatchChannelIsolation(t *testing.T) {
	// Scenario: two channels enabled, one transport errors. Both must be
	// attempted and both must be reported.
	good := &fakeChannel{id: "telegram", enabled: true}
	bad := &fakeChannel{id: "email", enabled: true, err: errors.New("smtp down")}

	d := NewDispatcher(0, logx.Nop())
	results := d.Dispatch(context.Background(), sampleReport(), []Channel{bad, good})
	if len(results) != 2 {
		t.Fatalf("results len = %d, want 2", len(results))
	}
	if results[0].OK || results[0].Err == nil {
		t.Fatalf("failing channel not recorded: %+v", results[0])
	}
	if !results[1].OK {
		t.Fatalf("good channel should succeed: %+v", results[1])
	}
	if good.calls != 1 {
		t.Fatalf("good channel attempted %d times, want 1", good.calls)
	}
}

func TestDispatchPanicIsolation(t *testing.T) {
	boom := &fakeChannel{id: "telegram", enabled: true, panicMsg: "transport bug"}
	next := &fakeChannel{id: "email", enabled: true}

	d := NewDispatcher(0, logx.Nop())
	results := d.Dispatch(context.Background(), sampleReport(), []Channel{boom, next})
	if results[0].OK || results[0].Err == nil {
		t.Fatalf("panicking channel must surface as failure: %+v", results[0])
	}
	if next.calls != 1 {
		t.Fatalf("panic must not prevent later channels")
	}
}

func TestDispatchDisabledChannelSkipped(t *testing.T) {
	off := &fakeChannel{id: "email", enabled: false}
	d := NewDispatcher(0, logx.Nop())
	results := d.Dispatch(context.Background(), sampleReport(), []Channel{off})
	if len(results) != 1 {
		t.Fatalf("results len = %d", len(results))
	}
	r := results[0]
	if !r.OK || !r.Skipped || r.Err != nil {
		t.Fatalf("disabled channel should be ok+skipped: %+v", r)
	}
	if off.calls != 0 {
		t.Fatalf("disabled channel must never be attempted")
	}
}

func TestDelivered(t *testing.T) {
	cases := []struct {
		name    string
		results []DeliveryResult
		want    bool
	}{
		{"no channels", nil, true},
		{"one ok", []DeliveryResult{{Channel: "telegram", OK: true}}, true},
		{"one failed", []DeliveryResult{{Channel: "telegram", Err: errors.New("x")}}, false},
		{"failed plus ok", []DeliveryResult{{Err: errors.New("x")}, {OK: true}}, true},
		{"all skipped", []DeliveryResult{{OK: true, Skipped: true}}, true},
		{"skipped plus failed", []DeliveryResult{{OK: true, Skipped: true}, {Err: errors.New("x")}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Delivered(tc.results); got != tc.want {
				t.Fatalf("Delivered = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEmailChannelBuildsMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	ch := NewEmail(EmailConfig{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    2525,
		From:    "brewmaint@example.com",
		To:      []string{"me@example.com"},
	}, logx.Nop())
	ch.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	if err := ch.Deliver(context.Background(), sampleReport()); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if gotAddr != "smtp.example.com:2525" {
		t.Fatalf("addr = %q", gotAddr)
	}
	if gotFrom != "brewmaint@example.com" || len(gotTo) != 1 {
		t.Fatalf("envelope wrong: %q %v", gotFrom, gotTo)
	}
	msg := string(gotMsg)
	if !strings.Contains(msg, "Subject: [brewmaint] imac: 1 of 2 steps failed") {
		t.Fatalf("subject missing from message:\n%s", msg)
	}
	if !strings.Contains(msg, maintenance.StepUpgradePkgs) {
		t.Fatalf("detailed body should name the failed step:\n%s", msg)
	}
}

func TestEmailChannelHonorsContext(t *testing.T) {
	ch := NewEmail(EmailConfig{Enabled: true, Host: "smtp.example.com", From: "a@b", To: []string{"c@d"}}, logx.Nop())
	ch.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		time.Sleep(time.Second)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := ch.Deliver(ctx, sampleReport()); err == nil {
		t.Fatalf("expected timeout error")
	}
}
