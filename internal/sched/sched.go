// Package sched triggers maintenance runs on a cron spec for daemon mode.
// One-shot mode (the default, for launchd/cron-driven setups) never touches
// this package.
package sched

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"github.com/DJCastle/homeBrewScripts/pkg/logx"
)

type Config struct {
	// Spec is a 5-field cron expression or a descriptor like "@daily".
	Spec string
	// Timezone for the spec; empty means the system local zone.
	Timezone string
}

type Service struct {
	c    *cron.Cron
	spec string
	log  logx.Logger
	run  func()

	entry cron.EntryID
}

// New validates the spec eagerly so a bad config fails at startup, not at
// the first missed trigger.
func New(cfg Config, log logx.Logger, run func()) (*Service, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	spec := strings.TrimSpace(cfg.Spec)
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("schedule spec %q: %w", cfg.Spec, err)
	}

	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("schedule timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}

	s := &Service{
		c:    cron.New(cron.WithParser(parser), cron.WithLocation(loc)),
		spec: spec,
		log:  log,
		run:  run,
	}
	id, err := s.c.AddFunc(spec, s.fire)
	if err != nil {
		return nil, fmt.Errorf("schedule spec %q: %w", cfg.Spec, err)
	}
	s.entry = id
	return s, nil
}

func (s *Service) fire() {
	s.log.Info("schedule fired", logx.String("spec", s.spec))
	s.run()
	s.log.Info("next run scheduled", logx.Time("at", s.Next()))
}

// Start begins triggering and tells systemd (when present) that the
// service is ready. SdNotify is a no-op outside a systemd unit.
func (s *Service) Start() {
	s.c.Start()
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err == nil && sent {
		s.log.Debug("systemd notified ready")
	}
	s.log.Info("schedule started",
		logx.String("spec", s.spec),
		logx.Time("next", s.Next()))
}

// Stop halts triggering and waits for an in-flight run to finish, bounded
// by ctx.
func (s *Service) Stop(ctx context.Context) {
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err == nil && sent {
		s.log.Debug("systemd notified stopping")
	}
	stopCtx := s.c.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		s.log.Warn("gave up waiting for in-flight run during shutdown")
	}
}

// Next returns the next trigger time (zero when not started).
func (s *Service) Next() time.Time {
	return s.c.Entry(s.entry).Next
}
