// Package notify delivers a finished RunReport across independently
// configured channels. Channels are isolated from each other the same way
// maintenance steps are: one transport failing never stops the others from
// being attempted, so a run is only silent when every channel is down.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/DJCastle/homeBrewScripts/internal/report"
	"github.com/DJCastle/homeBrewScripts/pkg/logx"
)

// Channel is one configured delivery target. Implementations are
// constructed from config at process start and must be safe to reuse
// across runs.
type Channel interface {
	ID() string
	Enabled() bool
	Deliver(ctx context.Context, rep report.RunReport) error
}

// DeliveryResult records one channel's attempt. A disabled channel is
// OK+Skipped: turning a channel off is configuration, not an error.
type DeliveryResult struct {
	Channel string
	OK      bool
	Skipped bool
	Err     error
}

type Dispatcher struct {
	// SendTimeout bounds each channel's delivery attempt; 0 disables it.
	// A timeout is an ordinary failure for that channel.
	SendTimeout time.Duration

	Log logx.Logger
}

func NewDispatcher(sendTimeout time.Duration, log logx.Logger) *Dispatcher {
	return &Dispatcher{SendTimeout: sendTimeout, Log: log}
}

// Dispatch attempts every channel and returns one result per channel, in
// input order. Each channel's delivery completes (or fails) before its
// result is recorded.
func (d *Dispatcher) Dispatch(ctx context.Context, rep report.RunReport, channels []Channel) []DeliveryResult {
	results := make([]DeliveryResult, 0, len(channels))
	for _, ch := range channels {
		res := DeliveryResult{Channel: ch.ID()}
		if !ch.Enabled() {
			res.OK = true
			res.Skipped = true
			d.Log.Debug("notification channel disabled, skipping", logx.String("channel", ch.ID()))
			results = append(results, res)
			continue
		}

		err := d.deliverOne(ctx, ch, rep)
		if err != nil {
			res.Err = err
			d.Log.Warn("notification delivery failed",
				logx.String("channel", ch.ID()), logx.Err(err))
		} else {
			res.OK = true
			d.Log.Info("notification delivered", logx.String("channel", ch.ID()))
		}
		results = append(results, res)
	}
	return results
}

func (d *Dispatcher) deliverOne(ctx context.Context, ch Channel, rep report.RunReport) (err error) {
	if d.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.SendTimeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("channel %s panicked: %v", ch.ID(), rec)
		}
	}()
	return ch.Deliver(ctx, rep)
}

// Delivered reports whether the dispatch reached the user: trivially true
// with no channels configured, otherwise at least one non-skipped success
// or every channel skipped.
func Delivered(results []DeliveryResult) bool {
	if len(results) == 0 {
		return true
	}
	allSkipped := true
	for _, r := range results {
		if r.OK && !r.Skipped {
			return true
		}
		if !r.Skipped {
			allSkipped = false
		}
	}
	return allSkipped
}
