package orchestrator

import (
	"context"

	"github.com/cenkalti/backoff/v4"

	mserrors "github.com/input-output-hk/macrosync/errors"
)

// Run calls PollCycle until ctx is cancelled, pausing Interval between
// cycles. With backoff enabled, consecutive aborted cycles stretch the pause
// up to Backoff.MaxInterval; a successful cycle restores Interval.
//
// Run returns nil once ctx is cancelled. Aborted cycles are retried; only a
// configuration error ends the loop early.
func (o *Orchestrator) Run(ctx context.Context) error {
	b := o.newBackOff()
	o.logger.Info("starting poll loop",
		"input", o.cfg.InputContainer,
		"output", o.cfg.OutputContainer,
		"interval", o.cfg.Interval)

	for {
		_, err := o.PollCycle(ctx)
		if ctx.Err() != nil {
			o.logger.Info("poll loop stopped")
			return nil
		}

		delay := o.cfg.Interval
		if err != nil {
			if mserrors.HasCode(err, mserrors.CodeInvalidConfig) {
				return err
			}
			delay = b.NextBackOff()
			if delay != o.cfg.Interval {
				o.logger.Warn("delaying next cycle after failure", "delay", delay)
			}
		} else {
			b.Reset()
		}

		select {
		case <-ctx.Done():
			o.logger.Info("poll loop stopped")
			return nil
		case <-o.after(delay):
		}
	}
}

func (o *Orchestrator) newBackOff() backoff.BackOff {
	if !o.cfg.Backoff.Enabled {
		return backoff.NewConstantBackOff(o.cfg.Interval)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.cfg.Interval
	b.Multiplier = o.cfg.Backoff.Multiplier
	b.MaxInterval = o.cfg.Backoff.MaxInterval
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
