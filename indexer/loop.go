package indexer

import (
	"context"
	"slices"
	"time"

	"github.com/hazyhaar/looma/dom"
	"github.com/hazyhaar/looma/locator"
)

// debouncer is a single-slot deadline: every arm pushes it back, and only
// a lapsed deadline fires.
type debouncer struct {
	window  time.Duration
	timer   *time.Timer
	timerCh <-chan time.Time
}

func (d *debouncer) arm() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.NewTimer(d.window)
	d.timerCh = d.timer.C
}

// timerC returns the channel that fires when the deadline lapses; nil
// (blocks forever) while disarmed.
func (d *debouncer) timerC() <-chan time.Time {
	return d.timerCh
}

func (d *debouncer) stop() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
		d.timerCh = nil
	}
}

// loop owns every scan after the first. It exits when ctx is cancelled.
func (e *Engine) loop(ctx context.Context, done chan struct{}, doc dom.Document, p locator.Profile, initial []Record) {
	defer close(done)

	e.notify(ReasonInitial, p.Name, initial)

	backstop := time.NewTicker(e.cfg.Backstop)
	defer backstop.Stop()
	deb := &debouncer{window: e.cfg.Debounce}
	defer deb.stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-e.changed:
			deb.arm()

		case <-deb.timerC():
			deb.stop()
			e.rescan(ctx, doc, p, ReasonMutation, false)

		case <-backstop.C:
			visible, err := doc.Visible(ctx)
			if err != nil {
				e.logger.Debug("indexer: visibility check failed", "error", err)
				continue
			}
			if visible {
				e.rescan(ctx, doc, p, ReasonBackstop, false)
			}

		case <-e.refresh:
			waiters := e.takeWaiters()
			if len(waiters) == 0 {
				continue
			}
			err := e.rescan(ctx, doc, p, ReasonRefresh, true)
			for _, w := range waiters {
				w <- err
			}
		}
	}
}

func (e *Engine) takeWaiters() []chan error {
	e.mu.Lock()
	defer e.mu.Unlock()
	w := e.waiters
	e.waiters = nil
	return w
}

// rescan runs one full scan and swaps it in. Without force, subscribers
// hear about it only when the number of records changed.
func (e *Engine) rescan(ctx context.Context, doc dom.Document, p locator.Profile, reason Reason, force bool) error {
	e.mu.Lock()
	if e.state != StateObserving {
		e.mu.Unlock()
		return ErrEngineDestroyed
	}
	e.state = StateRescanning
	prev := len(e.records)
	e.mu.Unlock()

	res, err := e.scan(ctx, doc, p)

	e.mu.Lock()
	if e.state == StateDestroyed {
		e.mu.Unlock()
		return ErrEngineDestroyed
	}
	e.state = StateObserving
	if err != nil {
		e.mu.Unlock()
		e.logger.Warn("indexer: rescan failed",
			"platform", p.Name, "reason", reason, "error", err)
		return &ErrScanFailed{Platform: p.Name, Cause: err}
	}
	e.commit(res)
	records := slices.Clone(res.records)
	e.mu.Unlock()

	if force || len(records) != prev {
		e.logger.Debug("indexer: index changed",
			"platform", p.Name, "reason", reason, "queries", len(records), "previous", prev)
		e.notify(reason, p.Name, records)
	}
	return nil
}
