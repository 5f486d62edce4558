package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"towerwatch/internal/classify"
	"towerwatch/internal/model"
	"towerwatch/internal/status"
)

// defaultParallelism bounds concurrent deliveries within one cycle.
const defaultParallelism = 8

// Result records the outcome of one recipient's delivery attempt.
type Result struct {
	Recipient string
	Status    model.Status
	Delivered bool
	Skipped   bool
	Err       error
}

// Dispatcher fans a snapshot out to notification recipients. Each
// recipient is re-evaluated against its own pattern set and debounced
// against its own last-notified status, so the notified status is
// recipient-specific rather than the globally computed one.
type Dispatcher struct {
	defaults    *classify.RuleSet
	channels    map[model.ChannelKind]Channel
	log         *slog.Logger
	parallelism int

	mu           sync.Mutex
	lastNotified map[string]model.Status
}

// NewDispatcher creates a Dispatcher using the global default rule set
// for recipients without a pattern override.
func NewDispatcher(defaults *classify.RuleSet, channels map[model.ChannelKind]Channel, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		defaults:     defaults,
		channels:     channels,
		log:          log,
		parallelism:  defaultParallelism,
		lastNotified: map[string]model.Status{},
	}
}

// SetParallelism overrides the delivery concurrency bound (testing and
// tuning).
func (d *Dispatcher) SetParallelism(n int) {
	if n > 0 {
		d.parallelism = n
	}
}

// Dispatch delivers at most one message per enabled recipient whose
// recipient-specific status changed since it was last notified. One
// recipient's failure or latency never delays or aborts another's
// delivery, and a failed delivery leaves the debounce state untouched so
// the next cycle re-attempts it.
func (d *Dispatcher) Dispatch(ctx context.Context, snap model.Snapshot, recipients []model.Recipient) []Result {
	results := make([]Result, len(recipients))

	g := &errgroup.Group{}
	g.SetLimit(d.parallelism)
	for i, r := range recipients {
		i, r := i, r
		g.Go(func() error {
			results[i] = d.dispatchOne(ctx, snap, r)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (d *Dispatcher) dispatchOne(ctx context.Context, snap model.Snapshot, r model.Recipient) Result {
	res := Result{Recipient: r.Key()}
	if !r.Enabled {
		res.Skipped = true
		return res
	}

	st, main, above, below := d.recipientView(snap, r)
	res.Status = st

	if st == d.last(r.Key()) {
		res.Skipped = true
		return res
	}

	ch, ok := d.channels[r.Channel]
	if !ok {
		res.Err = fmt.Errorf("channel %q not configured", r.Channel)
		d.log.Error("dispatch failed", "recipient", r.Key(), "channel", r.Channel, "error", res.Err)
		return res
	}

	msg := Render(st, main, above, below)
	if err := ch.Send(ctx, r, msg); err != nil {
		res.Err = err
		d.log.Error("delivery failed", "recipient", r.Key(), "channel", r.Channel, "status", st, "error", err)
		return res
	}

	d.setLast(r.Key(), st)
	res.Delivered = true
	d.log.Info("notification delivered", "recipient", r.Key(), "channel", r.Channel, "status", st)
	return res
}

// recipientView re-classifies the snapshot's raw controllers against the
// recipient's own pattern set. An error snapshot short-circuits: the
// status is unknown for every recipient regardless of patterns.
func (d *Dispatcher) recipientView(snap model.Snapshot, r model.Recipient) (model.Status, []model.Controller, []model.Controller, []model.Controller) {
	if snap.Status == model.StatusError {
		return model.StatusError, snap.Main, snap.Above, snap.Below
	}

	rules := d.defaults
	if r.Patterns != nil {
		rules = classify.Compile(*r.Patterns, d.log)
	}

	var main, above, below []model.Controller
	for _, c := range snap.All {
		m := rules.Classify(c.Callsign)
		if m.Main {
			main = append(main, c)
		}
		if m.Above {
			above = append(above, c)
		}
		if m.Below {
			below = append(below, c)
		}
	}
	return status.Derive(len(main) > 0, len(above) > 0), main, above, below
}

// last returns the recipient's last-notified status. Recipients start
// from all_offline, so a quiet network at startup produces no delivery.
func (d *Dispatcher) last(key string) model.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.lastNotified[key]; ok {
		return st
	}
	return model.StatusAllOffline
}

func (d *Dispatcher) setLast(key string, st model.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastNotified[key] = st
}
