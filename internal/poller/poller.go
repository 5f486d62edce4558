// Package poller drives the periodic check-and-notify cycle.
package poller

import (
	"context"
	"log/slog"
	"time"

	"towerwatch/internal/model"
	"towerwatch/internal/notify"
)

// minInterval is the enforced floor on the poll interval.
const minInterval = 30 * time.Second

// SnapshotCache is the poller's view of the snapshot cache.
type SnapshotCache interface {
	Refresh(ctx context.Context) (model.Snapshot, error)
}

// RecipientSource lists the account-backed recipients for one cycle.
// The poller takes a fresh listing every cycle so additions or removals
// mid-cycle never corrupt delivery.
type RecipientSource interface {
	ListEnabledRecipients(ctx context.Context) ([]model.Recipient, error)
}

// Notifier fans one cycle's snapshot out to recipients.
type Notifier interface {
	Dispatch(ctx context.Context, snap model.Snapshot, recipients []model.Recipient) []notify.Result
}

// Poller runs one fetch-evaluate-dispatch cycle per interval until its
// context is cancelled. A single cycle is in flight at a time: a tick
// that fires while a cycle overruns is skipped, never overlapped.
type Poller struct {
	cache    SnapshotCache
	source   RecipientSource
	notifier Notifier
	operator *model.Recipient // legacy static recipient, nil when unconfigured
	interval time.Duration
	log      *slog.Logger
}

// New creates a Poller. Intervals below the floor are raised to it.
func New(cache SnapshotCache, source RecipientSource, notifier Notifier, operator *model.Recipient, interval time.Duration, log *slog.Logger) *Poller {
	if interval < minInterval {
		interval = minInterval
	}
	return &Poller{
		cache:    cache,
		source:   source,
		notifier: notifier,
		operator: operator,
		interval: interval,
		log:      log,
	}
}

// SetInterval overrides the poll interval without the floor (testing).
func (p *Poller) SetInterval(d time.Duration) {
	p.interval = d
}

// Run starts the poll loop, blocking until ctx is cancelled. The first
// cycle runs immediately.
func (p *Poller) Run(ctx context.Context) {
	p.cycle(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		p.cycle(ctx)

		// Drop a tick that fired while the cycle ran.
		select {
		case <-ticker.C:
		default:
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	snap, err := p.cache.Refresh(ctx)
	if err != nil {
		p.log.Warn("presence feed check failed", "error", err)
	} else {
		p.log.Debug("presence feed checked", "status", snap.Status,
			"main", len(snap.Main), "supporting_above", len(snap.Above), "supporting_below", len(snap.Below))
	}

	recipients := p.recipients(ctx)
	if len(recipients) == 0 {
		return
	}

	results := p.notifier.Dispatch(ctx, snap, recipients)

	delivered, failed := 0, 0
	for _, res := range results {
		switch {
		case res.Delivered:
			delivered++
		case res.Err != nil:
			failed++
		}
	}
	if delivered > 0 || failed > 0 {
		p.log.Info("dispatch cycle complete", "status", snap.Status, "delivered", delivered, "failed", failed)
	}
}

// recipients assembles this cycle's fan-out list: the operator recipient
// plus a fresh listing from the account store.
func (p *Poller) recipients(ctx context.Context) []model.Recipient {
	var rs []model.Recipient
	if p.operator != nil {
		rs = append(rs, *p.operator)
	}
	accounts, err := p.source.ListEnabledRecipients(ctx)
	if err != nil {
		p.log.Error("list recipients", "error", err)
		return rs
	}
	return append(rs, accounts...)
}
