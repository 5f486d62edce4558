// Package status derives and caches the categorized coverage snapshot.
package status

import (
	"context"
	"strconv"
	"time"

	"towerwatch/internal/classify"
	"towerwatch/internal/model"
)

// NameResolver resolves a controller CID to a roster display name.
// An empty result means no roster entry exists.
type NameResolver interface {
	Resolve(ctx context.Context, cid int) string
}

// Evaluate classifies the fetched controllers against a rule set and
// derives the aggregate status. Controllers on the inactive placeholder
// frequency are dropped; a controller matching several categories appears
// in each matching list.
func Evaluate(ctx context.Context, controllers []model.Controller, rules *classify.RuleSet, resolver NameResolver, now time.Time) model.Snapshot {
	snap := model.Snapshot{FetchedAt: now}
	for _, c := range controllers {
		if !c.Active() {
			continue
		}
		c.DisplayName = displayName(ctx, resolver, c)
		snap.All = append(snap.All, c)

		m := rules.Classify(c.Callsign)
		if m.Main {
			snap.Main = append(snap.Main, c)
		}
		if m.Above {
			snap.Above = append(snap.Above, c)
		}
		if m.Below {
			snap.Below = append(snap.Below, c)
		}
	}
	snap.Status = Derive(len(snap.Main) > 0, len(snap.Above) > 0)
	return snap
}

// Derive returns the aggregate status for the given category occupancy,
// first match wins. Supporting-below coverage is informational only and
// never affects the aggregate.
func Derive(mainOnline, aboveOnline bool) model.Status {
	switch {
	case mainOnline && aboveOnline:
		return model.StatusMainAndAboveOnline
	case mainOnline:
		return model.StatusMainOnline
	case aboveOnline:
		return model.StatusAboveOnline
	default:
		return model.StatusAllOffline
	}
}

// ErrorSnapshot labels a failed poll cycle. The previous snapshot's
// category lists are kept stale-but-labeled so callers can tell "unknown
// due to fetch failure" from "definitely nobody online".
func ErrorSnapshot(prev model.Snapshot, err error, now time.Time) model.Snapshot {
	snap := prev
	snap.Status = model.StatusError
	snap.Err = err.Error()
	snap.FetchedAt = now
	return snap
}

// displayName picks the best available name: roster entry, then the
// feed-supplied name, then the bare CID.
func displayName(ctx context.Context, resolver NameResolver, c model.Controller) string {
	if resolver != nil {
		if name := resolver.Resolve(ctx, c.CID); name != "" {
			return name
		}
	}
	if name := c.Name; name != "" && !allDigits(name) && len(name) > 2 {
		return name
	}
	return strconv.Itoa(c.CID)
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
