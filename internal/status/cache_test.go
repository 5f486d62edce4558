package status

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"towerwatch/internal/model"
)

// fakeFetcher serves canned results and counts upstream calls. An
// optional gate blocks every fetch until released, which lets tests pile
// up concurrent refreshers.
type fakeFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   atomic.Int64
	gate    chan struct{}
}

type fetchResult struct {
	controllers []model.Controller
	err         error
}

func (f *fakeFetcher) Fetch(_ context.Context) ([]model.Controller, error) {
	n := f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := int(n) - 1
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i].controllers, f.results[i].err
}

func TestCacheGetWithinTTL(t *testing.T) {
	fetcher := &fakeFetcher{results: []fetchResult{
		{controllers: []model.Controller{{Callsign: "OAK_TWR", Frequency: "120.800"}}},
	}}
	c := NewCache(fetcher, defaultRules(t), nil, discardLogger())

	first := c.Get(context.Background(), time.Minute)
	second := c.Get(context.Background(), time.Minute)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("snapshots within TTL should be identical (-want +got):\n%s", diff)
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("expected a single upstream fetch within the TTL, got %d", got)
	}
}

func TestCacheGetExpired(t *testing.T) {
	fetcher := &fakeFetcher{results: []fetchResult{
		{controllers: []model.Controller{{Callsign: "OAK_TWR", Frequency: "120.800"}}},
		{controllers: []model.Controller{{Callsign: "NCT_APP", Frequency: "135.650"}}},
	}}
	c := NewCache(fetcher, defaultRules(t), nil, discardLogger())

	c.Get(context.Background(), 0)
	snap := c.Get(context.Background(), 0)

	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("expected a refresh per expired Get, got %d fetches", got)
	}
	if snap.Status != model.StatusAboveOnline {
		t.Errorf("status = %q, want %q", snap.Status, model.StatusAboveOnline)
	}
}

func TestCacheSingleFlight(t *testing.T) {
	fetcher := &fakeFetcher{
		results: []fetchResult{
			{controllers: []model.Controller{{Callsign: "OAK_TWR", Frequency: "120.800"}}},
		},
		gate: make(chan struct{}),
	}
	c := NewCache(fetcher, defaultRules(t), nil, discardLogger())

	const n = 8
	var wg sync.WaitGroup
	snaps := make([]model.Snapshot, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snaps[i], _ = c.Refresh(context.Background())
		}(i)
	}

	// Wait for the first refresher to reach the upstream call, give the
	// rest time to join the in-flight refresh, then let everyone through.
	for fetcher.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(fetcher.gate)
	wg.Wait()

	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("expected concurrent refreshes to collapse into 1 fetch, got %d", got)
	}
	for i := 1; i < n; i++ {
		if diff := cmp.Diff(snaps[0], snaps[i]); diff != "" {
			t.Errorf("caller %d got a different snapshot (-want +got):\n%s", i, diff)
		}
	}
}

func TestCacheRefreshFailure(t *testing.T) {
	fetchErr := errors.New("connection refused")
	fetcher := &fakeFetcher{results: []fetchResult{
		{controllers: []model.Controller{{Callsign: "OAK_TWR", Frequency: "120.800"}}},
		{err: fetchErr},
		{controllers: []model.Controller{{Callsign: "OAK_TWR", Frequency: "120.800"}}},
	}}
	c := NewCache(fetcher, defaultRules(t), nil, discardLogger())

	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error on first refresh: %v", err)
	}

	snap, err := c.Refresh(context.Background())
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected the fetch error to surface, got %v", err)
	}
	if snap.Status != model.StatusError {
		t.Errorf("status = %q, want %q", snap.Status, model.StatusError)
	}
	if diff := cmp.Diff([]string{"OAK_TWR"}, callsigns(snap.Main)); diff != "" {
		t.Errorf("previous main list should survive the failure (-want +got):\n%s", diff)
	}
	if snap.Err == "" {
		t.Error("expected the error text to be recorded on the snapshot")
	}

	// Recovery on the next successful refresh.
	snap, err = c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("unexpected error on recovery refresh: %v", err)
	}
	if snap.Status != model.StatusMainOnline {
		t.Errorf("recovered status = %q, want %q", snap.Status, model.StatusMainOnline)
	}
	if snap.Err != "" {
		t.Errorf("recovered snapshot still carries error %q", snap.Err)
	}
}

func TestCacheGetDegradesOnFailure(t *testing.T) {
	fetcher := &fakeFetcher{results: []fetchResult{
		{err: errors.New("connection refused")},
	}}
	c := NewCache(fetcher, defaultRules(t), nil, discardLogger())

	snap := c.Get(context.Background(), time.Minute)
	if snap.Status != model.StatusError {
		t.Errorf("status = %q, want %q", snap.Status, model.StatusError)
	}
}

func TestCacheCurrent(t *testing.T) {
	fetcher := &fakeFetcher{results: []fetchResult{{}}}
	c := NewCache(fetcher, defaultRules(t), nil, discardLogger())

	if _, ok := c.Current(); ok {
		t.Error("expected no snapshot before the first refresh")
	}

	c.Refresh(context.Background())
	snap, ok := c.Current()
	if !ok {
		t.Fatal("expected a snapshot after refresh")
	}
	if snap.Status != model.StatusAllOffline {
		t.Errorf("status = %q, want %q", snap.Status, model.StatusAllOffline)
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("Current must not fetch, got %d calls", got)
	}
}
