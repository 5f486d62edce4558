// Package roster resolves controller CIDs to display names using a
// periodically refreshed copy of the ARTCC roster page.
package roster

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Resolver caches the roster's CID-to-name table behind its own TTL,
// independent of the snapshot cache. Names are cosmetic: every failure
// mode degrades to empty lookups and never blocks status computation.
type Resolver struct {
	client  HTTPClient
	url     string
	ttl     time.Duration
	timeout time.Duration
	log     *slog.Logger

	mu        sync.Mutex
	names     map[string]string
	checkedAt time.Time
}

// New creates a Resolver. An empty url disables roster lookups entirely.
func New(client HTTPClient, url string, ttl time.Duration, log *slog.Logger) *Resolver {
	return &Resolver{
		client:  client,
		url:     url,
		ttl:     ttl,
		timeout: 10 * time.Second,
		log:     log,
		names:   map[string]string{},
	}
}

// Resolve returns the roster display name for a CID, or "" when the CID
// has no roster entry or the roster is unavailable.
func (r *Resolver) Resolve(ctx context.Context, cid int) string {
	if r.url == "" {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked(ctx)
	return r.names[strconv.Itoa(cid)]
}

// refreshLocked re-downloads the roster when the cached copy is older
// than the TTL. The attempt timestamp advances even on failure so a dead
// roster host is retried once per TTL, not on every lookup; a failed
// refresh keeps serving the last good table.
func (r *Resolver) refreshLocked(ctx context.Context) {
	if time.Since(r.checkedAt) < r.ttl && !r.checkedAt.IsZero() {
		return
	}
	r.checkedAt = time.Now()

	names, err := r.download(ctx)
	if err != nil {
		r.log.Warn("roster refresh failed, keeping previous roster", "url", r.url, "error", err)
		return
	}
	r.names = names
	r.log.Info("roster loaded", "entries", len(names))
}

func (r *Resolver) download(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "TowerWatch/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse roster page: %w", err)
	}
	return parseRoster(doc), nil
}

// parseRoster scans every table row for a cell that looks like a CID
// (6+ digits) and pairs it with the nearest adjacent cell that looks
// like a name.
func parseRoster(doc *goquery.Document) map[string]string {
	names := map[string]string{}
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		texts := make([]string, 0, cells.Length())
		cells.Each(func(_ int, cell *goquery.Selection) {
			texts = append(texts, strings.TrimSpace(cell.Text()))
		})
		for i, text := range texts {
			if !looksLikeCID(text) {
				continue
			}
			for j := max(0, i-2); j < min(len(texts), i+3); j++ {
				if j == i {
					continue
				}
				if name := cleanName(texts[j]); name != "" {
					names[text] = name
					break
				}
			}
			break
		}
	})
	return names
}

func looksLikeCID(s string) bool {
	if len(s) < 6 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

var (
	spaceRe     = regexp.MustCompile(`\s+`)
	lastFirstRe = regexp.MustCompile(`^([^,]+),\s*([^(]+)(?:\(([^)]*)\))?`)
)

// cleanName normalizes a roster cell into a display name, converting the
// "Last, First (OI)" roster format to "First Last". Returns "" for cells
// that do not look like a name.
func cleanName(s string) string {
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	if len(s) <= 2 || strings.ContainsAny(s[:3], "0123456789") {
		return ""
	}
	if m := lastFirstRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[2]) + " " + strings.TrimSpace(m[1])
	}
	return s
}
