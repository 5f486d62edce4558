package roster

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type step struct {
	body       string
	statusCode int
	err        error
}

// seqTransport serves a fixed sequence of responses, repeating the last.
type seqTransport struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (s *seqTransport) Do(_ *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	st := s.steps[i]
	if st.err != nil {
		return nil, st.err
	}
	return &http.Response{
		StatusCode: st.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(st.body)),
	}, nil
}

func (s *seqTransport) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func loadFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/roster.html")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return string(data)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolve(t *testing.T) {
	html := loadFixture(t)

	tests := []struct {
		name string
		cid  int
		want string
	}{
		{name: "last-first format normalized", cid: 1234567, want: "John Smith"},
		{name: "last-first without initials", cid: 3456789, want: "Maria Garcia"},
		{name: "plain name kept as is", cid: 7654321, want: "Nakamura Kenji"},
		{name: "unknown cid", cid: 9999999, want: ""},
		{name: "short numeric cell ignored", cid: 42, want: ""},
	}

	transport := &seqTransport{steps: []step{{body: html, statusCode: 200}}}
	r := New(transport, "https://artcc.example.org/roster", time.Hour, discardLogger())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(context.Background(), tt.cid)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Resolve(%d) mismatch (-want +got):\n%s", tt.cid, diff)
			}
		})
	}

	if transport.callCount() != 1 {
		t.Errorf("expected a single roster download within the TTL, got %d", transport.callCount())
	}
}

func TestResolveUnreachableRoster(t *testing.T) {
	transport := &seqTransport{steps: []step{{err: io.ErrUnexpectedEOF}}}
	r := New(transport, "https://artcc.example.org/roster", time.Hour, discardLogger())

	if got := r.Resolve(context.Background(), 1234567); got != "" {
		t.Errorf("expected empty name from unreachable roster, got %q", got)
	}
}

func TestResolveErrorStatus(t *testing.T) {
	transport := &seqTransport{steps: []step{{body: "oops", statusCode: 500}}}
	r := New(transport, "https://artcc.example.org/roster", time.Hour, discardLogger())

	if got := r.Resolve(context.Background(), 1234567); got != "" {
		t.Errorf("expected empty name from failing roster, got %q", got)
	}
}

func TestRefreshFailureKeepsLastGoodRoster(t *testing.T) {
	html := loadFixture(t)
	transport := &seqTransport{steps: []step{
		{body: html, statusCode: 200},
		{err: io.ErrUnexpectedEOF},
	}}
	// Zero TTL forces a refresh attempt on every lookup.
	r := New(transport, "https://artcc.example.org/roster", 0, discardLogger())

	if got := r.Resolve(context.Background(), 1234567); got != "John Smith" {
		t.Fatalf("initial resolve = %q, want %q", got, "John Smith")
	}
	if got := r.Resolve(context.Background(), 1234567); got != "John Smith" {
		t.Errorf("resolve after failed refresh = %q, want last good %q", got, "John Smith")
	}
	if transport.callCount() < 2 {
		t.Errorf("expected a refresh attempt after TTL lapse, got %d calls", transport.callCount())
	}
}

func TestResolveDisabled(t *testing.T) {
	transport := &seqTransport{steps: []step{{body: "unused", statusCode: 200}}}
	r := New(transport, "", time.Hour, discardLogger())

	if got := r.Resolve(context.Background(), 1234567); got != "" {
		t.Errorf("expected empty name with no roster URL, got %q", got)
	}
	if transport.callCount() != 0 {
		t.Errorf("expected no HTTP calls with no roster URL, got %d", transport.callCount())
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "last first initials", in: "Smith, John (JS)", want: "John Smith"},
		{name: "last first no initials", in: "Garcia, Maria", want: "Maria Garcia"},
		{name: "plain", in: "Nakamura Kenji", want: "Nakamura Kenji"},
		{name: "extra whitespace collapsed", in: "  Smith,   John  ", want: "John Smith"},
		{name: "numeric cell rejected", in: "1234567", want: ""},
		{name: "short cell rejected", in: "S2", want: ""},
		{name: "leading digits rejected", in: "1h ago", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, cleanName(tt.in)); diff != "" {
				t.Errorf("cleanName(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}
