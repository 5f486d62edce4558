// Package api exposes the read-only status endpoint consumed by the
// presentation layers. It only ever reads the snapshot cache; a request
// can never trigger an upstream fetch beyond the cache's TTL policy.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"towerwatch/internal/model"
	"towerwatch/internal/notify"
)

// SnapshotSource is the read-only cache view served to consumers.
type SnapshotSource interface {
	Get(ctx context.Context, maxAge time.Duration) model.Snapshot
}

// Server serves the status API.
type Server struct {
	source       SnapshotSource
	maxAge       time.Duration
	facilityName string
	log          *slog.Logger
}

// NewServer creates a Server reading snapshots no older than maxAge.
func NewServer(source SnapshotSource, maxAge time.Duration, facilityName string, log *slog.Logger) *Server {
	return &Server{
		source:       source,
		maxAge:       maxAge,
		facilityName: facilityName,
		log:          log,
	}
}

// Router returns the HTTP handler for the status API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/api/status", s.handleStatus)
	return r
}

type controllerResponse struct {
	CID        int    `json:"cid"`
	Callsign   string `json:"callsign"`
	Name       string `json:"name"`
	Frequency  string `json:"frequency"`
	Rating     int    `json:"rating"`
	RatingName string `json:"rating_name"`
	LogonTime  string `json:"logon_time,omitempty"`
	OnlineFor  string `json:"online_for,omitempty"`
}

type statusResponse struct {
	Status          model.Status         `json:"status"`
	DisplayName     string               `json:"display_name"`
	Timestamp       string               `json:"timestamp"`
	Error           string               `json:"error,omitempty"`
	Main            []controllerResponse `json:"main_controllers"`
	SupportingAbove []controllerResponse `json:"supporting_above"`
	SupportingBelow []controllerResponse `json:"supporting_below"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Get(r.Context(), s.maxAge)
	resp := statusResponse{
		Status:          snap.Status,
		DisplayName:     s.facilityName,
		Timestamp:       snap.FetchedAt.UTC().Format(time.RFC3339),
		Error:           snap.Err,
		Main:            formatControllers(snap.Main),
		SupportingAbove: formatControllers(snap.Above),
		SupportingBelow: formatControllers(snap.Below),
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("write response", "error", err)
	}
}

func formatControllers(controllers []model.Controller) []controllerResponse {
	out := make([]controllerResponse, 0, len(controllers))
	now := time.Now()
	for _, c := range controllers {
		cr := controllerResponse{
			CID:        c.CID,
			Callsign:   c.Callsign,
			Name:       c.DisplayName,
			Frequency:  c.Frequency,
			Rating:     c.Rating,
			RatingName: model.RatingName(c.Rating),
			OnlineFor:  notify.FormatOnline(c.LogonTime, now),
		}
		if !c.LogonTime.IsZero() {
			cr.LogonTime = c.LogonTime.UTC().Format(time.RFC3339)
		}
		out = append(out, cr)
	}
	return out
}
