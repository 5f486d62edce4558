package notify

import (
	"fmt"
	"strings"
	"time"

	"towerwatch/internal/model"
)

// Message is a rendered notification, channel-agnostic. Priority and
// Sound follow Pushover semantics; other channels ignore them.
type Message struct {
	Title    string
	Body     string
	Priority int
	Sound    string
}

// Render builds the notification for a recipient-specific status and its
// category lists.
func Render(status model.Status, main, above, below []model.Controller) Message {
	belowLine := ""
	if len(below) > 0 {
		belowLine = "\nSupporting Below: " + formatControllers(below)
	}

	switch status {
	case model.StatusMainAndAboveOnline:
		return Message{
			Title: "🟣 Full Coverage Active!",
			Body: "Main facility and supporting controllers are now online.\n" +
				"Main: " + formatControllers(main) + "\n" +
				"Supporting Above: " + formatControllers(above) + belowLine,
			Priority: 1,
			Sound:    "magic",
		}
	case model.StatusMainOnline:
		return Message{
			Title: "🟢 Main Facility Online!",
			Body: "Main facility controllers are now active.\n" +
				"Controllers: " + formatControllers(main) + belowLine,
			Priority: 0,
			Sound:    "pushover",
		}
	case model.StatusAboveOnline:
		return Message{
			Title: "🟡 Supporting Facility Online",
			Body: "Supporting controllers are active (main facility offline).\n" +
				"Supporting Above: " + formatControllers(above) + belowLine,
			Priority: 0,
			Sound:    "intermission",
		}
	case model.StatusAllOffline:
		return Message{
			Title:    "🔴 All Facilities Offline",
			Body:     "All monitored controllers have gone offline.",
			Priority: 0,
			Sound:    "falling",
		}
	default: // model.StatusError
		return Message{
			Title:    "⚪ Status Unknown",
			Body:     "The presence feed could not be checked; facility coverage is unknown.",
			Priority: -1,
			Sound:    "none",
		}
	}
}

func formatControllers(controllers []model.Controller) string {
	if len(controllers) == 0 {
		return "None"
	}
	parts := make([]string, 0, len(controllers))
	for _, c := range controllers {
		name := c.DisplayName
		if name == "" {
			name = c.Name
		}
		detail := name
		if online := FormatOnline(c.LogonTime, time.Now()); online != "" {
			detail += ", online " + online
		}
		if detail == "" {
			parts = append(parts, c.Callsign)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", c.Callsign, detail))
	}
	return strings.Join(parts, ", ")
}

// FormatOnline formats the time a controller has been connected, e.g.
// "2h 30m" or "45m". Returns "" for an unknown logon time.
func FormatOnline(logon, now time.Time) string {
	if logon.IsZero() || now.Before(logon) {
		return ""
	}
	total := int(now.Sub(logon).Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return "< 1m"
	}
}
