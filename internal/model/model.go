// Package model defines the domain types used across the application.
package model

import (
	"fmt"
	"time"
)

// Status is the aggregate coverage state derived from one poll cycle.
type Status string

// Aggregate statuses, highest precedence first.
const (
	StatusMainAndAboveOnline Status = "main_and_supporting_above_online"
	StatusMainOnline         Status = "main_online"
	StatusAboveOnline        Status = "supporting_above_online"
	StatusAllOffline         Status = "all_offline"
	StatusError              Status = "error"
)

// inactiveFrequency is the placeholder frequency VATSIM assigns to
// connections that are not actually staffing a position.
const inactiveFrequency = "199.998"

// Controller is one connected entity read from the presence feed.
type Controller struct {
	CID         int
	Callsign    string
	Frequency   string
	Name        string // as reported by the feed
	DisplayName string // roster-resolved, falls back to Name or CID
	Rating      int
	LogonTime   time.Time
}

// Active reports whether the controller is staffing a real position.
func (c Controller) Active() bool {
	return c.Frequency != inactiveFrequency
}

// PatternSet holds the regex pattern lists for the three watched
// facility categories. It is never mutated after load.
type PatternSet struct {
	Main            []string `json:"main"`
	SupportingAbove []string `json:"supporting_above"`
	SupportingBelow []string `json:"supporting_below"`
}

// Empty reports whether no category has any pattern.
func (p PatternSet) Empty() bool {
	return len(p.Main) == 0 && len(p.SupportingAbove) == 0 && len(p.SupportingBelow) == 0
}

// Snapshot is the categorized, timestamped result of one poll cycle.
// A new value is produced every cycle; snapshots are never mutated.
type Snapshot struct {
	Status    Status
	Main      []Controller
	Above     []Controller
	Below     []Controller
	All       []Controller // every active controller, kept for per-recipient reclassification
	Err       string       // set when Status is StatusError
	FetchedAt time.Time
}

// ChannelKind identifies a notification delivery channel.
type ChannelKind string

// Supported channels.
const (
	ChannelPushover ChannelKind = "pushover"
	ChannelEmail    ChannelKind = "email"
	ChannelTelegram ChannelKind = "telegram"
)

// RecipientKind distinguishes the legacy operator recipient from
// account-backed recipients supplied by the account store.
type RecipientKind string

// Recipient kinds.
const (
	RecipientOperator RecipientKind = "operator"
	RecipientAccount  RecipientKind = "account"
)

// Recipient is one independently configured notification target.
// Recipients are owned by the external account layer; the core only
// reads them once per dispatch cycle.
type Recipient struct {
	ID              int64
	Kind            RecipientKind
	Email           string
	Channel         ChannelKind
	PushoverToken   string
	PushoverUserKey string
	TelegramChatID  int64
	Patterns        *PatternSet // nil means the global default applies
	Enabled         bool
	CreatedAt       time.Time
}

// Key returns a stable identity used for per-recipient debounce state.
func (r Recipient) Key() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

var ratingNames = map[int]string{
	-1: "Inactive",
	0:  "Suspended",
	1:  "Pilot/Observer",
	2:  "Student Controller (S1)",
	3:  "Tower Controller (S2)",
	4:  "TMA Controller (S3)",
	5:  "Enroute Controller (C1)",
	6:  "Senior Controller (C2)",
	7:  "Senior Controller (C3)",
	8:  "Instructor (I1)",
	9:  "Senior Instructor (I2)",
	10: "Senior Instructor (I3)",
	11: "Supervisor (SUP)",
	12: "Administrator (ADM)",
}

// RatingName translates a VATSIM controller rating ID to a readable name.
func RatingName(id int) string {
	if name, ok := ratingNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Unknown Rating (%d)", id)
}
