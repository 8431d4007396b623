package domain

import "time"

// NotificationStatus describes the lifecycle of a broadcast campaign.
type NotificationStatus string

const (
	StatusDraft     NotificationStatus = "draft"
	StatusScheduled NotificationStatus = "scheduled"
	StatusSending   NotificationStatus = "sending"
	StatusSent      NotificationStatus = "sent"
	// StatusStalled marks records stuck in "sending" past the sweep
	// threshold, usually after a process crash mid fan-out.
	StatusStalled NotificationStatus = "stalled"
)

// Notification is one broadcast campaign with its frozen delivery stats.
type Notification struct {
	ID          int64              `json:"id"`
	Type        string             `json:"type"`
	Message     string             `json:"message"`
	Important   bool               `json:"important"`
	Conditions  Conditions         `json:"conditions"`
	Button      *Button            `json:"button,omitempty"`
	Status      NotificationStatus `json:"status"`
	Stats       DeliveryStats      `json:"stats"`
	ScheduledAt *time.Time         `json:"scheduledAt,omitempty"`
	SentAt      *time.Time         `json:"sentAt,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// Conditions carries threshold parameters for level and income targeting.
type Conditions struct {
	MinLevel  int   `json:"minLevel,omitempty"`
	MinIncome int64 `json:"minIncome,omitempty"`
}

// Button is a single inline action attached to the message.
type Button struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// DeliveryStats is the running delivery-stats block. TargetUsers is the
// snapshot of recipient IDs resolved at creation time and is never recomputed.
type DeliveryStats struct {
	TargetCount int     `json:"targetCount"`
	SentCount   int     `json:"sentCount"`
	FailedCount int     `json:"failedCount"`
	ReadCount   int     `json:"readCount"`
	TargetUsers []int64 `json:"targetUsers"`
}

// Mutable reports whether the record may still be edited or deleted.
func (n *Notification) Mutable() bool {
	return n != nil && n.Status != StatusSent
}
