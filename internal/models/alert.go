package models

import (
	"strings"
	"time"
)

// Severity is ordered: low < moderate < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordinal of s, 0 for an unknown value.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityModerate:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

func (s Severity) Upper() string {
	return strings.ToUpper(string(s))
}

func ParseSeverity(v string) (Severity, bool) {
	s := Severity(strings.ToLower(strings.TrimSpace(v)))
	return s, s.Rank() > 0
}

type AlertStatus string

const (
	AlertStatusSent   AlertStatus = "sent"
	AlertStatusFailed AlertStatus = "failed"
)

// AlertLog records the outcome of one publish to a country topic.
type AlertLog struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	DisasterID  string      `gorm:"size:128;index;not null" json:"disaster_id"`
	Country     string      `gorm:"size:128;index;not null" json:"country"`
	TopicHandle string      `json:"topic_handle"`
	MessageID   string      `json:"message_id"`
	Subject     string      `json:"subject"`
	Message     string      `json:"message"`
	Status      AlertStatus `gorm:"size:16;not null" json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}

func (AlertLog) TableName() string {
	return "disaster_alerts_log"
}

// AlertEvent is what live stream listeners receive after a successful publish.
type AlertEvent struct {
	Disaster  Disaster  `json:"disaster"`
	Country   string    `json:"country"`
	Subject   string    `json:"subject"`
	MessageID string    `json:"message_id"`
	SentAt    time.Time `json:"sent_at"`
}
