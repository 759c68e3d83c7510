// Package protocol defines the messages exchanged over the warnings topic.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WarningNotification is published when a profile's early-warning level
// changes between scans.
type WarningNotification struct {
	ID                string    `json:"id"`
	Type              string    `json:"type"` // WARNING_RAISED, WARNING_CLEARED
	ProfileID         string    `json:"profile_id"`
	Name              string    `json:"name"`
	Location          string    `json:"location"`
	RiskLevel         string    `json:"risk_level"`
	PreviousLevel     string    `json:"previous_level"`
	RepeatedPregnancy bool      `json:"repeated_pregnancy"`
	PregnancyCount    int       `json:"pregnancy_count"`
	SchoolDropout     bool      `json:"school_dropout"`
	DetectedAt        time.Time `json:"detected_at"`
}

const (
	WarningTypeRaised  = "WARNING_RAISED"
	WarningTypeCleared = "WARNING_CLEARED"
)

// NewWarningNotification stamps a notification with a fresh id.
func NewWarningNotification(typ, profileID string, detectedAt time.Time) *WarningNotification {
	return &WarningNotification{
		ID:         uuid.NewString(),
		Type:       typ,
		ProfileID:  profileID,
		DetectedAt: detectedAt,
	}
}

// Key is the partition key: all events for a profile stay ordered.
func (n *WarningNotification) Key() string {
	return n.ProfileID
}

// EncodeWarningNotification encodes a WarningNotification to JSON
func EncodeWarningNotification(n *WarningNotification) ([]byte, error) {
	return json.Marshal(n)
}

// DecodeWarningNotification decodes JSON to WarningNotification
func DecodeWarningNotification(data []byte) (*WarningNotification, error) {
	var n WarningNotification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	switch n.Type {
	case WarningTypeRaised, WarningTypeCleared:
	default:
		return nil, fmt.Errorf("unknown notification type %q", n.Type)
	}
	if n.ProfileID == "" {
		return nil, fmt.Errorf("notification %s has no profile id", n.ID)
	}
	return &n, nil
}
