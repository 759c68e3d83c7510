package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarningNotification_RoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	n := NewWarningNotification(WarningTypeRaised, "p1", at)
	n.RiskLevel = "high"
	n.PregnancyCount = 2
	n.RepeatedPregnancy = true

	require.NotEmpty(t, n.ID)
	assert.Equal(t, "p1", n.Key())

	data, err := EncodeWarningNotification(n)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"profile_id":"p1"`)

	got, err := DecodeWarningNotification(data)
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)
	assert.True(t, got.DetectedAt.Equal(at))
}

func TestDecodeWarningNotification_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `{`},
		{"unknown type", `{"type":"ALARM_TRIGGERED","profile_id":"p1"}`},
		{"missing profile", `{"type":"WARNING_CLEARED"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeWarningNotification([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
