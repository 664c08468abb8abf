package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsAlive(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	timeout := 15 * time.Second

	tests := []struct {
		name          string
		lastHeartbeat *time.Time
		want          bool
	}{
		{"no heartbeat", nil, false},
		{"recent heartbeat", ptr(now.Add(-5 * time.Second)), true},
		{"exactly at timeout", ptr(now.Add(-15 * time.Second)), true},
		{"just past timeout", ptr(now.Add(-16 * time.Second)), false},
		{"very stale", ptr(now.Add(-24 * time.Hour)), false},
		{"heartbeat from the future", ptr(now.Add(2 * time.Second)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsAlive(tt.lastHeartbeat, now, timeout))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{90 * time.Second, "1min"},
		{45 * time.Minute, "45min"},
		{time.Hour + 5*time.Minute, "1hr 05min"},
		{24 * time.Hour, "24hr 00min"},
		{24*time.Hour + time.Minute, "1d 0hr 1min"},
		{26*time.Hour + 12*time.Minute, "1d 2hr 12min"},
		{73 * time.Hour, "3d 1hr 0min"},
		{-time.Minute, "0min"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, FormatDuration(tt.d))
	}
}

func ptr(t time.Time) *time.Time {
	return &t
}
