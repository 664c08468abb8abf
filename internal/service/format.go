package service

import (
	"fmt"
	"time"
)

// FormatDuration renders a duration the way notifications display it:
// "3d 4hr 12min", "4hr 05min" or "12min".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	// Exactly 24 hours still reads "24hr 00min"; the day form starts
	// past one full day.
	if d > 24*time.Hour {
		return fmt.Sprintf("%dd %dhr %dmin", hours/24, hours%24, minutes)
	}
	if hours >= 1 {
		return fmt.Sprintf("%dhr %02dmin", hours, minutes)
	}
	return fmt.Sprintf("%dmin", minutes)
}
