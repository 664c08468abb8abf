package service

import (
	"time"

	"example.com/powermon/internal/models"
)

// DayStat is one day bucket of uptime/downtime seconds.
type DayStat struct {
	Date       time.Time `json:"date"`
	OnSeconds  float64   `json:"on_seconds"`
	OffSeconds float64   `json:"off_seconds"`
}

// MonthlyStats aggregates a device's power availability over one month.
type MonthlyStats struct {
	DeviceID             string     `json:"device_id"`
	Year                 int        `json:"year"`
	Month                time.Month `json:"month"`
	PerDay               []DayStat  `json:"per_day"`
	TotalUptimeSeconds   float64    `json:"total_uptime_seconds"`
	TotalDowntimeSeconds float64    `json:"total_downtime_seconds"`
	OutageCount          int        `json:"outage_count"`
	AvgOutageSeconds     float64    `json:"avg_outage_seconds"`
	MaxOutageSeconds     float64    `json:"max_outage_seconds"`
	UptimePercent        float64    `json:"uptime_percent"`
}

// MonthWindow returns the aggregation window for a month: the full month,
// clipped to "now" while the month is still running.
func MonthWindow(year int, month time.Month, now time.Time) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, 0)
	if now.Before(end) {
		end = now
	}
	return start, end
}

// clipSeconds returns how many seconds of the event fall inside
// [bucketStart, bucketEnd). An open event runs until "now".
func clipSeconds(e *models.Event, bucketStart, bucketEnd, now time.Time) float64 {
	start := e.StartAt
	if start.Before(bucketStart) {
		start = bucketStart
	}
	end := now
	if e.EndAt != nil {
		end = *e.EndAt
	}
	if end.After(bucketEnd) {
		end = bucketEnd
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start).Seconds()
}

// ComputeMonthlyStats derives day-bucketed and month-aggregate metrics from
// the given events. Pure and read-only; events should be the device's
// intervals overlapping the month window, in any order. Intervals breaking
// the alternation invariant are still summed as-is rather than rejected.
func ComputeMonthlyStats(deviceID string, year int, month time.Month, events []*models.Event, now time.Time) *MonthlyStats {
	windowStart, windowEnd := MonthWindow(year, month, now)
	loc := now.Location()
	daysInMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()

	stats := &MonthlyStats{
		DeviceID: deviceID,
		Year:     year,
		Month:    month,
		PerDay:   make([]DayStat, 0, daysInMonth),
	}

	for d := 1; d <= daysInMonth; d++ {
		dayStart := time.Date(year, month, d, 0, 0, 0, 0, loc)
		dayEnd := dayStart.AddDate(0, 0, 1)

		var onSeconds, offSeconds float64
		for _, ev := range events {
			if ev.DeviceID != deviceID {
				continue
			}
			seconds := clipSeconds(ev, dayStart, dayEnd, now)
			if seconds <= 0 {
				continue
			}
			if ev.IsPowerOn {
				onSeconds += seconds
			} else {
				offSeconds += seconds
			}
		}

		stats.TotalUptimeSeconds += onSeconds
		stats.TotalDowntimeSeconds += offSeconds
		stats.PerDay = append(stats.PerDay, DayStat{
			Date:       dayStart,
			OnSeconds:  onSeconds,
			OffSeconds: offSeconds,
		})
	}

	for _, ev := range events {
		if ev.DeviceID != deviceID || ev.IsPowerOn {
			continue
		}
		// Outages are OFF intervals that began inside the window.
		if ev.StartAt.Before(windowStart) || !ev.StartAt.Before(windowEnd) {
			continue
		}
		stats.OutageCount++
		seconds := clipSeconds(ev, windowStart, windowEnd, now)
		if seconds > stats.MaxOutageSeconds {
			stats.MaxOutageSeconds = seconds
		}
	}

	if stats.OutageCount > 0 {
		stats.AvgOutageSeconds = stats.TotalDowntimeSeconds / float64(stats.OutageCount)
	}

	windowSeconds := windowEnd.Sub(windowStart).Seconds()
	if windowSeconds > 0 {
		stats.UptimePercent = stats.TotalUptimeSeconds / windowSeconds * 100
	}

	return stats
}
