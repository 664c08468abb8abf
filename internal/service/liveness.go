package service

import "time"

// IsAlive reports whether a device with the given last heartbeat counts as
// powered at "now". A device with no heartbeat at all is dead. Pure; the
// monitor and tests share it.
func IsAlive(lastHeartbeat *time.Time, now time.Time, timeout time.Duration) bool {
	if lastHeartbeat == nil {
		return false
	}
	return now.Sub(*lastHeartbeat) <= timeout
}
