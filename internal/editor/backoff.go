package editor

import "time"

// reconnectSchedule defines the backoff durations for successive reconnect
// attempts to the bridge.
var reconnectSchedule = []time.Duration{
	time.Second, time.Second, time.Second,
	5 * time.Second, 5 * time.Second, 5 * time.Second,
	15 * time.Second, 15 * time.Second, 15 * time.Second,
}

// reconnectDelay returns the backoff duration for the given attempt.
// Attempts beyond the schedule default to 30 seconds.
func reconnectDelay(attempt int) time.Duration {
	if attempt < len(reconnectSchedule) {
		return reconnectSchedule[attempt]
	}
	return 30 * time.Second
}
