package sqlplugin

import (
	"time"

	"github.com/sony/gobreaker"
)

// newBreaker guards connection attempts to network databases: it trips after 3
// consecutive failures and lets one trial connect through again after 30 seconds.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}
