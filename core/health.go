package core

import "sync"

// Indicator of health status
type HealthIndicator struct {
	Name        string
	CheckHealth func(rail Rail) bool
}

type HealthStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
}

var (
	healthIndicators   []HealthIndicator
	healthIndicatorsMu sync.RWMutex
)

// Add health indicator.
func AddHealthIndicator(hi HealthIndicator) {
	healthIndicatorsMu.Lock()
	defer healthIndicatorsMu.Unlock()
	healthIndicators = append(healthIndicators, hi)
}

// Check health status.
func CheckHealth(rail Rail) []HealthStatus {
	healthIndicatorsMu.RLock()
	defer healthIndicatorsMu.RUnlock()
	hs := make([]HealthStatus, 0, len(healthIndicators))
	for _, hi := range healthIndicators {
		hs = append(hs, HealthStatus{Name: hi.Name, Healthy: hi.CheckHealth(rail)})
	}
	return hs
}
