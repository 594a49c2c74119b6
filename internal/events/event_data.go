// Package events provides a process-local pub/sub bus for engine events.
package events

import "time"

// EventType identifies a category of engine event.
type EventType string

const (
	// FacetResolved - a comparison request resolved successfully.
	FacetResolved EventType = "facet_resolved"
	// FacetFailed - a comparison request failed.
	FacetFailed EventType = "facet_failed"
	// SettingsChanged - engine settings were updated.
	SettingsChanged EventType = "settings_changed"
	// BatchCompleted - a pairwise batch finished issuing requests.
	BatchCompleted EventType = "batch_completed"
	// InsightsReady - insights were derived for a completed comparison.
	InsightsReady EventType = "insights_ready"
)

// EventData is the interface that all event data types must implement.
// This allows for type-safe event data while maintaining flexibility.
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// Event is a published event with its envelope.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data"`
}

// FacetResolvedData contains data for FacetResolved events
type FacetResolvedData struct {
	Facet        string `json:"facet"`
	ComparisonID string `json:"comparison_id"`
	FromCache    bool   `json:"from_cache"`
}

// EventType returns the event type for FacetResolvedData
func (d *FacetResolvedData) EventType() EventType {
	return FacetResolved
}

// FacetFailedData contains data for FacetFailed events
type FacetFailedData struct {
	Facet        string `json:"facet"`
	ComparisonID string `json:"comparison_id"`
	Kind         string `json:"kind"`
	Message      string `json:"message"`
	Transient    bool   `json:"transient"`
}

// EventType returns the event type for FacetFailedData
func (d *FacetFailedData) EventType() EventType {
	return FacetFailed
}

// SettingsChangedData contains data for SettingsChanged events
type SettingsChangedData struct {
	AutoRefresh       bool  `json:"auto_refresh"`
	RefreshIntervalMs int64 `json:"refresh_interval_ms"`
	CacheTimeoutMs    int64 `json:"cache_timeout_ms"`
	MaxComparisons    int   `json:"max_comparisons"`
}

// EventType returns the event type for SettingsChangedData
func (d *SettingsChangedData) EventType() EventType {
	return SettingsChanged
}

// BatchCompletedData contains data for BatchCompleted events
type BatchCompletedData struct {
	Pairs    int `json:"pairs"`
	Requests int `json:"requests"`
}

// EventType returns the event type for BatchCompletedData
func (d *BatchCompletedData) EventType() EventType {
	return BatchCompleted
}

// InsightsReadyData contains data for InsightsReady events
type InsightsReadyData struct {
	ComparisonID string  `json:"comparison_id"`
	Winner       string  `json:"winner,omitempty"`
	Confidence   float64 `json:"confidence"`
}

// EventType returns the event type for InsightsReadyData
func (d *InsightsReadyData) EventType() EventType {
	return InsightsReady
}
