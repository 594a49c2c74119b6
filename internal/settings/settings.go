// Package settings manages engine settings: defaults, bounds-checked
// updates, and persistence to config.db.
package settings

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/events"
)

// Bounds enforced on every update. Values outside these limits are clamped,
// never rejected.
const (
	MinCacheTimeout    = 10 * time.Second
	MinRefreshInterval = 5 * time.Second
	MinMaxComparisons  = 1
	MaxMaxComparisons  = 50
)

// Defaults applied at process start before any persisted values are loaded.
var Defaults = Settings{
	AutoRefresh:         false,
	RefreshInterval:     30 * time.Second,
	CacheTimeout:        5 * time.Minute,
	MaxComparisons:      10,
	EnableNotifications: true,
}

// Settings holds the engine's runtime-tunable knobs. Mutated only through
// Service.Update; components read snapshots, never shared pointers.
type Settings struct {
	AutoRefresh         bool          `json:"auto_refresh"`
	RefreshInterval     time.Duration `json:"refresh_interval_ms"`
	CacheTimeout        time.Duration `json:"cache_timeout_ms"`
	MaxComparisons      int           `json:"max_comparisons"`
	EnableNotifications bool          `json:"enable_notifications"`
}

// Partial is a partial settings update; nil fields are left unchanged.
type Partial struct {
	AutoRefresh         *bool          `json:"auto_refresh,omitempty"`
	RefreshInterval     *time.Duration `json:"refresh_interval_ms,omitempty"`
	CacheTimeout        *time.Duration `json:"cache_timeout_ms,omitempty"`
	MaxComparisons      *int           `json:"max_comparisons,omitempty"`
	EnableNotifications *bool          `json:"enable_notifications,omitempty"`
}

// Service owns the settings state. It is injected into every component
// that reads a setting, so tests can substitute their own instance.
type Service struct {
	mu       sync.RWMutex
	current  Settings
	repo     *Repository // optional; nil disables persistence
	bus      *events.Bus // optional; nil disables change events
	onChange []func(Settings)
	log      zerolog.Logger
}

// NewService creates a settings service seeded with defaults. repo and bus
// may be nil (tests run without persistence or events).
func NewService(repo *Repository, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		current: Defaults,
		repo:    repo,
		bus:     bus,
		log:     log.With().Str("component", "settings").Logger(),
	}
}

// Load overlays persisted values on top of the defaults. Persisted values
// pass through the same clamps as live updates, so a tampered database
// cannot produce out-of-bounds settings.
func (s *Service) Load() error {
	if s.repo == nil {
		return nil
	}
	partial, err := s.repo.LoadPartial()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = clamp(apply(s.current, partial))
	loaded := s.current
	s.mu.Unlock()

	s.log.Info().
		Bool("auto_refresh", loaded.AutoRefresh).
		Dur("refresh_interval", loaded.RefreshInterval).
		Dur("cache_timeout", loaded.CacheTimeout).
		Int("max_comparisons", loaded.MaxComparisons).
		Msg("Settings loaded")
	return nil
}

// Get returns a snapshot of the current settings.
func (s *Service) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// CacheTimeout returns the current cache TTL.
func (s *Service) CacheTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.CacheTimeout
}

// MaxComparisons returns the current batch pair cap.
func (s *Service) MaxComparisons() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.MaxComparisons
}

// NotificationsEnabled reports whether event notifications are on.
func (s *Service) NotificationsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.EnableNotifications
}

// OnChange registers a callback invoked (synchronously) after every
// successful update with the new settings snapshot. Used by the refresh
// supervisor to restart its loop when settings change.
func (s *Service) OnChange(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Update applies a partial update, clamping out-of-bounds values, persists
// the result, and notifies listeners. Returns the effective settings.
func (s *Service) Update(p Partial) (Settings, error) {
	s.mu.Lock()
	s.current = clamp(apply(s.current, p))
	updated := s.current
	callbacks := make([]func(Settings), len(s.onChange))
	copy(callbacks, s.onChange)
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Save(updated); err != nil {
			return updated, err
		}
	}

	s.log.Info().
		Bool("auto_refresh", updated.AutoRefresh).
		Dur("refresh_interval", updated.RefreshInterval).
		Dur("cache_timeout", updated.CacheTimeout).
		Int("max_comparisons", updated.MaxComparisons).
		Bool("notifications", updated.EnableNotifications).
		Msg("Settings updated")

	for _, fn := range callbacks {
		fn(updated)
	}

	if s.bus != nil {
		s.bus.Publish(&events.SettingsChangedData{
			AutoRefresh:       updated.AutoRefresh,
			RefreshIntervalMs: updated.RefreshInterval.Milliseconds(),
			CacheTimeoutMs:    updated.CacheTimeout.Milliseconds(),
			MaxComparisons:    updated.MaxComparisons,
		})
	}

	return updated, nil
}

// apply overlays the non-nil fields of p onto base.
func apply(base Settings, p Partial) Settings {
	if p.AutoRefresh != nil {
		base.AutoRefresh = *p.AutoRefresh
	}
	if p.RefreshInterval != nil {
		base.RefreshInterval = *p.RefreshInterval
	}
	if p.CacheTimeout != nil {
		base.CacheTimeout = *p.CacheTimeout
	}
	if p.MaxComparisons != nil {
		base.MaxComparisons = *p.MaxComparisons
	}
	if p.EnableNotifications != nil {
		base.EnableNotifications = *p.EnableNotifications
	}
	return base
}

// clamp enforces the bounds on every numeric setting.
func clamp(s Settings) Settings {
	if s.CacheTimeout < MinCacheTimeout {
		s.CacheTimeout = MinCacheTimeout
	}
	if s.RefreshInterval < MinRefreshInterval {
		s.RefreshInterval = MinRefreshInterval
	}
	if s.MaxComparisons < MinMaxComparisons {
		s.MaxComparisons = MinMaxComparisons
	}
	if s.MaxComparisons > MaxMaxComparisons {
		s.MaxComparisons = MaxMaxComparisons
	}
	return s
}
