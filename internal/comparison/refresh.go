package comparison

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/domain"
	"github.com/aristath/lookout/internal/settings"
)

// RefreshSupervisor re-submits the active comparison on a fixed interval
// while auto-refresh is enabled. At most one refresh loop exists at any
// time; starting a new cycle cancels the previous one, and disabling
// auto-refresh stops the loop cooperatively before its next tick.
type RefreshSupervisor struct {
	orch *Orchestrator
	log  zerolog.Logger

	mu     sync.Mutex
	active *domain.ComparisonRequest
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRefreshSupervisor creates a refresh supervisor. Wire it to settings
// changes with settingsService.OnChange(supervisor.Apply).
func NewRefreshSupervisor(orch *Orchestrator, log zerolog.Logger) *RefreshSupervisor {
	return &RefreshSupervisor{
		orch: orch,
		log:  log.With().Str("component", "refresh_supervisor").Logger(),
	}
}

// SetActive records the comparison the loop refreshes. The running loop
// picks it up on its next tick; no restart needed.
func (s *RefreshSupervisor) SetActive(req domain.ComparisonRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = &req
}

// Active returns the current active comparison, or nil.
func (s *RefreshSupervisor) Active() *domain.ComparisonRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Running reports whether a refresh loop is alive.
func (s *RefreshSupervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Apply reconciles the loop with the given settings: it cancels any loop
// already in flight and starts a fresh one when auto-refresh is enabled.
func (s *RefreshSupervisor) Apply(st settings.Settings) {
	wait := s.stop()
	if wait != nil {
		<-wait
	}

	if !st.AutoRefresh {
		s.log.Info().Msg("Auto-refresh disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.log.Info().Dur("interval", st.RefreshInterval).Msg("Auto-refresh enabled")
	go s.loop(ctx, st.RefreshInterval, done)
}

// CancelActiveRefresh stops the refresh loop until the next Apply enables
// it again. Cooperative: an in-flight submission runs to completion.
func (s *RefreshSupervisor) CancelActiveRefresh() {
	wait := s.stop()
	if wait != nil {
		<-wait
		s.log.Info().Msg("Active refresh cancelled")
	}
}

// stop cancels the running loop, if any, and returns a channel to wait on.
func (s *RefreshSupervisor) stop() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	s.cancel = nil
	done := s.done
	s.done = nil
	return done
}

func (s *RefreshSupervisor) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshOnce(ctx)
		}
	}
}

// refreshOnce re-submits the active comparison through the normal Submit
// path, so cache and validation policy apply unchanged.
func (s *RefreshSupervisor) refreshOnce(ctx context.Context) {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()

	if active == nil {
		return
	}

	if _, err := s.orch.Submit(ctx, *active); err != nil {
		s.log.Warn().
			Str("comparison_id", active.ComparisonID).
			Err(err).
			Msg("Auto-refresh submission failed")
		return
	}
	s.log.Debug().
		Str("comparison_id", active.ComparisonID).
		Msg("Auto-refresh tick completed")
}
