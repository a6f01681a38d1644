package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openworkhq/agentgate/internal/config"
	"github.com/openworkhq/agentgate/internal/domain"
	"github.com/openworkhq/agentgate/internal/port/cache"
	"github.com/openworkhq/agentgate/internal/port/plans"
)

// RateLimitService enforces per-workspace request rate limits over a fixed
// window. Each workspace gets a counter that resets when its window
// expires; the per-window limit comes from the workspace's plan, cached to
// keep the resolver off the hot path.
type RateLimitService struct {
	plans    plans.Resolver
	cache    cache.Cache
	window   time.Duration
	fallback int
	planTTL  time.Duration

	mu         sync.Mutex
	windows    map[string]*window
	maxWindows int
}

type window struct {
	count    int
	start    time.Time
	lastSeen time.Time
}

// NewRateLimitService creates a RateLimitService.
func NewRateLimitService(cfg config.Rate, planTTL time.Duration, resolver plans.Resolver, c cache.Cache) *RateLimitService {
	return &RateLimitService{
		plans:      resolver,
		cache:      c,
		window:     cfg.Window,
		fallback:   cfg.DefaultPerWindow,
		planTTL:    planTTL,
		windows:    make(map[string]*window),
		maxWindows: cfg.MaxTrackedWindows,
	}
}

// Check counts one request against the workspace's window and returns
// domain.ErrRateLimited when the limit is exhausted. The counter is bumped
// before the limit comparison, so a rejected request still ages the window.
func (s *RateLimitService) Check(ctx context.Context, workspaceID string) error {
	limit := s.limitFor(ctx, workspaceID)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	w, ok := s.windows[workspaceID]
	if !ok || now.Sub(w.start) >= s.window {
		if !ok && len(s.windows) >= s.maxWindows {
			// At tracking capacity, reject rather than grow without bound.
			return fmt.Errorf("%w: rate limiter at capacity", domain.ErrRateLimited)
		}
		w = &window{start: now}
		s.windows[workspaceID] = w
	}
	w.count++
	w.lastSeen = now

	if w.count > limit {
		retry := s.window - now.Sub(w.start)
		return fmt.Errorf("%w: %d requests per %s exceeded, retry in %s",
			domain.ErrRateLimited, limit, s.window, retry.Round(time.Second))
	}
	return nil
}

// Remaining returns how many requests the workspace has left in its current
// window.
func (s *RateLimitService) Remaining(ctx context.Context, workspaceID string) int {
	limit := s.limitFor(ctx, workspaceID)

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[workspaceID]
	if !ok || time.Since(w.start) >= s.window {
		return limit
	}
	if w.count >= limit {
		return 0
	}
	return limit - w.count
}

// limitFor resolves the workspace's per-window limit through the cache.
// Resolver failures fall back to the configured default rather than
// blocking the request.
func (s *RateLimitService) limitFor(ctx context.Context, workspaceID string) int {
	key := "plan:" + workspaceID

	if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var l plans.Limits
		if err := json.Unmarshal(data, &l); err == nil && l.RequestsPerMinute > 0 {
			return l.RequestsPerMinute
		}
	}

	limits, err := s.plans.GetPlanLimits(ctx, workspaceID)
	if err != nil {
		slog.Warn("rate limit: plan lookup failed, using default",
			"workspace_id", workspaceID,
			"default", s.fallback,
			"error", err,
		)
		return s.fallback
	}

	if data, err := json.Marshal(limits); err == nil {
		if err := s.cache.Set(ctx, key, data, s.planTTL); err != nil {
			slog.Debug("rate limit: plan cache set failed", "error", err)
		}
	}

	if limits.RequestsPerMinute <= 0 {
		return s.fallback
	}
	return limits.RequestsPerMinute
}

// StartCleanup spawns a goroutine that drops windows idle for longer than
// two window lengths. Returns a cancel function.
func (s *RateLimitService) StartCleanup(interval time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanup()
			}
		}
	}()
	return cancel
}

func (s *RateLimitService) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-2 * s.window)
	for id, w := range s.windows {
		if w.lastSeen.Before(cutoff) {
			delete(s.windows, id)
		}
	}
}

// Len returns the number of tracked workspace windows.
func (s *RateLimitService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
