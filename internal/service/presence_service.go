package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type presenceRepository interface {
	SetPresence(ctx context.Context, id string, online bool, seenAt time.Time) error
}

type presenceClaimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) bool
}

// PresenceService refreshes last_seen for active users, writing at most once
// per user per interval.
type PresenceService struct {
	repo     presenceRepository
	claims   presenceClaimer
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewPresenceService constructs the heartbeat service.
func NewPresenceService(repo presenceRepository, claims presenceClaimer, interval time.Duration, logger *zap.Logger) *PresenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &PresenceService{repo: repo, claims: claims, interval: interval, logger: logger, now: time.Now}
}

// Touch marks userID online. It reports whether a write happened.
func (s *PresenceService) Touch(ctx context.Context, userID string) bool {
	if userID == "" {
		return false
	}
	if s.claims != nil && !s.claims.Claim(ctx, "presence:"+userID, s.interval) {
		return false
	}
	if err := s.repo.SetPresence(ctx, userID, true, s.now().UTC()); err != nil {
		s.logger.Warn("failed to refresh presence", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return true
}
