package sweeper

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"push-campaign-backend/config"
	"push-campaign-backend/internal/store"
)

// CampaignReaper is the slice of the store the sweeper needs.
type CampaignReaper interface {
	StaleCampaigns(ctx context.Context, cutoff time.Time) ([]int64, error)
	DiscardCampaign(ctx context.Context, campaignID int64) error
}

// Service periodically discards campaigns that a crashed or killed process left
// in the dispatching state, so they never show up with partial counts.
type Service struct {
	store      CampaignReaper
	interval   time.Duration
	staleAfter time.Duration
	log        *zap.Logger
	now        func() time.Time
}

// NewService creates a sweeper from the dispatch configuration.
func NewService(cfg config.DispatchConfig, store CampaignReaper, log *zap.Logger) *Service {
	return &Service{
		store:      store,
		interval:   cfg.SweepInterval,
		staleAfter: cfg.StaleAfter,
		log:        log,
		now:        time.Now,
	}
}

// Run sweeps once immediately and then on every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info("campaign sweeper is disabled")
		return
	}
	s.log.Info("starting campaign sweeper",
		zap.Duration("interval", s.interval),
		zap.Duration("stale_after", s.staleAfter))

	s.SweepOnce(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("campaign sweeper shutting down")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.interval)
		}
	}
}

// SweepOnce discards every stale campaign and returns how many were removed.
func (s *Service) SweepOnce(ctx context.Context) int {
	cutoff := s.now().UTC().Add(-s.staleAfter)
	ids, err := s.store.StaleCampaigns(ctx, cutoff)
	if err != nil {
		s.log.Error("failed to list stale campaigns", zap.Error(err))
		return 0
	}

	removed := 0
	for _, id := range ids {
		err := s.store.DiscardCampaign(ctx, id)
		if errors.Is(err, store.ErrCampaignNotDispatching) {
			// Finalized after it was listed.
			s.log.Debug("stale campaign finished before discard", zap.Int64("campaign_id", id))
			continue
		}
		if err != nil {
			s.log.Error("failed to discard stale campaign", zap.Int64("campaign_id", id), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Warn("discarded stale campaigns", zap.Int("count", removed), zap.Time("cutoff", cutoff))
	}
	return removed
}
