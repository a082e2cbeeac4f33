package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"push-campaign-backend/config"
	"push-campaign-backend/internal/metrics"
	"push-campaign-backend/internal/model"
	"push-campaign-backend/internal/notification"
	"push-campaign-backend/internal/store"
	"push-campaign-backend/internal/tracking"
)

const deadlineDetail = "dispatch deadline exceeded"

// Pusher delivers one payload to one subscription.
type Pusher interface {
	Send(ctx context.Context, target notification.Target, payload notification.Payload) notification.Outcome
}

// LinkWrapper rewrites a click URL into a tracking URL for a campaign.
type LinkWrapper interface {
	WrapURL(ctx context.Context, campaignID int64, destination string) (string, error)
}

// Result summarises a finished dispatch. Failed includes Expired.
type Result struct {
	CampaignID int64 `json:"campaign_id"`
	TotalSent  int64 `json:"total_sent"`
	Success    int64 `json:"success"`
	Failed     int64 `json:"failed"`
	Expired    int64 `json:"expired"`
}

// Dispatcher sends campaigns to a tenant's active subscribers.
type Dispatcher struct {
	registry       store.Registry
	campaigns      store.Campaigns
	recorder       store.Recorder
	transport      Pusher
	links          LinkWrapper
	maxConcurrency int
	deadline       time.Duration
	log            *zap.Logger
}

// New creates a dispatcher backed by s.
func New(s store.Store, transport Pusher, links LinkWrapper, cfg config.DispatchConfig, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry:       s,
		campaigns:      s,
		recorder:       s,
		transport:      transport,
		links:          links,
		maxConcurrency: max(cfg.MaxConcurrency, 1),
		deadline:       cfg.Deadline,
		log:            log,
	}
}

// Dispatch sends msg to every active subscriber of tenantID and returns the
// finalized counts. Per-recipient failures never fail the call; only storage
// errors do, in which case nothing of the campaign is kept.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID string, msg Message) (*Result, error) {
	start := time.Now()
	msg = msg.normalized()
	if err := msg.Validate(); err != nil {
		metrics.CampaignsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if msg.URL != "" {
		if err := tracking.CheckDestination(msg.URL); err != nil {
			metrics.CampaignsTotal.WithLabelValues("invalid").Inc()
			return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, validation.Errors{"url": err})
		}
	}

	subs, err := d.registry.ListActive(ctx, tenantID)
	if err != nil {
		metrics.CampaignsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if len(subs) == 0 {
		metrics.CampaignsTotal.WithLabelValues("empty").Inc()
		return nil, ErrNoActiveSubscribers
	}

	campaign := &model.Campaign{
		TenantID:  tenantID,
		Title:     msg.Title,
		Body:      msg.Body,
		Icon:      msg.Icon,
		Image:     msg.Image,
		URL:       msg.URL,
		Tag:       msg.Tag,
		Author:    msg.Author,
		TotalSent: int64(len(subs)),
		CreatedAt: start.UTC(),
	}
	if err := d.campaigns.OpenCampaign(ctx, campaign); err != nil {
		metrics.CampaignsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	log := d.log.With(zap.String("tenant_id", tenantID), zap.Int64("campaign_id", campaign.ID))
	log.Info("dispatching campaign", zap.Int("subscribers", len(subs)))

	result, err := d.deliver(ctx, campaign, msg, subs)
	if err != nil {
		d.discard(ctx, log, campaign.ID)
		metrics.CampaignsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.CampaignsTotal.WithLabelValues("completed").Inc()
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	log.Info("campaign dispatched",
		zap.Int64("total_sent", result.TotalSent),
		zap.Int64("success", result.Success),
		zap.Int64("failed", result.Failed),
		zap.Int64("expired", result.Expired),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// deliver runs the fan-out and finalizes the campaign.
func (d *Dispatcher) deliver(ctx context.Context, campaign *model.Campaign, msg Message, subs []model.Subscription) (*Result, error) {
	payload := notification.Payload{
		Title:      msg.Title,
		Body:       msg.Body,
		Icon:       msg.Icon,
		Image:      msg.Image,
		Tag:        msg.Tag,
		CampaignID: campaign.ID,
	}

	var trackingURL string
	if msg.URL != "" {
		wrapped, err := d.links.WrapURL(ctx, campaign.ID, msg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to wrap click url: %w", err)
		}
		trackingURL = wrapped
	}

	outcomes := make([]notification.Outcome, len(subs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(len(subs), d.maxConcurrency))

	sendCtx := gctx
	if d.deadline > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(gctx, d.deadline)
		defer cancel()
	}

	for i, sub := range subs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			p := payload
			if trackingURL != "" {
				p.URL = tracking.ForSubscriber(trackingURL, sub.ID)
			}
			outcome := d.send(gctx, sendCtx, sub, p)
			outcomes[i] = outcome

			if err := d.recorder.Record(gctx, campaign.ID, sub.ID, outcome.Status, outcome.Detail); err != nil {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("delivery fan-out aborted: %w", err)
	}

	var expired []string
	for i, o := range outcomes {
		metrics.DeliveriesTotal.WithLabelValues(string(o.Status)).Inc()
		if o.Status == model.DeliveryExpired {
			expired = append(expired, subs[i].Endpoint)
		}
	}

	finalized, err := d.campaigns.FinalizeCampaign(ctx, store.Finalization{
		CampaignID:       campaign.ID,
		ExpiredEndpoints: expired,
		At:               time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to finalize campaign: %w", err)
	}

	return &Result{
		CampaignID: finalized.ID,
		TotalSent:  finalized.TotalSent,
		Success:    finalized.TotalSuccess,
		Failed:     finalized.TotalFailed,
		Expired:    int64(len(expired)),
	}, nil
}

// send pushes to one subscriber. Sends still pending when the dispatch
// deadline passes are reported as failed with a fixed detail.
func (d *Dispatcher) send(gctx, sendCtx context.Context, sub model.Subscription, payload notification.Payload) notification.Outcome {
	if sendCtx.Err() != nil && gctx.Err() == nil {
		return notification.Outcome{Status: model.DeliveryFailed, Detail: deadlineDetail}
	}

	outcome := d.transport.Send(sendCtx, notification.Target{
		Endpoint: sub.Endpoint,
		P256DH:   sub.P256DH,
		Auth:     sub.Auth,
	}, payload)

	if outcome.Status == model.DeliveryFailed && errors.Is(sendCtx.Err(), context.DeadlineExceeded) && gctx.Err() == nil {
		outcome.Detail = deadlineDetail
	}
	return outcome
}

// discard removes a campaign that could not be completed. It runs even when
// ctx is already cancelled.
func (d *Dispatcher) discard(ctx context.Context, log *zap.Logger, campaignID int64) {
	err := d.campaigns.DiscardCampaign(context.WithoutCancel(ctx), campaignID)
	if errors.Is(err, store.ErrCampaignNotDispatching) {
		log.Warn("incomplete campaign was already discarded")
		return
	}
	if err != nil {
		log.Error("failed to discard incomplete campaign", zap.Error(err))
		return
	}
	log.Warn("incomplete campaign discarded")
}
