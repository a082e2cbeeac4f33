package tracking

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"push-campaign-backend/internal/metrics"
	"push-campaign-backend/internal/model"
	"push-campaign-backend/internal/parse"
	"push-campaign-backend/internal/store"
)

// ErrUnknownTrackingID is returned by Resolve for ids that are malformed or
// were never issued. Nothing is recorded in that case.
var ErrUnknownTrackingID = errors.New("unknown tracking id")

// ErrUnsafeDestination is returned for click URLs a browser would execute
// rather than navigate to.
var ErrUnsafeDestination = errors.New("must be a relative path or an http(s) url")

// SubscriberParam is the query parameter carrying the recipient's subscription id.
const SubscriberParam = "sub"

// Visit describes one follow of a tracking URL.
type Visit struct {
	SubscriptionID *int64
	UserAgent      string
}

// Tracker issues tracking URLs and records clicks on them.
type Tracker struct {
	store   store.Tracking
	baseURL string
	links   *cache.Cache
	log     *zap.Logger
}

// NewTracker creates a tracker. The cache holds resolved tracking links; it
// belongs to this tracker and must not be shared with unrelated data.
func NewTracker(s store.Tracking, baseURL string, links *cache.Cache, log *zap.Logger) *Tracker {
	return &Tracker{
		store:   s,
		baseURL: strings.TrimRight(baseURL, "/"),
		links:   links,
		log:     log,
	}
}

// WrapURL persists a new tracking link for destination and returns the public
// URL that redirects to it.
func (t *Tracker) WrapURL(ctx context.Context, campaignID int64, destination string) (string, error) {
	if err := CheckDestination(destination); err != nil {
		return "", err
	}
	link := &model.TrackingLink{
		ID:          uuid.NewString(),
		CampaignID:  campaignID,
		Destination: destination,
		CreatedAt:   time.Now().UTC(),
	}
	if err := t.store.CreateTrackingLink(ctx, link); err != nil {
		return "", err
	}
	t.links.SetDefault(link.ID, link)
	return t.baseURL + "/c/" + link.ID, nil
}

// CheckDestination accepts relative paths and absolute http(s) URLs. Anything
// else, such as javascript: or data: URLs, is rejected with ErrUnsafeDestination.
func CheckDestination(destination string) error {
	u, err := url.Parse(destination)
	if err != nil {
		return ErrUnsafeDestination
	}
	switch u.Scheme {
	case "", "http", "https":
		return nil
	default:
		return ErrUnsafeDestination
	}
}

// ForSubscriber appends the subscription id to a tracking URL so a click can
// be attributed to its recipient.
func ForSubscriber(trackingURL string, subscriptionID int64) string {
	u, err := url.Parse(trackingURL)
	if err != nil {
		return trackingURL
	}
	q := u.Query()
	q.Set(SubscriberParam, strconv.FormatInt(subscriptionID, 10))
	u.RawQuery = q.Encode()
	return u.String()
}

// Resolve records a click on trackingID and returns the destination to
// redirect to. Every call records a new click.
func (t *Tracker) Resolve(ctx context.Context, trackingID string, visit Visit) (string, error) {
	if _, err := uuid.Parse(trackingID); err != nil {
		return "", ErrUnknownTrackingID
	}

	link, err := t.lookup(ctx, trackingID)
	if err != nil {
		return "", err
	}

	agent := parse.UserAgent(visit.UserAgent)
	click := &model.Click{
		CampaignID:     link.CampaignID,
		SubscriptionID: visit.SubscriptionID,
		URL:            link.Destination,
		DeviceType:     agent.DeviceType,
		Browser:        agent.Browser,
		CreatedAt:      time.Now().UTC(),
	}
	if err := t.store.RecordClick(ctx, click); err != nil {
		if errors.Is(err, store.ErrCampaignNotFound) {
			// The campaign was discarded after its link was cached.
			t.links.Delete(trackingID)
			return "", ErrUnknownTrackingID
		}
		return "", fmt.Errorf("failed to record click: %w", err)
	}

	metrics.ClicksTotal.Inc()
	t.log.Debug("click recorded",
		zap.Int64("campaign_id", link.CampaignID),
		zap.String("device_type", agent.DeviceType),
		zap.String("browser", agent.Browser))
	return link.Destination, nil
}

func (t *Tracker) lookup(ctx context.Context, trackingID string) (*model.TrackingLink, error) {
	if cached, found := t.links.Get(trackingID); found {
		return cached.(*model.TrackingLink), nil
	}

	link, err := t.store.GetTrackingLink(ctx, trackingID)
	if errors.Is(err, store.ErrTrackingLinkNotFound) {
		return nil, ErrUnknownTrackingID
	}
	if err != nil {
		return nil, err
	}
	t.links.SetDefault(trackingID, link)
	return link, nil
}
