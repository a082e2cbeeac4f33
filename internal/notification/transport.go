package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"push-campaign-backend/config"
	"push-campaign-backend/internal/metrics"
	"push-campaign-backend/internal/model"
)

// bodyExcerptLimit bounds how much of a push service error body ends up in a delivery detail.
const bodyExcerptLimit = 256

// Topic header values must be at most 32 URL-safe base64 characters.
var topicPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of Sender using the webpush library.
type WebPushSender struct{}

// Send encrypts the payload and posts it to the subscription endpoint.
func (s *WebPushSender) Send(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotificationWithContext(ctx, payload, sub, options)
}

// Target is the address and key material of one browser push subscription.
type Target struct {
	Endpoint string
	P256DH   string
	Auth     string
}

// Payload is the JSON document the service worker receives.
type Payload struct {
	Title      string `json:"title"`
	Body       string `json:"body"`
	Icon       string `json:"icon,omitempty"`
	Image      string `json:"image,omitempty"`
	URL        string `json:"url,omitempty"`
	Tag        string `json:"tag,omitempty"`
	CampaignID int64  `json:"campaign_id"`
}

// Outcome is the classified result of one push attempt.
type Outcome struct {
	Status model.DeliveryStatus
	// StatusCode is zero when no response was received.
	StatusCode int
	Detail     string
}

// Transport delivers encrypted payloads to push services.
type Transport struct {
	options webpush.Options
	timeout time.Duration
	sender  Sender
	log     *zap.Logger
}

// NewTransport creates a transport signing requests with the configured VAPID key pair.
func NewTransport(cfg config.PushConfig, log *zap.Logger) *Transport {
	return &Transport{
		options: webpush.Options{
			HTTPClient:      &http.Client{},
			Subscriber:      cfg.Subject,
			TTL:             cfg.TTL,
			Urgency:         webpush.Urgency(cfg.Urgency),
			VAPIDPublicKey:  cfg.PublicKey,
			VAPIDPrivateKey: cfg.PrivateKey,
		},
		timeout: cfg.SendTimeout,
		sender:  &WebPushSender{},
		log:     log,
	}
}

// Send pushes one payload to one target under the transport's per-send
// timeout. It never returns an error; every failure is folded into the Outcome.
func (t *Transport) Send(ctx context.Context, target Target, payload Payload) Outcome {
	body, err := json.Marshal(payload)
	if err != nil {
		return Outcome{Status: model.DeliveryFailed, Detail: fmt.Sprintf("failed to encode payload: %v", err)}
	}

	opts := t.options
	if topicPattern.MatchString(payload.Tag) {
		opts.Topic = payload.Tag
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	sub := &webpush.Subscription{
		Endpoint: target.Endpoint,
		Keys: webpush.Keys{
			P256dh: target.P256DH,
			Auth:   target.Auth,
		},
	}

	metrics.SendsInFlight.Inc()
	resp, err := t.sender.Send(ctx, body, sub, &opts)
	metrics.SendsInFlight.Dec()
	if err != nil {
		t.log.Debug("push request failed", zap.String("endpoint", target.Endpoint), zap.Error(err))
		return Outcome{Status: model.DeliveryFailed, Detail: err.Error()}
	}
	defer resp.Body.Close()

	outcome := Classify(resp.StatusCode, resp.Body)
	if outcome.Status != model.DeliverySuccess {
		t.log.Debug("push service rejected message",
			zap.String("endpoint", target.Endpoint),
			zap.Int("status_code", resp.StatusCode),
			zap.String("outcome", string(outcome.Status)))
	}
	return outcome
}

// Classify maps a push service response to a delivery outcome. 404 and 410
// mean the subscription is gone for good.
func Classify(statusCode int, body io.Reader) Outcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return Outcome{Status: model.DeliverySuccess, StatusCode: statusCode}
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return Outcome{
			Status:     model.DeliveryExpired,
			StatusCode: statusCode,
			Detail:     fmt.Sprintf("push service returned %d", statusCode),
		}
	default:
		detail := fmt.Sprintf("push service returned %d", statusCode)
		if excerpt := readExcerpt(body); excerpt != "" {
			detail += ": " + excerpt
		}
		return Outcome{Status: model.DeliveryFailed, StatusCode: statusCode, Detail: detail}
	}
}

func readExcerpt(body io.Reader) string {
	if body == nil {
		return ""
	}
	b, err := io.ReadAll(io.LimitReader(body, bodyExcerptLimit))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
