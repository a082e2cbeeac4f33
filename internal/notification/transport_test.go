package notification

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"push-campaign-backend/config"
	"push-campaign-backend/internal/model"
)

// mockSender is a mock implementation of the Sender interface.
type mockSender struct {
	SendFunc func(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(ctx, payload, sub, options)
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func testPushConfig() config.PushConfig {
	return config.PushConfig{
		PublicKey:   "pub",
		PrivateKey:  "priv",
		Subject:     "ops@example.com",
		TTL:         3600,
		Urgency:     "normal",
		SendTimeout: time.Second,
	}
}

func TestTransport_SendClassifiesResponses(t *testing.T) {
	testCases := []struct {
		name           string
		status         int
		body           string
		err            error
		expectedStatus model.DeliveryStatus
		expectedDetail string
	}{
		{name: "Created is success", status: http.StatusCreated, expectedStatus: model.DeliverySuccess},
		{name: "OK is success", status: http.StatusOK, expectedStatus: model.DeliverySuccess},
		{name: "Gone is expired", status: http.StatusGone, expectedStatus: model.DeliveryExpired, expectedDetail: "push service returned 410"},
		{name: "Not found is expired", status: http.StatusNotFound, expectedStatus: model.DeliveryExpired, expectedDetail: "push service returned 404"},
		{name: "Server error keeps the body", status: http.StatusInternalServerError, body: "upstream exploded\n", expectedStatus: model.DeliveryFailed, expectedDetail: "push service returned 500: upstream exploded"},
		{name: "Too many requests is failed", status: http.StatusTooManyRequests, expectedStatus: model.DeliveryFailed, expectedDetail: "push service returned 429"},
		{name: "Network error is failed", err: errors.New("dial tcp: connection refused"), expectedStatus: model.DeliveryFailed, expectedDetail: "dial tcp: connection refused"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTransport(testPushConfig(), zaptest.NewLogger(t))
			tr.sender = &mockSender{
				SendFunc: func(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
					if tc.err != nil {
						return nil, tc.err
					}
					return response(tc.status, tc.body), nil
				},
			}

			outcome := tr.Send(context.Background(), Target{Endpoint: "https://push.example/a", P256DH: "p", Auth: "a"}, Payload{Title: "t", Body: "b"})

			assert.Equal(t, tc.expectedStatus, outcome.Status)
			assert.Equal(t, tc.expectedDetail, outcome.Detail)
			if tc.err == nil {
				assert.Equal(t, tc.status, outcome.StatusCode)
			}
		})
	}
}

func TestTransport_SendBuildsRequest(t *testing.T) {
	tr := NewTransport(testPushConfig(), zaptest.NewLogger(t))

	var gotPayload Payload
	tr.sender = &mockSender{
		SendFunc: func(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			require.NoError(t, json.Unmarshal(payload, &gotPayload))
			assert.Equal(t, "https://push.example/a", sub.Endpoint)
			assert.Equal(t, "key", sub.Keys.P256dh)
			assert.Equal(t, "secret", sub.Keys.Auth)
			assert.Equal(t, "spring-sale", options.Topic)
			assert.Equal(t, 3600, options.TTL)
			assert.Equal(t, webpush.UrgencyNormal, options.Urgency)
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return response(http.StatusCreated, ""), nil
		},
	}

	payload := Payload{Title: "Sale", Body: "50% off", URL: "https://t.example/c/1?sub=9", Tag: "spring-sale", CampaignID: 12}
	outcome := tr.Send(context.Background(), Target{Endpoint: "https://push.example/a", P256DH: "key", Auth: "secret"}, payload)

	assert.Equal(t, model.DeliverySuccess, outcome.Status)
	assert.Equal(t, payload, gotPayload)
}

func TestTransport_SendDropsInvalidTopic(t *testing.T) {
	tr := NewTransport(testPushConfig(), zaptest.NewLogger(t))
	tr.sender = &mockSender{
		SendFunc: func(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			assert.Empty(t, options.Topic)
			return response(http.StatusCreated, ""), nil
		},
	}

	tr.Send(context.Background(), Target{Endpoint: "https://push.example/a"}, Payload{Tag: "has spaces and is far too long for a topic"})
}

func TestTransport_SendTimesOut(t *testing.T) {
	cfg := testPushConfig()
	cfg.SendTimeout = 20 * time.Millisecond
	tr := NewTransport(cfg, zaptest.NewLogger(t))
	tr.sender = &mockSender{
		SendFunc: func(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	start := time.Now()
	outcome := tr.Send(context.Background(), Target{Endpoint: "https://push.example/slow"}, Payload{})

	assert.Equal(t, model.DeliveryFailed, outcome.Status)
	assert.Contains(t, outcome.Detail, "deadline exceeded")
	assert.Less(t, time.Since(start), time.Second)
}

// newBrowserKeys returns the p256dh and auth values a browser would hand out.
func newBrowserKeys(t *testing.T) (string, string) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
		base64.RawURLEncoding.EncodeToString(auth)
}

func TestTransport_SendAgainstPushService(t *testing.T) {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "aes128gcm", r.Header.Get("Content-Encoding"))
		assert.Equal(t, "3600", r.Header.Get("TTL"))
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "vapid t="), r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NotEmpty(t, body)

		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusCreated)
		case "/gone":
			w.WriteHeader(http.StatusGone)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("try later"))
		}
	}))
	defer srv.Close()

	cfg := testPushConfig()
	cfg.PublicKey, cfg.PrivateKey = publicKey, privateKey
	tr := NewTransport(cfg, zaptest.NewLogger(t))

	p256dh, auth := newBrowserKeys(t)
	payload := Payload{Title: "Hello", Body: "World", CampaignID: 1}

	ok := tr.Send(context.Background(), Target{Endpoint: srv.URL + "/ok", P256DH: p256dh, Auth: auth}, payload)
	assert.Equal(t, model.DeliverySuccess, ok.Status)

	gone := tr.Send(context.Background(), Target{Endpoint: srv.URL + "/gone", P256DH: p256dh, Auth: auth}, payload)
	assert.Equal(t, model.DeliveryExpired, gone.Status)

	busy := tr.Send(context.Background(), Target{Endpoint: srv.URL + "/busy", P256DH: p256dh, Auth: auth}, payload)
	assert.Equal(t, model.DeliveryFailed, busy.Status)
	assert.Equal(t, "push service returned 503: try later", busy.Detail)
}

func TestTransport_SendWithBadKeysFails(t *testing.T) {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	cfg := testPushConfig()
	cfg.PublicKey, cfg.PrivateKey = publicKey, privateKey
	tr := NewTransport(cfg, zaptest.NewLogger(t))

	outcome := tr.Send(context.Background(), Target{Endpoint: "http://127.0.0.1:1/never", P256DH: "not-a-key", Auth: "x"}, Payload{Title: "t"})
	assert.Equal(t, model.DeliveryFailed, outcome.Status)
	assert.NotEmpty(t, outcome.Detail)
}
