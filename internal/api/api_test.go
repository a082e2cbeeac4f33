package api

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"push-campaign-backend/config"
	"push-campaign-backend/internal/db"
	"push-campaign-backend/internal/dispatch"
	"push-campaign-backend/internal/model"
	"push-campaign-backend/internal/store"
	"push-campaign-backend/internal/tracking"
)

const tenantHeader = "X-Tenant-ID"

func init() {
	gin.SetMode(gin.TestMode)
}

// stubSender returns a canned dispatch result.
type stubSender struct {
	result   *dispatch.Result
	err      error
	tenantID string
	msg      dispatch.Message
}

func (s *stubSender) Dispatch(ctx context.Context, tenantID string, msg dispatch.Message) (*dispatch.Result, error) {
	s.tenantID, s.msg = tenantID, msg
	return s.result, s.err
}

type testEnv struct {
	router  *gin.Engine
	store   store.Store
	sender  *stubSender
	tracker *tracking.Tracker
}

func setupRouter(t *testing.T) *testEnv {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gormDB))

	s := store.NewGormStore(gormDB)
	log := zaptest.NewLogger(t)
	tracker := tracking.NewTracker(s, "https://t.example.com", cache.New(time.Minute, time.Minute), log)
	sender := &stubSender{}
	h := NewHandler(s, sender, tracker, "BPublicKey", cache.New(time.Minute, time.Minute), log)
	cfg := config.ServerConfig{TenantHeader: tenantHeader, RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 30}

	return &testEnv{router: NewRouter(h, cfg, log), store: s, sender: sender, tracker: tracker}
}

func (e *testEnv) do(method, path, tenant string, body any, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tenant != "" {
		req.Header.Set(tenantHeader, tenant)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func browserKeys(t *testing.T) map[string]string {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	return map[string]string{
		"p256dh": base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
		"auth":   base64.RawURLEncoding.EncodeToString(auth),
	}
}

func TestPutSubscription(t *testing.T) {
	env := setupRouter(t)
	keys := browserKeys(t)
	android := "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36"

	testCases := []struct {
		name           string
		tenant         string
		body           any
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Empty body",
			tenant:         "acme",
			body:           nil,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"invalid request"}`,
		},
		{
			name:           "Missing tenant",
			body:           map[string]any{"endpoint": "https://push.example.com/a", "keys": keys},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Missing keys",
			tenant:         "acme",
			body:           map[string]any{"endpoint": "https://push.example.com/a"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "New endpoint",
			tenant:         "acme",
			body:           map[string]any{"endpoint": "https://push.example.com/a", "keys": keys},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Same endpoint again",
			tenant:         "acme",
			body:           map[string]any{"endpoint": "https://push.example.com/a", "keys": keys},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"already subscribed"}`,
		},
		{
			name:           "Same endpoint from another tenant",
			tenant:         "globex",
			body:           map[string]any{"endpoint": "https://push.example.com/a", "keys": keys},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"already subscribed"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(http.MethodPut, "/api/subscriptions", tc.tenant, tc.body, "User-Agent", android)
			assert.Equal(t, tc.expectedStatus, w.Code, w.Body.String())
			if tc.expectedBody != "" {
				assert.JSONEq(t, tc.expectedBody, w.Body.String())
			}
		})
	}

	active, err := env.store.ListActive(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "mobile", active[0].DeviceType)
	assert.Equal(t, "Chrome", active[0].Browser)
}

func TestDeleteSubscriptionAndSummary(t *testing.T) {
	env := setupRouter(t)
	keys := browserKeys(t)
	for _, ep := range []string{"https://push.example.com/a", "https://push.example.com/b"} {
		w := env.do(http.MethodPut, "/api/subscriptions", "acme", map[string]any{"endpoint": ep, "keys": keys})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := env.do(http.MethodGet, "/api/subscriptions/summary", "acme", nil)
	assert.JSONEq(t, `{"active":2}`, w.Body.String())

	for i := 0; i < 2; i++ {
		w = env.do(http.MethodDelete, "/api/subscriptions", "acme", map[string]string{"endpoint": "https://push.example.com/a"})
		assert.Equal(t, http.StatusNoContent, w.Code)
	}

	w = env.do(http.MethodGet, "/api/subscriptions/summary", "acme", nil)
	assert.JSONEq(t, `{"active":1}`, w.Body.String())
}

func TestPostCampaign(t *testing.T) {
	verrs := validation.Errors{"title": errors.New("cannot be blank")}

	testCases := []struct {
		name           string
		body           any
		result         *dispatch.Result
		err            error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Dispatched",
			body:           map[string]string{"title": "x", "body": "y"},
			result:         &dispatch.Result{CampaignID: 4, TotalSent: 3, Success: 1, Failed: 2, Expired: 1},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"campaign_id":4,"total_sent":3,"success":1,"failed":2,"expired":1}`,
		},
		{
			name:           "Invalid message",
			body:           map[string]string{"body": "y"},
			err:            fmt.Errorf("%w: %w", dispatch.ErrInvalidMessage, verrs),
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"invalid message","fields":{"title":"cannot be blank"}}`,
		},
		{
			name:           "Tag too long for storage",
			body:           map[string]string{"title": "x", "body": "y", "tag": strings.Repeat("t", 129)},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"invalid message","fields":{"tag":"the length must be no more than 128"}}`,
		},
		{
			name:           "Nobody subscribed",
			body:           map[string]string{"title": "x", "body": "y"},
			err:            dispatch.ErrNoActiveSubscribers,
			expectedStatus: http.StatusConflict,
			expectedBody:   `{"error":"nothing to send"}`,
		},
		{
			name:           "Storage down",
			body:           map[string]string{"title": "x", "body": "y"},
			err:            errors.New("connection refused"),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"could not complete, try again"}`,
		},
		{
			name:           "Malformed JSON",
			body:           "{",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"invalid request"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := setupRouter(t)
			env.sender.result, env.sender.err = tc.result, tc.err

			w := env.do(http.MethodPost, "/api/campaigns", "acme", tc.body)

			assert.Equal(t, tc.expectedStatus, w.Code)
			assert.JSONEq(t, tc.expectedBody, w.Body.String())
		})
	}
}

func TestPostCampaign_PassesTenantAndMessage(t *testing.T) {
	env := setupRouter(t)
	env.sender.result = &dispatch.Result{}

	env.do(http.MethodPost, "/api/campaigns", "acme", map[string]string{"title": "Sale", "body": "50% off", "url": "https://shop.example.com", "tag": "spring"})

	assert.Equal(t, "acme", env.sender.tenantID)
	assert.Equal(t, dispatch.Message{Title: "Sale", Body: "50% off", URL: "https://shop.example.com", Tag: "spring"}, env.sender.msg)
}

func TestPostCampaign_PassesRelativeURLs(t *testing.T) {
	env := setupRouter(t)
	env.sender.result = &dispatch.Result{}

	w := env.do(http.MethodPost, "/api/campaigns", "acme", map[string]string{"title": "Sale", "body": "b", "icon": "/uploads/icon.png", "url": "/promo"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/uploads/icon.png", env.sender.msg.Icon)
	assert.Equal(t, "/promo", env.sender.msg.URL)
}

func seedCompletedCampaign(t *testing.T, s store.Store, tenant string) *model.Campaign {
	ctx := context.Background()
	sub, err := s.Create(ctx, tenant, "https://push.example.com/"+tenant, model.Keys{P256DH: "p", Auth: "a"}, model.DeviceInfo{})
	require.NoError(t, err)
	c := &model.Campaign{TenantID: tenant, Title: "Sale", Body: "b", TotalSent: 1, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.OpenCampaign(ctx, c))
	require.NoError(t, s.Record(ctx, c.ID, sub.ID, model.DeliverySuccess, ""))
	done, err := s.FinalizeCampaign(ctx, store.Finalization{CampaignID: c.ID, At: time.Now().UTC()})
	require.NoError(t, err)
	return done
}

func TestListCampaignsAndDeliveries(t *testing.T) {
	env := setupRouter(t)
	campaign := seedCompletedCampaign(t, env.store, "acme")

	w := env.do(http.MethodGet, "/api/campaigns", "acme", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Campaigns []model.Campaign `json:"campaigns"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Campaigns, 1)
	assert.Equal(t, campaign.ID, list.Campaigns[0].ID)
	assert.Equal(t, int64(1), list.Campaigns[0].TotalSuccess)

	w = env.do(http.MethodGet, "/api/campaigns", "globex", nil)
	assert.JSONEq(t, `{"campaigns":[],"limit":20,"offset":0}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/campaigns?limit=500", "acme", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	path := fmt.Sprintf("/api/campaigns/%d/deliveries", campaign.ID)
	w = env.do(http.MethodGet, path, "acme", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"success"`)

	w = env.do(http.MethodGet, path, "globex", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/campaigns/abc/deliveries", "acme", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListCampaigns_ShowsClicksImmediately(t *testing.T) {
	env := setupRouter(t)
	campaign := seedCompletedCampaign(t, env.store, "acme")
	wrapped, err := env.tracker.WrapURL(context.Background(), campaign.ID, "https://shop.example.com/sale")
	require.NoError(t, err)

	clicks := func() int64 {
		w := env.do(http.MethodGet, "/api/campaigns", "acme", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-Cache"))
		var list struct {
			Campaigns []model.Campaign `json:"campaigns"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
		require.Len(t, list.Campaigns, 1)
		return list.Campaigns[0].TotalClicks
	}

	assert.Zero(t, clicks())
	w := env.do(http.MethodGet, strings.TrimPrefix(wrapped, "https://t.example.com"), "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, int64(1), clicks())
}

func TestListDeliveries_IsCached(t *testing.T) {
	env := setupRouter(t)
	campaign := seedCompletedCampaign(t, env.store, "acme")
	path := fmt.Sprintf("/api/campaigns/%d/deliveries", campaign.ID)

	first := env.do(http.MethodGet, path, "acme", nil)
	require.Equal(t, http.StatusOK, first.Code)
	second := env.do(http.MethodGet, path, "acme", nil)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestFollowTrackingLink(t *testing.T) {
	env := setupRouter(t)
	campaign := seedCompletedCampaign(t, env.store, "acme")

	wrapped, err := env.tracker.WrapURL(context.Background(), campaign.ID, "https://shop.example.com/sale")
	require.NoError(t, err)
	path := strings.TrimPrefix(wrapped, "https://t.example.com")

	w := env.do(http.MethodGet, path+"?sub=17", "", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://shop.example.com/sale", w.Header().Get("Location"))

	w = env.do(http.MethodGet, path+"?sub=garbage", "", nil)
	assert.Equal(t, http.StatusFound, w.Code)

	w = env.do(http.MethodGet, "/c/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var stored model.Campaign
	require.NoError(t, env.store.DB().First(&stored, campaign.ID).Error)
	assert.Equal(t, int64(2), stored.TotalClicks)

	var clicks []model.Click
	require.NoError(t, env.store.DB().Order("id").Find(&clicks).Error)
	require.Len(t, clicks, 2)
	require.NotNil(t, clicks[0].SubscriptionID)
	assert.Equal(t, int64(17), *clicks[0].SubscriptionID)
	assert.Nil(t, clicks[1].SubscriptionID)
}

func TestGetVAPIDPublicKeyAndHealth(t *testing.T) {
	env := setupRouter(t)

	w := env.do(http.MethodGet, "/api/vapid_public_key", "", nil)
	assert.JSONEq(t, `{"public_key":"BPublicKey"}`, w.Body.String())

	w = env.do(http.MethodGet, "/healthz", "", nil)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = env.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
