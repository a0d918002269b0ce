package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dispatch/config"
	"dispatch/internal/auth"
	"dispatch/internal/database/dbtest"
	"dispatch/internal/domain"
	"dispatch/internal/models"
	"dispatch/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testApp struct {
	*App
	cfg *config.Config
	db  *gorm.DB
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Env: "test"},
		JWT:    config.JWTConfig{AccessSecret: "secret", AccessExpiry: time.Minute, Issuer: "dispatch"},
		Dispatch: config.DispatchConfig{
			FanoutWorkers: 4,
			PushTimeout:   time.Second,
			MarkTimeout:   time.Second,
			BatchSize:     100,
			TitleMax:      255,
			BodyMax:       2000,
		},
		RateLimit: config.RateLimitConfig{PerSecond: 1000, Burst: 1000},
	}
	db := dbtest.New(t)
	app := Setup(cfg, db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(app.Close)
	return &testApp{App: app, cfg: cfg, db: db}
}

func (a *testApp) user(t *testing.T, email, role string, city *uint) *models.User {
	t.Helper()
	u := &models.User{Email: email, Role: role, CityID: city}
	require.NoError(t, a.db.Create(u).Error)
	return u
}

func (a *testApp) token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := auth.GenerateAccessToken(&a.cfg.JWT, u.ID, u.Email, u.Role)
	require.NoError(t, err)
	return tok
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.Engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type listResponse struct {
	Notifications []models.Notification `json:"notifications"`
	Pagination    struct {
		Page       int   `json:"page"`
		Limit      int   `json:"limit"`
		Total      int64 `json:"total"`
		TotalPages int64 `json:"total_pages"`
	} `json:"pagination"`
}

func TestNotificationsFlow(t *testing.T) {
	app := setupTestApp(t)
	admin := app.user(t, "admin@example.com", domain.RoleAdmin, nil)
	customer := app.user(t, "c@example.com", domain.RoleCustomer, nil)
	adminTok, customerTok := app.token(t, admin), app.token(t, customer)

	for i := 0; i < 3; i++ {
		w := app.do(t, http.MethodPost, "/api/v1/admin/notifications/send", adminTok, gin.H{
			"user_id": customer.ID,
			"type":    domain.NotificationOrder,
			"title":   fmt.Sprintf("Order #%d", i),
			"body":    "Your order is on the way",
			"data":    gin.H{"order_id": i},
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := app.do(t, http.MethodGet, "/api/v1/me/notifications?page=1&limit=2", customerTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[listResponse](t, w)
	assert.Len(t, list.Notifications, 2)
	assert.Equal(t, int64(3), list.Pagination.Total)
	assert.Equal(t, int64(2), list.Pagination.TotalPages)

	w = app.do(t, http.MethodPut, "/api/v1/me/notifications/"+list.Notifications[0].ID+"/read", customerTok, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/me/notifications/unread-count", customerTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":2}`, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/v1/me/notifications?unread_only=true", customerTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), decode[listResponse](t, w).Pagination.Total)

	w = app.do(t, http.MethodPut, "/api/v1/me/notifications/read-all", customerTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","updated":2}`, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/v1/me/notifications/unread-count", customerTok, nil)
	assert.JSONEq(t, `{"count":0}`, w.Body.String())
}

func TestMarkRead_OtherUsersNotification(t *testing.T) {
	app := setupTestApp(t)
	admin := app.user(t, "admin@example.com", domain.RoleAdmin, nil)
	alice := app.user(t, "alice@example.com", domain.RoleCustomer, nil)
	bob := app.user(t, "bob@example.com", domain.RoleCustomer, nil)

	w := app.do(t, http.MethodPost, "/api/v1/admin/notifications/send", app.token(t, admin), gin.H{
		"user_id": alice.ID, "type": domain.NotificationChat, "title": "New message", "body": "Hi!",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	n := decode[models.Notification](t, w)

	w = app.do(t, http.MethodPut, "/api/v1/me/notifications/"+n.ID+"/read", app.token(t, bob), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminEndpoints_Validation(t *testing.T) {
	app := setupTestApp(t)
	admin := app.user(t, "admin@example.com", domain.RoleAdmin, nil)
	customer := app.user(t, "c@example.com", domain.RoleCustomer, nil)
	adminTok := app.token(t, admin)

	w := app.do(t, http.MethodPost, "/api/v1/admin/notifications/send", app.token(t, customer), gin.H{
		"user_id": customer.ID, "type": domain.NotificationSystem, "title": "t", "body": "b",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/admin/notifications/send", adminTok, gin.H{
		"user_id": customer.ID, "type": "SPAM", "title": "t", "body": "b",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/admin/notifications/broadcast", adminTok, gin.H{
		"type": domain.NotificationSystem, "title": "t", "body": "b",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/admin/notifications/broadcast", adminTok, gin.H{
		"city_id": 404, "type": domain.NotificationSystem, "title": "t", "body": "b",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no targets")

	w = app.do(t, http.MethodGet, "/api/v1/me/notifications?page=0", app.token(t, customer), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestList_RejectsOutOfRangePage(t *testing.T) {
	app := setupTestApp(t)
	u := app.user(t, "c@example.com", domain.RoleCustomer, nil)
	tok := app.token(t, u)

	for _, page := range []string{"100001", "9223372036854775807"} {
		w := app.do(t, http.MethodGet, "/api/v1/me/notifications?limit=100&page="+page, tok, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, page)
	}
	w := app.do(t, http.MethodGet, "/api/v1/me/notifications?limit=100&page=100000", tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBroadcast_CityScopeWithLiveConnection(t *testing.T) {
	app := setupTestApp(t)
	city := uint(10)
	admin := app.user(t, "admin@example.com", domain.RoleAdmin, nil)
	online := app.user(t, "on@example.com", domain.RoleCustomer, &city)
	offline := app.user(t, "off@example.com", domain.RoleDriver, &city)
	_ = app.user(t, "elsewhere@example.com", domain.RoleCustomer, nil)

	client := ws.NewClient(online.ID, online.Role, 8)
	app.Hub.Register(client)
	defer client.Close()

	w := app.do(t, http.MethodPost, "/api/v1/admin/notifications/broadcast", app.token(t, admin), gin.H{
		"city_id": city, "type": domain.NotificationPromotion, "title": "Free delivery", "body": "All weekend",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"count":2}`, w.Body.String())
	app.Notifications.Wait()

	var frame ws.Envelope
	require.NoError(t, json.Unmarshal(<-client.Send, &frame))
	assert.Equal(t, domain.EventNotification, frame.Event)

	var rows []models.Notification
	require.NoError(t, app.db.WithContext(context.Background()).Order("recipient_id").Find(&rows).Error)
	require.Len(t, rows, 2)
	pushed := map[uint]bool{}
	for _, r := range rows {
		pushed[r.RecipientID] = r.IsPushSent
	}
	assert.Equal(t, map[uint]bool{online.ID: true, offline.ID: false}, pushed)
}

func TestRegisterFCMToken(t *testing.T) {
	app := setupTestApp(t)
	u := app.user(t, "c@example.com", domain.RoleCustomer, nil)

	w := app.do(t, http.MethodPost, "/api/v1/me/fcm-token", app.token(t, u), gin.H{"token": "device-1"})
	require.Equal(t, http.StatusOK, w.Code)

	var got models.User
	require.NoError(t, app.db.First(&got, u.ID).Error)
	assert.Equal(t, "device-1", got.FCMToken)

	w = app.do(t, http.MethodPost, "/api/v1/me/fcm-token", app.token(t, u), gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthz(t *testing.T) {
	app := setupTestApp(t)
	w := app.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","online_clients":0}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
