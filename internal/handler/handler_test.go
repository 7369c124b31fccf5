package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prizedraw/internal/event"
	"prizedraw/internal/middleware"
	"prizedraw/internal/model"
	"prizedraw/internal/quota"
	"prizedraw/internal/service/activity"
	"prizedraw/internal/service/draw"
	"prizedraw/internal/service/stats"
	"prizedraw/internal/service/user"
	"prizedraw/internal/store"
	"prizedraw/internal/token"
	iutils "prizedraw/internal/utils"
	"prizedraw/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router *gin.Engine
	store  *store.TreeStore
	jwt    *iutils.JWTManager
	users  user.Service
}

// newTestEnv wires the real in-memory services behind a router shaped like
// the production one.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewTreeStore()
	tracker := quota.NewTracker(st)
	registry := token.NewRegistry()
	events := event.NewQueue(64)
	jwtManager := iutils.NewJWTManager("test-secret", "prizedraw-test", time.Hour, 24*time.Hour)

	userSvc := user.NewService(st, jwtManager, 3, 1)
	activitySvc := activity.NewService(st, tracker, registry)
	drawSvc := draw.NewService(st, tracker, registry, events)
	statsSvc := stats.NewService(st, registry, events)

	userHandler := NewUserHandler(userSvc)
	activityHandler := NewActivityHandler(activitySvc)
	drawHandler := NewDrawHandler(drawSvc)
	statsHandler := NewStatsHandler(statsSvc)

	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.POST("/auth/register", userHandler.Register)
	v1.POST("/auth/login", userHandler.Login)
	v1.POST("/auth/refresh", userHandler.RefreshToken)

	authed := v1.Group("", middleware.Auth(jwtManager))
	authed.GET("/users/me", userHandler.Me)
	authed.GET("/users/me/wins", userHandler.MyWinRecords)
	authed.POST("/draw/:activity_id", drawHandler.Draw)

	admin := v1.Group("/admin", middleware.RequireRole(jwtManager, "admin"))
	admin.POST("/activities", activityHandler.CreateActivity)
	admin.GET("/activities", activityHandler.ListActivities)
	admin.GET("/activities/:id", activityHandler.GetActivity)
	admin.PUT("/activities/:id", activityHandler.UpdateActivity)
	admin.POST("/activities/:id/end", activityHandler.EndActivity)
	admin.POST("/activities/:id/preheat", activityHandler.Preheat)
	admin.POST("/activities/:id/plans", activityHandler.SetAllocationPlan)
	admin.GET("/activities/:id/plans", activityHandler.ListAllocationPlans)
	admin.POST("/prizes", activityHandler.CreatePrize)
	admin.GET("/stats/activities/:id", statsHandler.ActivityStats)
	admin.GET("/stats/overview", statsHandler.Overview)
	admin.PUT("/users/quota", userHandler.UpdateQuota)

	return &testEnv{router: router, store: st, jwt: jwtManager, users: userSvc}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(middleware.AuthorizationHeader, middleware.BearerPrefix+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) decode(t *testing.T, w *httptest.ResponseRecorder) *utils.Response {
	t.Helper()
	var resp utils.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return &resp
}

// adminToken bootstraps the admin account the way main does and logs in
// through the API, so the returned token is one a real deployment could issue.
func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	_, err := e.users.EnsureAdmin(context.Background(), "root", "secret123")
	require.NoError(t, err)

	w := e.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "root", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data user.TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.AccessToken)
	return resp.Data.AccessToken
}

func (e *testEnv) registerAndLogin(t *testing.T, username string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{"username": username, "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": username, "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data user.TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.AccessToken)
	return resp.Data.AccessToken
}

func TestAuthFlow(t *testing.T) {
	e := newTestEnv(t)

	token := e.registerAndLogin(t, "alice")

	w := e.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice")

	// No password material in any API response.
	assert.NotContains(t, w.Body.String(), "password")

	w = e.do(t, http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{"username": "alice", "password": "secret123"})
	resp := e.decode(t, w)
	assert.Equal(t, utils.CodeUserExists, resp.Code)
}

func TestAdminRequiresRole(t *testing.T) {
	e := newTestEnv(t)
	userToken := e.registerAndLogin(t, "alice")

	w := e.do(t, http.MethodGet, "/api/v1/admin/activities", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/admin/activities", e.adminToken(t), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// setupCampaign creates an active, preheated activity with immediately
// claimable tickets and returns its ID.
func setupCampaign(t *testing.T, e *testEnv, tickets int) uint64 {
	t.Helper()
	admin := e.adminToken(t)
	now := time.Now()

	w := e.do(t, http.MethodPost, "/api/v1/admin/activities", admin, gin.H{
		"title":      "summer draw",
		"start_time": now.Add(-time.Minute).Format(time.RFC3339),
		"end_time":   now.Add(time.Hour).Format(time.RFC3339),
		"mode":       model.ActivityModeFCFS,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var actResp struct {
		Data model.Activity `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &actResp))
	activityID := actResp.Data.ID

	w = e.do(t, http.MethodPost, "/api/v1/admin/prizes", admin, gin.H{"name": "mug", "total_amount": tickets})
	require.Equal(t, http.StatusOK, w.Code)
	var prizeResp struct {
		Data model.Prize `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &prizeResp))

	w = e.do(t, http.MethodPost, "/api/v1/admin/activities/"+itoa(activityID)+"/plans", admin, gin.H{
		"prize_id": prizeResp.Data.ID,
		"amount":   tickets,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/admin/activities/"+itoa(activityID)+"/preheat", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	return activityID
}

func itoa(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func TestDrawEndpoint(t *testing.T) {
	e := newTestEnv(t)
	activityID := setupCampaign(t, e, 5)
	token := e.registerAndLogin(t, "alice")

	w := e.do(t, http.MethodPost, "/api/v1/draw/"+itoa(activityID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := e.decode(t, w)
	assert.Equal(t, utils.CodeSuccess, resp.Code)
	assert.Contains(t, w.Body.String(), "mug")

	t.Run("BadActivityID", func(t *testing.T) {
		w := e.do(t, http.MethodPost, "/api/v1/draw/notanumber", token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("UnknownActivity", func(t *testing.T) {
		w := e.do(t, http.MethodPost, "/api/v1/draw/424242", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := e.decode(t, w)
		assert.Equal(t, utils.CodeActivityNotFound, resp.Code)
	})
}

func TestDrawQuotaOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	activityID := setupCampaign(t, e, 100)
	token := e.registerAndLogin(t, "alice")

	// Default draw quota is three.
	for i := 0; i < 3; i++ {
		w := e.do(t, http.MethodPost, "/api/v1/draw/"+itoa(activityID), token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := e.decode(t, w)
		assert.Equal(t, utils.CodeSuccess, resp.Code)
	}

	w := e.do(t, http.MethodPost, "/api/v1/draw/"+itoa(activityID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := e.decode(t, w)
	assert.Equal(t, utils.CodeDrawQuotaExhausted, resp.Code)
	assert.Equal(t, "draw quota exhausted", resp.Message)
}

func TestStatsEndpoints(t *testing.T) {
	e := newTestEnv(t)
	activityID := setupCampaign(t, e, 5)
	admin := e.adminToken(t)

	w := e.do(t, http.MethodGet, "/api/v1/admin/stats/activities/"+itoa(activityID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tickets_remaining")

	w = e.do(t, http.MethodGet, "/api/v1/admin/stats/overview", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "store_entries")
}

func TestUpdateQuotaEndpoint(t *testing.T) {
	e := newTestEnv(t)
	_ = e.registerAndLogin(t, "alice")
	admin := e.adminToken(t)

	w := e.do(t, http.MethodPut, "/api/v1/admin/users/quota", admin, gin.H{
		"user_id":    1,
		"draw_quota": 10,
		"win_quota":  4,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"draw_quota":10`)

	w = e.do(t, http.MethodPut, "/api/v1/admin/users/quota", admin, gin.H{
		"user_id":    999,
		"draw_quota": 1,
		"win_quota":  1,
	})
	resp := e.decode(t, w)
	assert.Equal(t, utils.CodeUserNotFound, resp.Code)
}
