package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/Geovid/app/dto"
	"github.com/amirphl/Geovid/app/handlers"
	"github.com/amirphl/Geovid/app/middleware"
	"github.com/amirphl/Geovid/app/services"
	businessflow "github.com/amirphl/Geovid/business_flow"
	"github.com/amirphl/Geovid/config"
	"github.com/amirphl/Geovid/models"
	testingutil "github.com/amirphl/Geovid/testing"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUserInfo struct{}

func (stubUserInfo) Name() string { return "stub" }

func (stubUserInfo) FetchProfile(_ context.Context, token string) (*models.ExternalProfile, error) {
	if token != "provider-token-ok" {
		return nil, services.ErrProviderRejected
	}
	return &models.ExternalProfile{ExternalID: "ext-1", Provider: "stub", Email: "viewer@example.com"}, nil
}

type testServer struct {
	app    *fiber.App
	store  *testingutil.MemoryStore
	fx     *testingutil.TestFixtures
	tokens services.TokenService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := testingutil.NewMemoryStore()
	tokens, err := services.NewTokenService(time.Hour, 24*time.Hour, "geovid-test", "geovid-test", "test-secret-key-for-jwt-signing-32-chars")
	require.NoError(t, err)

	resolver := businessflow.NewTagResolver(store.Tags(), logger)
	tagging := businessflow.NewTagAssignmentFlow(store.Videos(), store.Links(), store.Counters(), resolver, logger)
	cascade := businessflow.NewCascadeDeleteFlow(store.Users(), store.Videos(), store.Tags(), store.Links(),
		store.Counters(), store.Likes(), store.Comments(), store.Views(), logger)
	reconcile := businessflow.NewReconciliationFlow(store.Videos(), store.Tags(), store.Links(),
		store.Counters(), store.Likes(), store.Comments(), store.Views(), 100, logger)
	identity := businessflow.NewIdentityFlow(store.Users(), store.Users(), businessflow.IdentityOptions{Provider: "stub", UseAtomicUpsert: true}, logger)
	engagement := businessflow.NewEngagementFlow(store.Videos(), store.Counters(), store.Likes(), store.Comments(), store.Views(), logger)
	videos := businessflow.NewVideoFlow(store.Videos(), tagging, cascade, logger)
	auth := businessflow.NewAuthFlow(stubUserInfo{}, identity, tokens, logger)

	cfg := &config.ProductionConfig{
		Env:    "development",
		Server: config.ServerConfig{BodyLimit: 4 * 1024 * 1024},
		Security: config.SecurityConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}

	r := NewFiberRouter(cfg, Handlers{
		Auth:       handlers.NewAuthHandler(auth, tokens, logger),
		Video:      handlers.NewVideoHandler(videos, logger),
		Engagement: handlers.NewEngagementHandler(engagement, logger),
		Admin:      handlers.NewAdminHandler(cascade, reconcile, nil, logger),
	}, middleware.NewAuthMiddleware(tokens), logger)
	r.SetupRoutes()

	return &testServer{
		app:    r.GetApp(),
		store:  store,
		fx:     testingutil.NewMemoryFixtures(store),
		tokens: tokens,
	}
}

func (s *testServer) bearer(t *testing.T, userID uint, isAdmin bool) string {
	t.Helper()
	access, _, err := s.tokens.GenerateTokens(userID, isAdmin)
	require.NoError(t, err)
	return "Bearer " + access
}

func (s *testServer) do(t *testing.T, method, path, auth string, body any) (*http.Response, dto.APIResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := s.app.Test(req)
	require.NoError(t, err)

	var out dto.APIResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func errorCode(t *testing.T, res dto.APIResponse) string {
	t.Helper()
	detail, ok := res.Error.(map[string]any)
	require.True(t, ok, "expected error detail, got %#v", res.Error)
	code, _ := detail["code"].(string)
	return code
}

func TestHealthAndSwagger(t *testing.T) {
	s := newTestServer(t)

	resp, res := s.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, res.Success)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, _ = s.do(t, http.MethodGet, "/api/v1/swagger.json", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, res = s.do(t, http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(t, res))
}

func TestLoginRoute(t *testing.T) {
	s := newTestServer(t)

	resp, res := s.do(t, http.MethodPost, "/api/v1/auth/oauth/login", "", dto.OAuthLoginRequest{AccessToken: "provider-token-ok"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := res.Data.(map[string]any)
	tokens := data["tokens"].(map[string]any)
	assert.Equal(t, "Bearer", tokens["token_type"])
	assert.Equal(t, 1, s.store.RowCount("users"))

	resp, res = s.do(t, http.MethodPost, "/api/v1/auth/oauth/login", "", dto.OAuthLoginRequest{AccessToken: "provider-token-bad"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "LOGIN_REJECTED", errorCode(t, res))

	resp, res = s.do(t, http.MethodPost, "/api/v1/auth/oauth/login", "", dto.OAuthLoginRequest{AccessToken: "short"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, res.Success)

	refresh := tokens["refresh_token"].(string)
	resp, _ = s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", dto.RefreshTokenRequest{RefreshToken: refresh})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestVideoRoutes(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	owner, err := s.fx.CreateTestUser(ctx)
	require.NoError(t, err)
	stranger, err := s.fx.CreateTestUser(ctx)
	require.NoError(t, err)

	create := dto.CreateVideoRequest{
		Title:    "Sunset at the pier",
		MediaURL: "https://cdn.example.com/v/1.mp4",
		Tags:     []string{"Beach", "Sunset"},
	}

	t.Run("RequiresToken", func(t *testing.T) {
		resp, res := s.do(t, http.MethodPost, "/api/v1/videos", "", create)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "MISSING_AUTHORIZATION_HEADER", errorCode(t, res))

		resp, res = s.do(t, http.MethodPost, "/api/v1/videos", "Bearer not-a-jwt", create)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "TOKEN_INVALID", errorCode(t, res))
	})

	t.Run("Validation", func(t *testing.T) {
		bad := create
		bad.MediaURL = "not a url"
		resp, res := s.do(t, http.MethodPost, "/api/v1/videos", s.bearer(t, owner.ID, false), bad)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, res))
	})

	var videoID uint
	t.Run("Create", func(t *testing.T) {
		resp, res := s.do(t, http.MethodPost, "/api/v1/videos", s.bearer(t, owner.ID, false), create)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		video := res.Data.(map[string]any)["video"].(map[string]any)
		videoID = uint(video["id"].(float64))
		assert.Equal(t, 2, s.store.RowCount("video_tags"))
	})

	t.Run("StrangerCannotDelete", func(t *testing.T) {
		resp, res := s.do(t, http.MethodDelete, "/api/v1/videos/"+itoa(videoID), s.bearer(t, stranger.ID, false), nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "FORBIDDEN", errorCode(t, res))
	})

	t.Run("EngagementAndAnonymousView", func(t *testing.T) {
		resp, _ := s.do(t, http.MethodPost, "/api/v1/videos/"+itoa(videoID)+"/like", s.bearer(t, stranger.ID, false), nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = s.do(t, http.MethodPost, "/api/v1/videos/"+itoa(videoID)+"/views", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 1, s.store.RowCount("video_views"))

		resp, _ = s.do(t, http.MethodPost, "/api/v1/videos/abc/like", s.bearer(t, stranger.ID, false), nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("OwnerDeletes", func(t *testing.T) {
		resp, _ := s.do(t, http.MethodDelete, "/api/v1/videos/"+itoa(videoID), s.bearer(t, owner.ID, false), nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 0, s.store.RowCount("videos"))
		assert.Equal(t, 0, s.store.RowCount("video_tags"))
		assert.Equal(t, 0, s.store.RowCount("likes"))

		resp, _ = s.do(t, http.MethodDelete, "/api/v1/videos/"+itoa(videoID), s.bearer(t, owner.ID, false), nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	user, err := s.fx.CreateTestUser(ctx)
	require.NoError(t, err)
	tag, err := s.fx.CreateTestTag(ctx, "drifted", 5)
	require.NoError(t, err)
	_, err = s.fx.CreateTaggedVideo(ctx, user.ID, tag)
	require.NoError(t, err)

	admin := s.bearer(t, 999, true)

	resp, res := s.do(t, http.MethodGet, "/api/v1/admin/maintenance/tag-drift", s.bearer(t, user.ID, false), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "ADMIN_REQUIRED", errorCode(t, res))

	resp, res = s.do(t, http.MethodGet, "/api/v1/admin/maintenance/tag-drift?only_drifted=true", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := res.Data.(map[string]any)
	assert.EqualValues(t, 1, report["drifted_count"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/maintenance/tag-drift.xlsx", nil)
	req.Header.Set("Authorization", admin)
	xresp, err := s.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, xresp.StatusCode)
	assert.Contains(t, xresp.Header.Get("Content-Disposition"), "attachment")
	body, err := io.ReadAll(xresp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("PK")))

	resp, _ = s.do(t, http.MethodPost, "/api/v1/admin/maintenance/reconcile-tags", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stored, err := s.store.Counters().TagUsage(ctx, tag.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored)

	resp, res = s.do(t, http.MethodGet, "/api/v1/admin/maintenance/last-report", admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NO_REPORT", errorCode(t, res))

	resp, res = s.do(t, http.MethodPost, "/api/v1/admin/users/delete", admin, dto.DeleteUsersRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, res))

	resp, _ = s.do(t, http.MethodPost, "/api/v1/admin/users/delete", admin, dto.DeleteUsersRequest{IDs: []uint{user.ID}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, s.store.RowCount("users"))
	assert.Equal(t, 0, s.store.RowCount("videos"))
}
