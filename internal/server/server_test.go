package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mfarzz/jobai/internal/ai"
	"github.com/mfarzz/jobai/internal/analysis"
	"github.com/mfarzz/jobai/internal/config"
	"github.com/mfarzz/jobai/internal/errors"
	"github.com/mfarzz/jobai/internal/quest"
	"github.com/mfarzz/jobai/internal/store"
	"github.com/mfarzz/jobai/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGateway answers quest prompts with a fixed quest and everything
// else with a fixed analysis
type scriptedGateway struct{}

func (scriptedGateway) Complete(_ context.Context, prompt string) (*ai.Completion, error) {
	if strings.Contains(prompt, "Theme focus:") {
		return &ai.Completion{Text: `{
			"question": "A customer escalates an outage. What do you do?",
			"options": [
				{"label": "A", "text": "Apologize and wait", "xp": 20},
				{"label": "B", "text": "Acknowledge and share a plan", "xp": 90, "explanation": "Sets expectations."},
				{"label": "C", "text": "Forward to engineering", "xp": 40}
			],
			"answer": "B"
		}`}, nil
	}
	return &ai.Completion{Text: `{
		"matchScore": 77,
		"skillGap": {"missing": [{"skill": "Kubernetes", "importance": "high"}], "existing": [{"skill": "Go", "level": "expert"}]},
		"recommendation": "<h3>Match Summary</h3><p>Strong fit.</p>"
	}`}, nil
}

type testServerOptions struct {
	apiKeys   []string
	rateLimit *config.RateLimitConfig
	gateway   ai.Gateway
}

func newTestServer(t *testing.T, opts testServerOptions) *Server {
	t.Helper()
	ctx := context.Background()
	logger := errors.NewLogger(8)

	st, err := store.NewSQLite(ctx, filepath.Join(t.TempDir(), "jobai.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx))

	require.NoError(t, st.UpsertJob(ctx, types.JobSummary{
		ID:             1,
		Title:          "Backend Engineer",
		Description:    "Build services",
		Qualifications: "Go experience",
		RequiredSkills: []string{"Go", "Kubernetes"},
	}))
	level := 85
	require.NoError(t, st.ReplaceProfile(ctx, "user-1", types.ProfileBundle{
		Skills: []types.Skill{{Name: "Go", Level: &level}},
	}))

	gateway := opts.gateway
	if gateway == nil {
		gateway = scriptedGateway{}
	}

	srv := NewServer(nil, ServerConfig{
		Version:        "test",
		APIKeys:        opts.apiKeys,
		MaxRequestSize: 1024,
		RateLimit:      opts.rateLimit,
	}, Dependencies{
		Analysis: analysis.NewService(st, gateway, logger),
		Quests:   quest.NewService(st, gateway, logger),
		Backend:  st,
	}, logger)
	t.Cleanup(func() {
		if srv.RateLimiter != nil {
			srv.RateLimiter.Close()
		}
	})
	return srv
}

func doRequest(t *testing.T, h http.Handler, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

var asUser = map[string]string{DefaultUserHeader: "user-1"}

func TestAPIRequiresUserHeader(t *testing.T) {
	h := newTestServer(t, testServerOptions{}).Handler()

	rec := doRequest(t, h, http.MethodPost, "/api/jobs/1/analyze", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, errors.ErrCodeUnauthorized, decodeBody[ErrorResponse](t, rec).Error)
}

func TestAnalyzeFlow(t *testing.T) {
	h := newTestServer(t, testServerOptions{}).Handler()

	rec := doRequest(t, h, http.MethodGet, "/api/jobs/1/analyze", nil, asUser)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errors.ErrCodeAnalysisNotFound, decodeBody[ErrorResponse](t, rec).Error)

	rec = doRequest(t, h, http.MethodPost, "/api/jobs/1/analyze", nil, asUser)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decodeBody[map[string]any](t, rec)
	assert.EqualValues(t, 77, created["matchScore"])
	assert.NotContains(t, created, "userId")

	rec = doRequest(t, h, http.MethodGet, "/api/jobs/1/analyze", nil, asUser)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 77, decodeBody[map[string]any](t, rec)["matchScore"])
}

func TestAnalyzeFallsBackWithoutGateway(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})
	srv.deps.Analysis = analysis.NewService(srv.deps.Backend.(store.Store), nil, srv.Logger)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/jobs/1/analyze", nil, asUser)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Contains(t, body["recommendation"], "<h3>")
}

func TestAnalyzeErrors(t *testing.T) {
	h := newTestServer(t, testServerOptions{}).Handler()

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{name: "non numeric id", target: "/api/jobs/abc/analyze", status: http.StatusBadRequest, code: errors.ErrCodeInvalidRequest},
		{name: "missing job", target: "/api/jobs/999/analyze", status: http.StatusNotFound, code: errors.ErrCodeJobNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, tt.target, nil, asUser)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeBody[ErrorResponse](t, rec).Error)
		})
	}
}

func TestQuestFlow(t *testing.T) {
	h := newTestServer(t, testServerOptions{}).Handler()

	rec := doRequest(t, h, http.MethodGet, "/api/jobs/1/quests", nil, asUser)
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decodeBody[map[string]any](t, rec)
	assert.Nil(t, empty["quest"])

	rec = doRequest(t, h, http.MethodPost, "/api/jobs/1/quests?count=2", nil, asUser)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	generated := decodeBody[GenerateResponse](t, rec)
	require.Len(t, generated.Quests, 2)
	require.NotNil(t, generated.Quest)
	questID := generated.Quest.ID
	require.NotEmpty(t, questID)

	rec = doRequest(t, h, http.MethodPost, "/api/quests/"+questID+"/submit", SubmitRequest{Option: "b"}, asUser)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decodeBody[types.SubmissionResult](t, rec)
	assert.True(t, result.IsCorrect)
	assert.Equal(t, types.StatusCompleted, result.Status)
	assert.Equal(t, 90, result.XPEarned)
	assert.Equal(t, "Sets expectations.", result.Feedback)

	rec = doRequest(t, h, http.MethodGet, "/api/jobs/1/quests?count=3", nil, asUser)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[map[string]any](t, rec)
	assert.Len(t, list["quests"], 2)
	assert.Len(t, list["userQuests"], 1)
}

func TestSubmitErrors(t *testing.T) {
	h := newTestServer(t, testServerOptions{}).Handler()

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{name: "bad option", body: SubmitRequest{Option: "D"}, status: http.StatusBadRequest},
		{name: "missing body", body: nil, status: http.StatusBadRequest},
		{name: "unknown quest", body: SubmitRequest{Option: "A"}, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/api/quests/does-not-exist/submit", tt.body, asUser)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestRequestTooLarge(t *testing.T) {
	h := newTestServer(t, testServerOptions{}).Handler()

	rec := doRequest(t, h, http.MethodPost, "/api/quests/x/submit",
		map[string]string{"option": strings.Repeat("A", 4096)}, asUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[ErrorResponse](t, rec).Message, "too large")
}

func TestAPIKeyAuthentication(t *testing.T) {
	h := newTestServer(t, testServerOptions{apiKeys: []string{"secret-key-123"}}).Handler()

	rec := doRequest(t, h, http.MethodGet, "/api/jobs/1/quests", nil, asUser)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/jobs/1/quests", nil, map[string]string{
		DefaultUserHeader: "user-1",
		"X-API-Key":       "wrong-key",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/jobs/1/quests", nil, map[string]string{
		DefaultUserHeader: "user-1",
		"Authorization":   "Bearer secret-key-123",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiting(t *testing.T) {
	srv := newTestServer(t, testServerOptions{rateLimit: &config.RateLimitConfig{
		Enabled:        true,
		RequestsPerMin: 1,
		BurstCapacity:  2,
		ByIP:           true,
	}})
	h := srv.Handler()

	for i := 0; i < 2; i++ {
		rec := doRequest(t, h, http.MethodGet, "/api/jobs/1/quests", nil, asUser)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := doRequest(t, h, http.MethodGet, "/api/jobs/1/quests", nil, asUser)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", decodeBody[ErrorResponse](t, rec).Error)

	rejected := srv.RateLimiter.GetStats()["rejected"].(map[string]int64)
	assert.Equal(t, int64(1), rejected["ip"])
}

func TestHealthAndStats(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})
	srv.deps.Models = map[string]ai.ModelInspector{"analysis": fakeInspector{}}
	h := srv.Handler()

	rec := doRequest(t, h, http.MethodGet, "/health?models=true", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "healthy", health["status"])
	models := health["ai_models"].(map[string]any)
	assert.Equal(t, true, models["analysis"].(map[string]any)["available"])

	rec = doRequest(t, h, http.MethodPost, "/api/jobs/1/analyze", nil, asUser)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/stats", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[map[string]any](t, rec)
	require.Contains(t, stats, "storage")
	assert.EqualValues(t, 1, stats["storage"].(map[string]any)["analyses"])
}

type fakeInspector struct{}

func (fakeInspector) GetModelInfo(context.Context) (*ai.ModelInfo, error) {
	return &ai.ModelInfo{Name: "gemini-test", Available: true}, nil
}

func TestStartShutsDownOnCancel(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})
	srv.Host = "127.0.0.1"
	srv.Port = "0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded first valid", headers: map[string]string{"X-Forwarded-For": "garbage, 10.0.0.7, 10.0.0.8"}, remote: "1.1.1.1:80", want: "10.0.0.7"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "192.168.1.4"}, remote: "1.1.1.1:80", want: "192.168.1.4"},
		{name: "remote addr", remote: "203.0.113.9:5555", want: "203.0.113.9"},
		{name: "remote without port", remote: "203.0.113.9", want: "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(r))
		})
	}
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(60, 1, nil)
	t.Cleanup(rl.Close)

	assert.True(t, rl.Allow("ip:a"))
	assert.False(t, rl.Allow("ip:a"))
	assert.True(t, rl.Allow("api:k"))
	assert.Equal(t, 2, rl.GetStats()["active_limiters"])

	rl.evictIdle(time.Now().Add(time.Minute))
	assert.Equal(t, 0, rl.GetStats()["active_limiters"])
	assert.True(t, rl.Allow("ip:a"))
}

func TestServerInfoListsRoutes(t *testing.T) {
	srv := newTestServer(t, testServerOptions{apiKeys: []string{"k1"}})

	var buf bytes.Buffer
	srv.writeServerInfo(&buf)
	out := buf.String()

	assert.Contains(t, out, "/api/quests/{id}/submit")
	assert.Contains(t, out, "Generate quests (?count=1-3)")
	assert.Contains(t, out, "API authentication: ENABLED (1 keys configured)")
	assert.Contains(t, out, "Request size limit: 1.0 KiB")
	assert.Contains(t, out, "Rate limiting: DISABLED")
}
