package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot-salud-backend/internal/audit"
	"copilot-salud-backend/internal/auth"
	"copilot-salud-backend/internal/chart"
	"copilot-salud-backend/internal/controller"
	"copilot-salud-backend/internal/dto"
	"copilot-salud-backend/internal/intent"
	"copilot-salud-backend/internal/model"
	"copilot-salud-backend/internal/pipeline"
	"copilot-salud-backend/internal/ratelimit"
	"copilot-salud-backend/internal/store"
)

type stubOrchestrator struct {
	result pipeline.Result
	last   pipeline.Request
}

func (s *stubOrchestrator) Run(ctx context.Context, req pipeline.Request) pipeline.Result {
	s.last = req
	return s.result
}

func newTestRouter(t *testing.T, orch pipeline.Orchestrator) (*gin.Engine, *auth.TokenIssuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	userStore, err := auth.NewStore(filepath.Join(dir, "users.json"))
	require.NoError(t, err)
	issuer := auth.NewTokenIssuer("test-secret")
	limiter := ratelimit.NewLimiter(filepath.Join(dir, "state.json"), audit.NewLogger(dir))

	router := gin.New()
	controller.RegisterAuthRoutes(router, controller.NewAuthController(userStore, issuer, limiter))
	controller.RegisterQueryRoutes(router, issuer, controller.NewQueryController(orch, store.NewInMemoryHistoryStore(), chart.ThemeLight))
	return router, issuer
}

func login(t *testing.T, router *gin.Engine, username, password string) (int, dto.LoginResponse) {
	t.Helper()
	body, err := json.Marshal(dto.LoginRequest{Username: username, Password: password})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp dto.LoginResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec.Code, resp
}

func TestLoginIssuesTokenForSeededUser(t *testing.T) {
	router, _ := newTestRouter(t, &stubOrchestrator{})

	code, resp := login(t, router, "gestor.malaga", "gestor123")
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "gestor", resp.Role)
	assert.Equal(t, "SAS Málaga", resp.Organization)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	router, _ := newTestRouter(t, &stubOrchestrator{})

	code, _ := login(t, router, "gestor.malaga", "wrong")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestQueryRequiresBearerToken(t *testing.T) {
	router, _ := newTestRouter(t, &stubOrchestrator{})

	body := []byte(`{"query":"cuántas camas hay"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ai/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestQueryRunsPipelineAndRecordsHistory(t *testing.T) {
	orch := &stubOrchestrator{result: pipeline.Result{
		Status:   pipeline.StatusSuccess,
		Analysis: &model.AnalysisResult{MainInsight: "1001 camas en el Regional"},
		Chart:    &chart.Result{Spec: model.ChartSpec{Type: "bar"}},
		Intent:   intent.Intent{Tag: intent.Infrastructure},
	}}
	router, _ := newTestRouter(t, orch)

	code, session := login(t, router, "gestor.malaga", "gestor123")
	require.Equal(t, http.StatusOK, code)

	body := []byte(`{"query":"cuántas camas hay","theme":"dark"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ai/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gestor", orch.last.Role)
	assert.Equal(t, "gestor.malaga", orch.last.UserID)
	assert.Equal(t, chart.ThemeDark, orch.last.Theme)

	var resp dto.AIQueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	require.NotNil(t, resp.Analysis)
	assert.Equal(t, "1001 camas en el Regional", resp.Analysis.MainInsight)

	histReq := httptest.NewRequest(http.MethodGet, "/api/v1/ai/history", nil)
	histReq.Header.Set("Authorization", "Bearer "+session.Token)
	histRec := httptest.NewRecorder()
	router.ServeHTTP(histRec, histReq)

	require.Equal(t, http.StatusOK, histRec.Code)
	var trail []store.HistoryEntry
	require.NoError(t, json.Unmarshal(histRec.Body.Bytes(), &trail))
	require.Len(t, trail, 1)
	assert.Equal(t, "cuántas camas hay", trail[0].Query)
}

func TestQueryMapsRejectionToStatusCodes(t *testing.T) {
	orch := &stubOrchestrator{result: pipeline.Result{
		Status:     pipeline.StatusRejected,
		Reason:     pipeline.RejectedRateLimited,
		RetryAfter: 60,
	}}
	router, _ := newTestRouter(t, orch)

	code, session := login(t, router, "demo", "demo123")
	require.Equal(t, http.StatusOK, code)

	body := []byte(`{"query":"algo"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ai/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
