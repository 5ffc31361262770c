package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vsudarshan995/RAG-AI/internal/middleware"
	"github.com/vsudarshan995/RAG-AI/internal/models"
	"github.com/vsudarshan995/RAG-AI/internal/pipeline"
	"github.com/vsudarshan995/RAG-AI/internal/registry"
	"github.com/vsudarshan995/RAG-AI/internal/retrieval"
	"github.com/vsudarshan995/RAG-AI/internal/service"
	"github.com/vsudarshan995/RAG-AI/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	router     *gin.Engine
	dispatcher *service.Dispatcher
	audit      *testutil.MemoryAudit
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	audit := testutil.NewMemoryAudit()
	idx := retrieval.NewMemoryIndex()
	idx.Add(retrieval.NamespacePolicy, "Accidents require a police report", map[string]string{retrieval.MetaDocumentCategory: "Motor"})
	llm := testutil.NewScriptedLLM("APPROVED").On("Apply Rules", "No violations found.")
	reg := registry.New()

	engine := pipeline.NewEngine(logger, pipeline.DefaultStages(pipeline.Dependencies{
		Audit:           audit,
		Retriever:       idx,
		LLM:             llm,
		ComplianceRules: "rules",
		Logger:          logger,
	})...)
	dispatcher := service.NewDispatcher(engine, reg, audit, 2, logger)

	hash, err := service.HashPassword("s3cret")
	require.NoError(t, err)

	h := NewHandler(Deps{
		Dispatcher: dispatcher,
		Status:     service.NewStatusReconstructor(audit, reg),
		Reconciler: service.NewReconciler(audit, reg, logger),
		Advisor:    service.NewAdvisor(idx, llm, logger),
		Auth:       service.NewAuthService("admin", hash, "key", time.Hour, logger),
		Registry:   reg,
		Model:      llm,
	}, logger)

	router := gin.New()
	router.Use(middleware.CORS())
	h.RegisterRoutes(router)

	ts := &testServer{router: router, dispatcher: dispatcher, audit: audit}
	t.Cleanup(func() { ts.drain(t) })
	return ts
}

func (s *testServer) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.dispatcher.Wait(ctx))
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestSubmitAndPoll(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/evaluations", models.EvaluationRequest{
		ClientID:       "C1",
		SubmissionDate: "2024-01-01",
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted struct {
		InstanceID string `json:"instance_id"`
		PollURL    string `json:"poll_url"`
		Status     string `json:"status"`
	}
	decode(t, w, &accepted)
	assert.NotEmpty(t, accepted.InstanceID)
	assert.Equal(t, "/api/v1/evaluations/"+accepted.InstanceID, accepted.PollURL)
	assert.Equal(t, models.StatusRunning, accepted.Status)

	s.drain(t)

	w = s.do(t, http.MethodGet, accepted.PollURL, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report models.StatusReport
	decode(t, w, &report)
	assert.Equal(t, models.StatusCompleted, report.CurrentStatus)
	assert.Equal(t, "registry", report.Source)
	require.Len(t, report.Timeline, 2)
	assert.Equal(t, models.AuditInProgress, report.Timeline[0].Status)
	assert.Equal(t, models.AuditCompleted, report.Timeline[1].Status)
	require.NotNil(t, report.Timeline[1].RiskScore)
	assert.Equal(t, 0, *report.Timeline[1].RiskScore)

	again := s.do(t, http.MethodGet, accepted.PollURL, nil)
	assert.Equal(t, w.Body.String(), again.Body.String())
}

func TestSubmitValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/evaluations", map[string]string{"client_id": "C1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/evaluations", map[string]string{"client_id": " ", "submission_date": "2024-01-01"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPollUnknownInstance(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/evaluations/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClientEvaluations(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/clients/C9/evaluations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"client_id":"C9","records":[],"total":0}`, w.Body.String())

	s.do(t, http.MethodPost, "/api/v1/evaluations", models.EvaluationRequest{ClientID: "C9", SubmissionDate: "2024-03-03"})
	s.drain(t)

	w = s.do(t, http.MethodGet, "/api/v1/clients/C9/evaluations", nil)
	var body struct {
		Total int `json:"total"`
	}
	decode(t, w, &body)
	assert.Equal(t, 2, body.Total)
}

func TestAskEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/ask/policy", models.QueryRequest{Question: "Do accidents need a police report?"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer":"APPROVED"}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/ask/evaluate-claim", models.QueryRequest{Question: "accident claim", ClientID: "C1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"client_id":"C1","evaluation":"APPROVED"}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/ask/policy", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminPurge(t *testing.T) {
	s := newTestServer(t)

	s.do(t, http.MethodPost, "/api/v1/evaluations", models.EvaluationRequest{ClientID: "C1", SubmissionDate: "2024-01-01"})
	s.drain(t)
	require.Len(t, s.audit.Records(), 2)

	w := s.do(t, http.MethodDelete, "/api/v1/admin/clients/C1/evaluations", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", models.LoginRequest{Username: "admin", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", models.LoginRequest{Username: "admin", Password: "s3cret"})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token string `json:"token"`
	}
	decode(t, w, &login)
	require.NotEmpty(t, login.Token)

	w = s.do(t, http.MethodDelete, "/api/v1/admin/clients/C1/evaluations", nil, "Authorization", "Bearer "+login.Token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"client_id":"C1","deleted":2}`, w.Body.String())
	assert.Empty(t, s.audit.Records())
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status    string                 `json:"status"`
		Instances registry.Stats         `json:"instances"`
		Model     map[string]interface{} `json:"model"`
	}
	decode(t, w, &body)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, 0, body.Instances.Total)
	assert.Equal(t, "scripted", body.Model["provider"])
}
