package handler

import (
	"errors"
	"net/http"

	"github.com/vsudarshan995/RAG-AI/internal/middleware"
	"github.com/vsudarshan995/RAG-AI/internal/models"
	"github.com/vsudarshan995/RAG-AI/internal/registry"
	"github.com/vsudarshan995/RAG-AI/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ModelInfoer reports the active inference model
type ModelInfoer interface {
	GetModelInfo() map[string]interface{}
}

// Handler handles HTTP requests
type Handler struct {
	dispatcher *service.Dispatcher
	status     *service.StatusReconstructor
	reconciler *service.Reconciler
	advisor    *service.Advisor
	auth       *service.AuthService
	registry   *registry.Registry
	model      ModelInfoer
	logger     *zap.Logger
}

// Deps groups the services the handler routes to
type Deps struct {
	Dispatcher *service.Dispatcher
	Status     *service.StatusReconstructor
	Reconciler *service.Reconciler
	Advisor    *service.Advisor
	Auth       *service.AuthService
	Registry   *registry.Registry
	Model      ModelInfoer
}

// NewHandler creates a new API handler
func NewHandler(d Deps, logger *zap.Logger) *Handler {
	return &Handler{
		dispatcher: d.Dispatcher,
		status:     d.Status,
		reconciler: d.Reconciler,
		advisor:    d.Advisor,
		auth:       d.Auth,
		registry:   d.Registry,
		model:      d.Model,
		logger:     logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		// Evaluations
		api.POST("/evaluations", h.SubmitEvaluation)
		api.GET("/evaluations/:id", h.GetEvaluationStatus)
		api.GET("/clients/:id/evaluations", h.GetClientEvaluations)

		// Advisory Q&A
		api.POST("/ask/policy", h.AskPolicy)
		api.POST("/ask/evaluate-claim", h.EvaluateClaim)

		api.POST("/auth/login", h.Login)

		admin := api.Group("/admin", middleware.AuthMiddleware(h.auth, h.logger))
		admin.DELETE("/clients/:id/evaluations", h.PurgeClient)
	}

	r.GET("/health", h.HealthCheck)
}

// SubmitEvaluation accepts a claim and starts its evaluation in the background
func (h *Handler) SubmitEvaluation(c *gin.Context) {
	var req models.EvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inst, err := h.dispatcher.Submit(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to submit evaluation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start evaluation"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"instance_id": inst.ID,
		"poll_url":    "/api/v1/evaluations/" + inst.ID,
		"status":      models.StatusRunning,
	})
}

// GetEvaluationStatus returns the timeline and current status of an instance
func (h *Handler) GetEvaluationStatus(c *gin.Context) {
	report, err := h.status.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrInstanceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "instance not found"})
			return
		}
		h.logger.Error("Failed to reconstruct status", zap.String("instance_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read audit log"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetClientEvaluations returns every audit record of a client
func (h *Handler) GetClientEvaluations(c *gin.Context) {
	clientID := c.Param("id")

	records, err := h.status.ClientHistory(c.Request.Context(), clientID)
	if err != nil {
		h.logger.Error("Failed to get client history", zap.String("client_id", clientID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read audit log"})
		return
	}
	if records == nil {
		records = []models.AuditRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"client_id": clientID,
		"records":   records,
		"total":     len(records),
	})
}

// AskPolicy answers a question from policy documents
func (h *Handler) AskPolicy(c *gin.Context) {
	var req models.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	answer, err := h.advisor.AskPolicy(c.Request.Context(), req.Question)
	if err != nil {
		h.logger.Error("Policy question failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, answer)
}

// EvaluateClaim cross-checks a client's claims against policy
func (h *Handler) EvaluateClaim(c *gin.Context) {
	var req models.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	eval, err := h.advisor.EvaluateClaim(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("Claim cross-check failed", zap.String("client_id", req.ClientID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, eval)
}

// Login issues an admin token
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, expires, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		case errors.Is(err, service.ErrAuthDisabled):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expires,
	})
}

// PurgeClient deletes a client's audit records
func (h *Handler) PurgeClient(c *gin.Context) {
	clientID := c.Param("id")

	deleted, err := h.reconciler.PurgeClient(c.Request.Context(), clientID)
	if err != nil {
		h.logger.Error("Failed to purge client", zap.String("client_id", clientID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "purge failed"})
		return
	}

	h.logger.Info("Client purged",
		zap.String("client_id", clientID),
		zap.String("by", c.GetString("username")))

	c.JSON(http.StatusOK, gin.H{
		"client_id": clientID,
		"deleted":   deleted,
	})
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	resp := gin.H{
		"status":    "healthy",
		"service":   "claim-evaluation",
		"instances": h.registry.Snapshot(),
	}
	if h.model != nil {
		resp["model"] = h.model.GetModelInfo()
	}
	c.JSON(http.StatusOK, resp)
}
