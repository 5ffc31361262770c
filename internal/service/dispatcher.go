package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vsudarshan995/RAG-AI/internal/models"
	"github.com/vsudarshan995/RAG-AI/internal/pipeline"
	"github.com/vsudarshan995/RAG-AI/internal/registry"
	"github.com/vsudarshan995/RAG-AI/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrInvalidRequest is returned by Submit for requests missing required fields.
var ErrInvalidRequest = errors.New("invalid evaluation request")

// Dispatcher accepts evaluation requests and runs each one in the background
type Dispatcher struct {
	engine   *pipeline.Engine
	registry *registry.Registry
	audit    pipeline.AuditAppender
	slots    *semaphore.Weighted
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher. Every submission gets its own pipeline
// goroutine. maxConcurrent <= 0 leaves pipelines unbounded; a positive value
// caps how many run at once and the rest wait for a slot in the background.
func NewDispatcher(
	engine *pipeline.Engine,
	reg *registry.Registry,
	audit pipeline.AuditAppender,
	maxConcurrent int64,
	logger *zap.Logger,
) *Dispatcher {
	d := &Dispatcher{
		engine:   engine,
		registry: reg,
		audit:    audit,
		logger:   logger,
	}
	if maxConcurrent > 0 {
		d.slots = semaphore.NewWeighted(maxConcurrent)
	}
	return d
}

// Submit registers a new instance and starts its pipeline. It returns as soon
// as the instance is registered; it never waits for the pipeline.
func (d *Dispatcher) Submit(ctx context.Context, req models.EvaluationRequest) (*models.Instance, error) {
	if strings.TrimSpace(req.ClientID) == "" || strings.TrimSpace(req.SubmissionDate) == "" {
		return nil, fmt.Errorf("%w: client_id and submission_date are required", ErrInvalidRequest)
	}

	inst := &models.Instance{
		ID:             uuid.New().String(),
		ClientID:       req.ClientID,
		SubmissionDate: req.SubmissionDate,
		CreatedAt:      time.Now().UTC(),
	}
	d.registry.Register(inst)

	d.wg.Add(1)
	go d.run(inst, req.Question)

	d.logger.Info("Evaluation submitted",
		zap.String("instance_id", inst.ID),
		zap.String("client_id", inst.ClientID))

	return inst, nil
}

// run executes one instance. It is detached from the submitting request's context.
func (d *Dispatcher) run(inst *models.Instance, question *string) {
	defer d.wg.Done()
	ctx := context.Background()

	if d.slots != nil {
		if err := d.slots.Acquire(ctx, 1); err != nil {
			d.fail(ctx, inst, err)
			return
		}
		defer d.slots.Release(1)
	}

	state := pipeline.NewState(inst.ID, inst.ClientID, inst.SubmissionDate, question)
	err := d.engine.Execute(ctx, state, func(stage string) {
		d.registry.RecordStep(inst.ID, stage)
	})
	if err != nil {
		d.fail(ctx, inst, err)
		return
	}

	d.registry.SetStatus(inst.ID, models.StatusCompleted)
	d.logger.Info("Evaluation completed",
		zap.String("instance_id", inst.ID),
		zap.Int("risk_score", state.RiskScore),
		zap.Duration("elapsed", time.Since(inst.CreatedAt)))
}

// fail marks the instance failed and, when the audit log is still writable,
// appends a Failed record so the outcome survives a restart.
func (d *Dispatcher) fail(ctx context.Context, inst *models.Instance, cause error) {
	status := models.FailedStatus(cause.Error())
	d.registry.SetStatus(inst.ID, status)

	if errors.Is(cause, repository.ErrAuditWrite) {
		d.logger.Error("Evaluation failed and could not be recorded",
			zap.String("instance_id", inst.ID),
			zap.Error(cause))
		return
	}

	d.logger.Error("Evaluation failed",
		zap.String("instance_id", inst.ID),
		zap.Error(cause))

	rec := &models.AuditRecord{
		InstanceID:     inst.ID,
		ClientID:       inst.ClientID,
		SubmissionDate: inst.SubmissionDate,
		Status:         status,
		Content:        cause.Error(),
		Timestamp:      time.Now().UTC(),
	}
	if err := d.audit.Append(ctx, rec); err != nil {
		d.logger.Error("Failed to record evaluation failure",
			zap.String("instance_id", inst.ID),
			zap.Error(err))
	}
}

// Wait blocks until every submitted pipeline has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
