package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Canonical stage names, in execution order.
const (
	StageInitializer  = "initializer"
	StageSelector     = "selector"
	StageInvestigator = "investigator"
	StageCompliance   = "compliance"
	StageOrchestrator = "orchestrator"
	StageArchiver     = "archiver"
)

// ErrInference marks a failed or malformed inference call. It is always fatal
// to the instance.
var ErrInference = errors.New("inference failed")

// Stage is one step of the evaluation pipeline
type Stage interface {
	Name() string
	Run(ctx context.Context, s *State) error
}

// StageError reports which stage halted the pipeline
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Engine executes a fixed list of stages in order
type Engine struct {
	stages []Stage
	logger *zap.Logger
}

// NewEngine creates an engine over stages. The order given is the order of execution.
func NewEngine(logger *zap.Logger, stages ...Stage) *Engine {
	return &Engine{
		stages: stages,
		logger: logger,
	}
}

// StageNames returns the names of the configured stages in order
func (e *Engine) StageNames() []string {
	names := make([]string, len(e.stages))
	for i, st := range e.stages {
		names[i] = st.Name()
	}
	return names
}

// Execute runs every stage against s in order. onStage, when non-nil, is
// called after each stage returns successfully. The first error halts
// execution and is returned as a *StageError.
func (e *Engine) Execute(ctx context.Context, s *State, onStage func(stage string)) error {
	for _, st := range e.stages {
		name := st.Name()

		e.logger.Debug("Running stage",
			zap.String("instance_id", s.InstanceID),
			zap.String("stage", name))

		if err := st.Run(ctx, s); err != nil {
			e.logger.Error("Stage failed",
				zap.String("instance_id", s.InstanceID),
				zap.String("stage", name),
				zap.Error(err))
			return &StageError{Stage: name, Err: err}
		}

		if onStage != nil {
			onStage(name)
		}
	}

	e.logger.Info("Pipeline finished",
		zap.String("instance_id", s.InstanceID),
		zap.Int("risk_score", s.RiskScore))

	return nil
}
