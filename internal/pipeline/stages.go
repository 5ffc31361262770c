package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vsudarshan995/RAG-AI/internal/models"
	"github.com/vsudarshan995/RAG-AI/internal/repository"
	"github.com/vsudarshan995/RAG-AI/internal/retrieval"

	"go.uber.org/zap"
)

// AuditAppender is the write side of the audit log used by the pipeline
type AuditAppender interface {
	Append(ctx context.Context, rec *models.AuditRecord) error
}

// Generator is a stateless prompt-to-text inference client
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Dependencies are the collaborators shared by all stages
type Dependencies struct {
	Audit           AuditAppender
	Retriever       retrieval.Retriever
	LLM             Generator
	ComplianceRules string
	Logger          *zap.Logger
}

// DefaultStages returns the evaluation stages in their canonical order.
func DefaultStages(d Dependencies) []Stage {
	return []Stage{
		&initializer{d},
		&policySelector{d},
		&historyInvestigator{d},
		&complianceEvaluator{d},
		&orchestrator{d},
		&archiver{d},
	}
}

type initializer struct{ Dependencies }

func (st *initializer) Name() string { return StageInitializer }

func (st *initializer) Run(ctx context.Context, s *State) error {
	rec := &models.AuditRecord{
		InstanceID:     s.InstanceID,
		ClientID:       s.ClientID,
		SubmissionDate: s.SubmissionDate,
		Status:         models.AuditInProgress,
		Content:        fmt.Sprintf("Investigation started for client %s.", s.ClientID),
		Timestamp:      time.Now().UTC(),
	}
	if err := st.Audit.Append(ctx, rec); err != nil {
		return auditError("append start record", err)
	}

	s.AddSystemMessage(fmt.Sprintf("Audit Log Initialized for Instance: %s", s.InstanceID))
	return nil
}

type policySelector struct{ Dependencies }

func (st *policySelector) Name() string { return StageSelector }

func (st *policySelector) Run(ctx context.Context, s *State) error {
	fragments := st.search(ctx, s, retrieval.Query{
		Text:      s.Query(),
		Namespace: retrieval.NamespacePolicy,
		K:         PolicyTopK,
	})

	s.PolicyCategory = DefaultCategory
	if len(fragments) > 0 {
		if cat := fragments[0].Metadata[retrieval.MetaDocumentCategory]; cat != "" {
			s.PolicyCategory = cat
		}
	}
	s.PolicyContext = joinFragments(fragments)

	s.AddSystemMessage(fmt.Sprintf("Context fetched for category: %s", s.PolicyCategory))
	return nil
}

type historyInvestigator struct{ Dependencies }

func (st *historyInvestigator) Name() string { return StageInvestigator }

func (st *historyInvestigator) Run(ctx context.Context, s *State) error {
	fragments := st.search(ctx, s, retrieval.Query{
		Text:      s.SubmissionDate,
		Namespace: retrieval.NamespaceHistory,
		K:         HistoryTopK,
		Filter:    map[string]string{retrieval.MetaClientID: s.ClientID},
	})

	s.HistoryContext = joinFragments(fragments)
	if s.HistoryContext == "" {
		s.HistoryContext = NoHistory
	}

	analysis, err := st.LLM.Generate(ctx, historyPrompt(s.ClientID, s.HistoryContext))
	if err != nil {
		return fmt.Errorf("%w: history analysis: %w", ErrInference, err)
	}

	if containsFold(analysis, "suspicious") {
		s.AddRisk(SuspiciousRisk)
	}

	s.AddSystemMessage("History analyzed.")
	return nil
}

type complianceEvaluator struct{ Dependencies }

func (st *complianceEvaluator) Name() string { return StageCompliance }

func (st *complianceEvaluator) Run(ctx context.Context, s *State) error {
	report, err := generateNonEmpty(ctx, st.LLM, compliancePrompt(st.ComplianceRules, s.Query()))
	if err != nil {
		return fmt.Errorf("compliance check: %w", err)
	}

	if containsFold(report, "violation") {
		s.AddRisk(ViolationRisk)
	}
	s.ComplianceReport = report
	return nil
}

type orchestrator struct{ Dependencies }

func (st *orchestrator) Name() string { return StageOrchestrator }

func (st *orchestrator) Run(ctx context.Context, s *State) error {
	verdict, err := generateNonEmpty(ctx, st.LLM, verdictPrompt(s.RiskScore, s.ComplianceReport))
	if err != nil {
		return fmt.Errorf("verdict: %w", err)
	}

	s.FinalVerdict = verdict
	return nil
}

type archiver struct{ Dependencies }

func (st *archiver) Name() string { return StageArchiver }

func (st *archiver) Run(ctx context.Context, s *State) error {
	risk := s.RiskScore
	rec := &models.AuditRecord{
		InstanceID:     s.InstanceID,
		ClientID:       s.ClientID,
		SubmissionDate: s.SubmissionDate,
		Status:         models.AuditCompleted,
		Content:        archiveContent(s.FinalVerdict, s.ComplianceReport),
		Timestamp:      time.Now().UTC(),
		RiskScore:      &risk,
	}
	if err := st.Audit.Append(ctx, rec); err != nil {
		return auditError("append completion record", err)
	}

	s.AddSystemMessage("Final result archived to Audit Log.")
	return nil
}

// search runs a retrieval query. Retrieval failures are not fatal: they are
// logged and treated as an empty result.
func (d Dependencies) search(ctx context.Context, s *State, q retrieval.Query) []retrieval.Fragment {
	fragments, err := d.Retriever.Search(ctx, q)
	if err != nil {
		d.Logger.Warn("Retrieval failed, continuing without context",
			zap.String("instance_id", s.InstanceID),
			zap.String("namespace", string(q.Namespace)),
			zap.Error(err))
		return nil
	}
	return fragments
}

func generateNonEmpty(ctx context.Context, llm Generator, prompt string) (string, error) {
	out, err := llm.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInference, err)
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%w: empty response", ErrInference)
	}
	return out, nil
}

func auditError(op string, err error) error {
	if errors.Is(err, repository.ErrAuditWrite) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, repository.ErrAuditWrite, err)
}

func joinFragments(fragments []retrieval.Fragment) string {
	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}
	return strings.Join(texts, "\n")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}
