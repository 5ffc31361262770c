package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/vsudarshan995/RAG-AI/internal/models"
	"github.com/vsudarshan995/RAG-AI/internal/pipeline"
	"github.com/vsudarshan995/RAG-AI/internal/retrieval"

	"go.uber.org/zap"
)

const (
	auditorInstruction = "You are a professional insurance auditor. Use ONLY the provided Policy context. " +
		"If it's not in the documents, say so."
	adjusterInstruction = "You are a claims adjuster. Compare the client's submitted claim data against " +
		"the master policy rules to find discrepancies or fraud."

	policyAnswerTopK = 5
	crossCheckTopK   = 3
)

// Advisor answers one-off questions against the knowledge base. Nothing it
// does is written to the audit log.
type Advisor struct {
	retriever retrieval.Retriever
	llm       pipeline.Generator
	logger    *zap.Logger
}

func NewAdvisor(retriever retrieval.Retriever, llm pipeline.Generator, logger *zap.Logger) *Advisor {
	return &Advisor{
		retriever: retriever,
		llm:       llm,
		logger:    logger,
	}
}

// AskPolicy answers a question from policy documents only
func (a *Advisor) AskPolicy(ctx context.Context, question string) (*models.PolicyAnswer, error) {
	docs, err := a.retriever.Search(ctx, retrieval.Query{
		Text:      question,
		Namespace: retrieval.NamespacePolicy,
		K:         policyAnswerTopK,
	})
	if err != nil {
		return nil, fmt.Errorf("policy retrieval failed: %w", err)
	}

	answer, err := a.llm.Generate(ctx, advisoryPrompt(auditorInstruction, docs, question))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pipeline.ErrInference, err)
	}

	return &models.PolicyAnswer{Answer: answer}, nil
}

// EvaluateClaim cross-checks a client's claim history against policy rules
func (a *Advisor) EvaluateClaim(ctx context.Context, req models.QueryRequest) (*models.ClaimEvaluation, error) {
	clientID := req.ClientID
	if clientID == "" {
		clientID = models.DefaultAdvisoryClient
	}

	policy, err := a.retriever.Search(ctx, retrieval.Query{
		Text:      req.Question,
		Namespace: retrieval.NamespacePolicy,
		K:         crossCheckTopK,
	})
	if err != nil {
		return nil, fmt.Errorf("policy retrieval failed: %w", err)
	}

	claims, err := a.retriever.Search(ctx, retrieval.Query{
		Text:      req.Question,
		Namespace: retrieval.NamespaceHistory,
		K:         crossCheckTopK,
		Filter:    map[string]string{retrieval.MetaClientID: clientID},
	})
	if err != nil {
		return nil, fmt.Errorf("claim retrieval failed: %w", err)
	}

	a.logger.Debug("Cross-check context",
		zap.String("client_id", clientID),
		zap.Int("policy_docs", len(policy)),
		zap.Int("claim_docs", len(claims)))

	evaluation, err := a.llm.Generate(ctx, advisoryPrompt(adjusterInstruction, append(policy, claims...), req.Question))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pipeline.ErrInference, err)
	}

	return &models.ClaimEvaluation{ClientID: clientID, Evaluation: evaluation}, nil
}

// advisoryPrompt stuffs every document into a single prompt
func advisoryPrompt(instruction string, docs []retrieval.Fragment, question string) string {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	return fmt.Sprintf("%s\n\nContext: %s\n\nQuestion: %s", instruction, strings.Join(texts, "\n\n"), question)
}
