package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vsudarshan995/RAG-AI/internal/models"
	"github.com/vsudarshan995/RAG-AI/internal/pipeline"
	"github.com/vsudarshan995/RAG-AI/internal/retrieval"
	"github.com/vsudarshan995/RAG-AI/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func advisoryIndex() *retrieval.MemoryIndex {
	idx := retrieval.NewMemoryIndex()
	idx.Add(retrieval.NamespacePolicy, "Windshield damage is covered up to 2000 AED", nil)
	idx.Add(retrieval.NamespaceHistory, "Windshield claim filed 2024-01-01", map[string]string{retrieval.MetaClientID: "C1"})
	idx.Add(retrieval.NamespaceHistory, "Windshield claim filed by another client", map[string]string{retrieval.MetaClientID: "C2"})
	return idx
}

func TestAdvisor_AskPolicy(t *testing.T) {
	llm := testutil.NewScriptedLLM("Yes, up to 2000 AED.")
	a := NewAdvisor(advisoryIndex(), llm, zap.NewNop())

	answer, err := a.AskPolicy(context.Background(), "Is windshield damage covered?")
	require.NoError(t, err)
	assert.Equal(t, "Yes, up to 2000 AED.", answer.Answer)

	prompt := llm.Prompts()[0]
	assert.True(t, strings.HasPrefix(prompt, auditorInstruction))
	assert.Contains(t, prompt, "Windshield damage is covered up to 2000 AED")
	assert.NotContains(t, prompt, "claim filed")
	assert.True(t, strings.HasSuffix(prompt, "Question: Is windshield damage covered?"))
}

func TestAdvisor_EvaluateClaimFiltersByClient(t *testing.T) {
	llm := testutil.NewScriptedLLM("No discrepancies.")
	a := NewAdvisor(advisoryIndex(), llm, zap.NewNop())

	eval, err := a.EvaluateClaim(context.Background(), models.QueryRequest{
		Question: "windshield claim",
		ClientID: "C1",
	})
	require.NoError(t, err)
	assert.Equal(t, &models.ClaimEvaluation{ClientID: "C1", Evaluation: "No discrepancies."}, eval)

	prompt := llm.Prompts()[0]
	assert.True(t, strings.HasPrefix(prompt, adjusterInstruction))
	assert.Contains(t, prompt, "Windshield damage is covered")
	assert.Contains(t, prompt, "Windshield claim filed 2024-01-01")
	assert.NotContains(t, prompt, "another client")
}

func TestAdvisor_EvaluateClaimDefaultClient(t *testing.T) {
	a := NewAdvisor(advisoryIndex(), testutil.NewScriptedLLM("ok"), zap.NewNop())

	eval, err := a.EvaluateClaim(context.Background(), models.QueryRequest{Question: "anything"})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultAdvisoryClient, eval.ClientID)
}

func TestAdvisor_Errors(t *testing.T) {
	llm := testutil.NewScriptedLLM("").Fail("", errors.New("offline"))
	a := NewAdvisor(advisoryIndex(), llm, zap.NewNop())

	_, err := a.AskPolicy(context.Background(), "q")
	assert.ErrorIs(t, err, pipeline.ErrInference)

	_, err = NewAdvisor(failingSearch{}, llm, zap.NewNop()).EvaluateClaim(context.Background(), models.QueryRequest{Question: "q"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, pipeline.ErrInference)
}

type failingSearch struct{}

func (failingSearch) Search(ctx context.Context, q retrieval.Query) ([]retrieval.Fragment, error) {
	return nil, errors.New("search down")
}
