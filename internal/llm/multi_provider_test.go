package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) Close() error {
	return m.Called().Error(0)
}

func (m *mockProvider) GetModelInfo() map[string]interface{} {
	return m.Called().Get(0).(map[string]interface{})
}

func wrap(providers ...Provider) []*RateLimitedProvider {
	out := make([]*RateLimitedProvider, len(providers))
	for i, p := range providers {
		out[i] = NewRateLimitedProvider(p, 6000, zap.NewNop())
	}
	return out
}

func TestMultiProviderClient_UsesCurrentProvider(t *testing.T) {
	first := new(mockProvider)
	second := new(mockProvider)
	first.On("Generate", mock.Anything, "p").Return("ok", nil)

	client := NewMultiProviderClientFrom(wrap(first, second), 3, zap.NewNop())
	out, err := client.Generate(context.Background(), "p")

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	first.AssertExpectations(t)
	second.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestMultiProviderClient_FallsThroughOnFailure(t *testing.T) {
	first := new(mockProvider)
	second := new(mockProvider)
	first.On("Generate", mock.Anything, "p").Return("", errors.New("boom"))
	second.On("Generate", mock.Anything, "p").Return("fallback", nil)

	client := NewMultiProviderClientFrom(wrap(first, second), 3, zap.NewNop())
	out, err := client.Generate(context.Background(), "p")

	require.NoError(t, err)
	assert.Equal(t, "fallback", out)

	// One failure is below the threshold, so the first provider stays current.
	first.On("GetModelInfo").Return(map[string]interface{}{"provider": "first"})
	info := client.GetModelInfo()
	assert.Equal(t, 0, info["provider_index"])
	assert.Equal(t, 1, info["failure_count"])
}

func TestMultiProviderClient_SwitchesOnRateLimit(t *testing.T) {
	first := new(mockProvider)
	second := new(mockProvider)
	first.On("Generate", mock.Anything, "p").Return("", errors.New("status 429: quota exceeded")).Once()
	second.On("Generate", mock.Anything, "p").Return("ok", nil)
	second.On("GetModelInfo").Return(map[string]interface{}{"provider": "second"})

	client := NewMultiProviderClientFrom(wrap(first, second), 3, zap.NewNop())
	_, err := client.Generate(context.Background(), "p")
	require.NoError(t, err)

	info := client.GetModelInfo()
	assert.Equal(t, 1, info["provider_index"])
	assert.Equal(t, "second", info["provider"])
}

func TestMultiProviderClient_SwitchesAfterMaxFailures(t *testing.T) {
	first := new(mockProvider)
	second := new(mockProvider)
	first.On("Generate", mock.Anything, "p").Return("", errors.New("boom"))
	second.On("Generate", mock.Anything, "p").Return("ok", nil)
	second.On("GetModelInfo").Return(map[string]interface{}{})

	client := NewMultiProviderClientFrom(wrap(first, second), 2, zap.NewNop())
	for i := 0; i < 2; i++ {
		_, err := client.Generate(context.Background(), "p")
		require.NoError(t, err)
	}

	assert.Equal(t, 1, client.GetModelInfo()["provider_index"])
}

func TestMultiProviderClient_AllProvidersFail(t *testing.T) {
	first := new(mockProvider)
	second := new(mockProvider)
	first.On("Generate", mock.Anything, "p").Return("", errors.New("first down"))
	second.On("Generate", mock.Anything, "p").Return("", errors.New("second down"))

	client := NewMultiProviderClientFrom(wrap(first, second), 3, zap.NewNop())
	_, err := client.Generate(context.Background(), "p")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.Contains(t, err.Error(), "second down")
}

func TestMultiProviderClient_CancelledContext(t *testing.T) {
	first := new(mockProvider)
	client := NewMultiProviderClientFrom(wrap(first), 3, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Generate(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
	first.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestMultiProviderClient_ConcurrentGenerate(t *testing.T) {
	first := new(mockProvider)
	first.On("Generate", mock.Anything, "p").Return("ok", nil)
	client := NewMultiProviderClientFrom(wrap(first), 3, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := client.Generate(context.Background(), "p")
			assert.NoError(t, err)
			assert.Equal(t, "ok", out)
		}()
	}
	wg.Wait()
}

func TestMultiProviderClient_Close(t *testing.T) {
	first := new(mockProvider)
	second := new(mockProvider)
	first.On("Close").Return(nil)
	second.On("Close").Return(errors.New("close failed"))

	client := NewMultiProviderClientFrom(wrap(first, second), 3, zap.NewNop())
	assert.EqualError(t, client.Close(), "close failed")
	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestRateLimitedProvider_WaitHonoursContext(t *testing.T) {
	inner := new(mockProvider)
	inner.On("Generate", mock.Anything, "p").Return("ok", nil)

	p := NewRateLimitedProvider(inner, 1, zap.NewNop())
	_, err := p.Generate(context.Background(), "p")
	require.NoError(t, err)

	// Bucket is empty now; the next token is a minute away.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Generate(ctx, "p")
	require.Error(t, err)
	inner.AssertNumberOfCalls(t, "Generate", 1)
}

func TestNewProvider_Errors(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Type: "bard"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewProvider(ProviderConfig{Type: ProviderAnthropic}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewProvider(ProviderConfig{Type: ProviderGroq}, zap.NewNop())
	assert.Error(t, err)
}

func TestNewProvider_OllamaNeedsNoKey(t *testing.T) {
	p, err := NewProvider(ProviderConfig{Type: ProviderOllama}, zap.NewNop())
	require.NoError(t, err)

	info := p.GetModelInfo()
	assert.Equal(t, "ollama", info["provider"])
	assert.Equal(t, "llama3:8b-instruct-q2_K", info["model"])
}

func TestNewMultiProviderClient_NoUsableProviders(t *testing.T) {
	_, err := NewMultiProviderClient(MultiProviderConfig{}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewMultiProviderClient(MultiProviderConfig{
		Providers: []ProviderConfig{{Type: ProviderGroq}},
	}, zap.NewNop())
	assert.Error(t, err)
}
