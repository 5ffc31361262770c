package testutil

import (
	"context"
	"strings"
	"sync"
)

// ScriptedLLM answers prompts by prefix. The first rule whose prefix matches
// the prompt wins; unmatched prompts get Default.
type ScriptedLLM struct {
	mu      sync.Mutex
	rules   []rule
	Default string
	prompts []string
	block   chan struct{}
}

type rule struct {
	prefix string
	out    string
	err    error
}

// NewScriptedLLM returns an LLM that answers every prompt with def.
func NewScriptedLLM(def string) *ScriptedLLM {
	return &ScriptedLLM{Default: def}
}

// On registers a reply for prompts starting with prefix (chainable).
func (l *ScriptedLLM) On(prefix, out string) *ScriptedLLM {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rules = append(l.rules, rule{prefix: prefix, out: out})
	return l
}

// Fail registers an error for prompts starting with prefix (chainable).
func (l *ScriptedLLM) Fail(prefix string, err error) *ScriptedLLM {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rules = append(l.rules, rule{prefix: prefix, err: err})
	return l
}

// Block makes every Generate call wait until Release is called or the
// context ends.
func (l *ScriptedLLM) Block() *ScriptedLLM {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.block = make(chan struct{})
	return l
}

// Release unblocks pending and future Generate calls.
func (l *ScriptedLLM) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.block != nil {
		close(l.block)
		l.block = nil
	}
}

func (l *ScriptedLLM) Generate(ctx context.Context, prompt string) (string, error) {
	l.mu.Lock()
	l.prompts = append(l.prompts, prompt)
	block := l.block
	rules := l.rules
	def := l.Default
	l.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	for _, r := range rules {
		if strings.HasPrefix(prompt, r.prefix) {
			return r.out, r.err
		}
	}
	return def, nil
}

func (l *ScriptedLLM) Close() error { return nil }

func (l *ScriptedLLM) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{"provider": "scripted", "model": "test"}
}

// Prompts returns every prompt received so far, in order.
func (l *ScriptedLLM) Prompts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.prompts...)
}
