package retrieval

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/yaml.v3"
)

// MemoryIndex is a process-local Retriever. Ranking is keyword overlap: the
// share of distinct query terms that occur in a fragment. Without a filter,
// fragments sharing no term with a non-empty query are not returned; with a
// filter every matching fragment is a candidate, zero scores ranked last. Suitable for tests and local
// runs; production deployments point at the external retrieval service.
//
// Concurrency: protected by RWMutex.
type MemoryIndex struct {
	mu        sync.RWMutex
	fragments map[Namespace][]indexed
}

type indexed struct {
	fragment Fragment
	terms    map[string]struct{}
}

// Corpus is the on-disk seed format for a MemoryIndex.
type Corpus struct {
	Policy  []Fragment `yaml:"policy"`
	History []Fragment `yaml:"history"`
}

// NewMemoryIndex creates an empty index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{fragments: make(map[Namespace][]indexed)}
}

// LoadCorpus reads a YAML corpus file into a new index.
func LoadCorpus(path string) (*MemoryIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}

	var corpus Corpus
	if err := yaml.Unmarshal(data, &corpus); err != nil {
		return nil, fmt.Errorf("failed to decode corpus: %w", err)
	}

	idx := NewMemoryIndex()
	for _, f := range corpus.Policy {
		idx.Add(NamespacePolicy, f.Text, f.Metadata)
	}
	for _, f := range corpus.History {
		idx.Add(NamespaceHistory, f.Text, f.Metadata)
	}
	return idx, nil
}

// Add indexes a fragment under ns. Metadata is copied.
func (m *MemoryIndex) Add(ns Namespace, text string, metadata map[string]string) {
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.fragments[ns] = append(m.fragments[ns], indexed{
		fragment: Fragment{Text: text, Metadata: md},
		terms:    termSet(text),
	})
}

// Len returns the number of fragments in ns.
func (m *MemoryIndex) Len(ns Namespace) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.fragments[ns])
}

// Search implements Retriever.
func (m *MemoryIndex) Search(ctx context.Context, q Query) ([]Fragment, error) {
	if !q.Namespace.Valid() {
		return nil, fmt.Errorf("unknown namespace %q", q.Namespace)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTerms := termSet(q.Text)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []Fragment
	for _, entry := range m.fragments[q.Namespace] {
		if !matchesFilter(entry.fragment.Metadata, q.Filter) {
			continue
		}

		score := 0.0
		if len(queryTerms) > 0 {
			matched := 0
			for t := range queryTerms {
				if _, ok := entry.terms[t]; ok {
					matched++
				}
			}
			if matched == 0 && len(q.Filter) == 0 {
				continue
			}
			score = float64(matched) / float64(len(queryTerms))
		}

		hit := entry.fragment
		hit.Metadata = make(map[string]string, len(entry.fragment.Metadata))
		for k, v := range entry.fragment.Metadata {
			hit.Metadata[k] = v
		}
		hit.Score = score
		hits = append(hits, hit)
	}

	// Stable: equal scores keep insertion order.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if q.K > 0 && len(hits) > q.K {
		hits = hits[:q.K]
	}
	return hits, nil
}

func matchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func termSet(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
