// Package retrieval defines the knowledge retrieval contract used by the
// evaluation pipeline and two implementations: an HTTP client for an external
// search service and an in-process keyword index.
package retrieval

import "context"

// Namespace is a logical partition of indexed text searched independently.
type Namespace string

const (
	NamespacePolicy  Namespace = "policy"
	NamespaceHistory Namespace = "history"
)

// Metadata keys written by the ingestion side.
const (
	MetaDocumentCategory = "document_category"
	MetaClientID         = "client_id"
	MetaSubmissionDate   = "submission_date"
	MetaSourceType       = "source_type"
)

// Fragment is one ranked search hit.
type Fragment struct {
	Text     string            `json:"text" yaml:"text"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata"`
	Score    float64           `json:"score,omitempty" yaml:"-"`
}

// Query describes a similarity search. Filter entries must all match the
// fragment's metadata exactly.
type Query struct {
	Text      string            `json:"query"`
	Namespace Namespace         `json:"namespace"`
	K         int               `json:"k"`
	Filter    map[string]string `json:"filter,omitempty"`
}

// Retriever returns fragments ranked best-first, at most q.K of them.
type Retriever interface {
	Search(ctx context.Context, q Query) ([]Fragment, error)
}

// Valid reports whether n is a known namespace.
func (n Namespace) Valid() bool {
	return n == NamespacePolicy || n == NamespaceHistory
}
