// Package registry keeps the process-local progress of running evaluation
// instances. Nothing here is persisted; the audit log is the durable record.
package registry

import (
	"sync"
	"time"

	"github.com/vsudarshan995/RAG-AI/internal/models"
)

// Registry maps instance IDs to their live status
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*models.RegistryEntry
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		entries: make(map[string]*models.RegistryEntry),
	}
}

// Register adds a Running entry for inst. Registering an existing ID resets it.
func (r *Registry) Register(inst *models.Instance) {
	startedAt := inst.CreatedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[inst.ID] = &models.RegistryEntry{
		InstanceID:     inst.ID,
		Status:         models.StatusRunning,
		ClientID:       inst.ClientID,
		SubmissionDate: inst.SubmissionDate,
		StartedAt:      startedAt,
		CompletedSteps: []string{},
	}
}

// RecordStep appends a completed stage name. Unknown IDs are ignored.
func (r *Registry) RecordStep(instanceID, stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[instanceID]; ok {
		e.CompletedSteps = append(e.CompletedSteps, stage)
	}
}

// SetStatus replaces the status of an entry. Unknown IDs are ignored.
func (r *Registry) SetStatus(instanceID, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[instanceID]; ok {
		e.Status = status
	}
}

// Get returns a copy of the entry for instanceID
func (r *Registry) Get(instanceID string) (models.RegistryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[instanceID]
	if !ok {
		return models.RegistryEntry{}, false
	}

	out := *e
	out.CompletedSteps = make([]string, len(e.CompletedSteps))
	copy(out.CompletedSteps, e.CompletedSteps)
	return out, true
}

// Stats summarizes the registry by status
type Stats struct {
	Total     int `json:"total"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Snapshot counts entries per status
func (r *Registry) Snapshot() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{Total: len(r.entries)}
	for _, e := range r.entries {
		switch {
		case e.Status == models.StatusRunning:
			stats.Running++
		case e.Status == models.StatusCompleted:
			stats.Completed++
		case models.IsFailed(e.Status):
			stats.Failed++
		}
	}
	return stats
}
