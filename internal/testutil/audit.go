package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vsudarshan995/RAG-AI/internal/models"
)

// MemoryAudit is an in-memory audit log. FailAppend, when set, is returned
// from Append for records whose status matches FailStatus (or every record
// when FailStatus is empty).
type MemoryAudit struct {
	mu         sync.Mutex
	records    []models.AuditRecord
	nextID     int64
	FailAppend error
	FailStatus string
}

func NewMemoryAudit() *MemoryAudit {
	return &MemoryAudit{}
}

func (m *MemoryAudit) Append(ctx context.Context, rec *models.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailAppend != nil && (m.FailStatus == "" || m.FailStatus == rec.Status) {
		return m.FailAppend
	}

	m.nextID++
	rec.ID = m.nextID
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	m.records = append(m.records, *rec)
	return nil
}

func (m *MemoryAudit) QueryByInstance(ctx context.Context, instanceID string) ([]models.AuditRecord, error) {
	return m.filter(func(r models.AuditRecord) bool { return r.InstanceID == instanceID }), nil
}

func (m *MemoryAudit) QueryByClient(ctx context.Context, clientID string) ([]models.AuditRecord, error) {
	return m.filter(func(r models.AuditRecord) bool { return r.ClientID == clientID }), nil
}

func (m *MemoryAudit) PendingInstances(ctx context.Context) ([]models.AuditRecord, error) {
	latest := make(map[string]models.AuditRecord)
	for _, r := range m.filter(func(models.AuditRecord) bool { return true }) {
		latest[r.InstanceID] = r
	}

	var out []models.AuditRecord
	for _, r := range latest {
		if r.Status == models.AuditInProgress {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryAudit) PurgeClient(ctx context.Context, clientID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	var n int64
	for _, r := range m.records {
		if r.ClientID == clientID {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return n, nil
}

func (m *MemoryAudit) Close() error { return nil }

// Records returns a copy of every stored record.
func (m *MemoryAudit) Records() []models.AuditRecord {
	return m.filter(func(models.AuditRecord) bool { return true })
}

// filter returns matching records ordered by (timestamp, id).
func (m *MemoryAudit) filter(keep func(models.AuditRecord) bool) []models.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.AuditRecord
	for _, r := range m.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
