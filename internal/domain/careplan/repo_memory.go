package careplan

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type revisionRepoMemory struct {
	mu        sync.RWMutex
	byPatient map[uuid.UUID][]*Revision
}

func NewRevisionRepoMemory() RevisionRepository {
	return &revisionRepoMemory{byPatient: make(map[uuid.UUID][]*Revision)}
}

func (m *revisionRepoMemory) Create(_ context.Context, r *Revision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.New()
	r.Version = len(m.byPatient[r.PatientID]) + 1
	cp := *r
	m.byPatient[r.PatientID] = append(m.byPatient[r.PatientID], &cp)
	return nil
}

func (m *revisionRepoMemory) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Revision, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	revs := m.byPatient[patientID]
	total := len(revs)
	var items []*Revision
	for i := total - 1 - offset; i >= 0 && (limit <= 0 || len(items) < limit); i-- {
		cp := *revs[i]
		items = append(items, &cp)
	}
	return items, total, nil
}

func (m *revisionRepoMemory) HasAnyRevision(_ context.Context, patientID uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byPatient[patientID]) > 0, nil
}

func (m *revisionRepoMemory) ListPatientIDs(_ context.Context) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(m.byPatient))
	for id, revs := range m.byPatient {
		if len(revs) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}
