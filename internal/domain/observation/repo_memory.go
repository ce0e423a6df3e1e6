package observation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepo struct {
	mu        sync.RWMutex
	byPatient map[uuid.UUID][]*Observation
}

func NewMemoryRepo() Repository {
	return &memoryRepo{byPatient: make(map[uuid.UUID][]*Observation)}
}

func (r *memoryRepo) Append(_ context.Context, obs []*Observation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range obs {
		cp := *o
		r.byPatient[o.PatientID] = append(r.byPatient[o.PatientID], &cp)
	}
	return nil
}

// sorted returns a newest-first copy of the patient's observations filtered by code.
func (r *memoryRepo) sorted(patientID uuid.UUID, code string, keep func(*Observation) bool) []*Observation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Observation
	for _, o := range r.byPatient[patientID] {
		if code != "" && o.Code != code {
			continue
		}
		if keep != nil && !keep(o) {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EffectiveAt.After(out[j].EffectiveAt) })
	return out
}

func (r *memoryRepo) ListByPatient(_ context.Context, patientID uuid.UUID, code string, limit, offset int) ([]*Observation, int, error) {
	all := r.sorted(patientID, code, nil)
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (r *memoryRepo) RecentWithinMinutes(_ context.Context, patientID uuid.UUID, code string, asOf time.Time, minutes int) ([]*Observation, error) {
	since := asOf.Add(-time.Duration(minutes) * time.Minute)
	return r.sorted(patientID, code, func(o *Observation) bool {
		return !o.EffectiveAt.Before(since) && !o.EffectiveAt.After(asOf)
	}), nil
}
