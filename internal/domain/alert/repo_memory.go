package alert

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memoryRepo struct {
	mu        sync.RWMutex
	alerts    map[uuid.UUID]*Alert
	byPatient map[uuid.UUID][]uuid.UUID
	timeline  map[uuid.UUID][]*TimelineEntry
}

func NewMemoryRepo() Repository {
	return &memoryRepo{
		alerts:    make(map[uuid.UUID]*Alert),
		byPatient: make(map[uuid.UUID][]uuid.UUID),
		timeline:  make(map[uuid.UUID][]*TimelineEntry),
	}
}

func (r *memoryRepo) Save(_ context.Context, a *Alert, entry *TimelineEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.alerts[a.ID]; !exists {
		if a.IsActive() {
			for _, id := range r.byPatient[a.PatientID] {
				if other := r.alerts[id]; other.IsActive() && other.RuleID == a.RuleID {
					return ErrActiveAlertExists
				}
			}
		}
		r.byPatient[a.PatientID] = append(r.byPatient[a.PatientID], a.ID)
	}
	cp := a.clone()
	cp.Timeline = nil
	r.alerts[a.ID] = cp
	if entry != nil {
		ec := *entry
		r.timeline[a.ID] = append(r.timeline[a.ID], &ec)
	}
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.alerts[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	cp := a.clone()
	cp.Timeline = r.timelineLocked(id)
	return cp, nil
}

func (r *memoryRepo) list(patientID uuid.UUID, keep func(*Alert) bool) []*Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Alert
	for _, id := range r.byPatient[patientID] {
		a := r.alerts[id]
		if keep(a) {
			out = append(out, a.clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *memoryRepo) ListActiveByPatient(_ context.Context, patientID uuid.UUID) ([]*Alert, error) {
	return r.list(patientID, (*Alert).IsActive), nil
}

func (r *memoryRepo) ListByPatient(_ context.Context, patientID uuid.UUID, includeClosed bool) ([]*Alert, error) {
	return r.list(patientID, func(a *Alert) bool {
		return includeClosed || a.Status != StatusClosed
	}), nil
}

func (r *memoryRepo) ListTimeline(_ context.Context, alertID uuid.UUID) ([]*TimelineEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.timelineLocked(alertID), nil
}

func (r *memoryRepo) timelineLocked(alertID uuid.UUID) []*TimelineEntry {
	src := r.timeline[alertID]
	out := make([]*TimelineEntry, len(src))
	for i, e := range src {
		ec := *e
		out[i] = &ec
	}
	return out
}
