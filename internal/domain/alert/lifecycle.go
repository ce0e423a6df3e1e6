package alert

import (
	"time"

	"github.com/google/uuid"
)

// allowedTransitions is the only path an alert may take without force.
var allowedTransitions = map[Status]Status{
	StatusOpen:         StatusAcknowledged,
	StatusAcknowledged: StatusResolved,
	StatusResolved:     StatusClosed,
}

var statusRank = map[Status]int{
	StatusOpen:         0,
	StatusAcknowledged: 1,
	StatusResolved:     2,
	StatusClosed:       3,
}

// SystemActor is recorded for transitions nobody requested.
const SystemActor = "system"

// CanTransition reports whether from -> to is a legal unforced step.
func CanTransition(from, to Status) bool {
	next, ok := allowedTransitions[from]
	return ok && next == to
}

// Lifecycle applies status changes to alerts and stamps their milestones.
type Lifecycle struct {
	Now func() time.Time
}

func (l Lifecycle) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

// Open builds a new alert from a rule match together with its initial
// timeline entry.
func (l Lifecycle) Open(o Origin, c Candidate) (*Alert, *TimelineEntry) {
	now := l.now()
	ctx := map[string]interface{}{"rule": c.RuleID, "message": c.Message}
	for k, v := range c.Extras {
		ctx[k] = v
	}
	a := &Alert{
		ID:         uuid.New(),
		PatientID:  o.PatientID,
		RuleID:     c.RuleID,
		Code:       o.Code,
		Value:      o.Value,
		Unit:       o.Unit,
		ObservedAt: o.ObservedAt.UTC(),
		Severity:   c.Severity,
		Status:     StatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
		Context:    ctx,
	}
	msg := c.Message
	entry := &TimelineEntry{
		ID:        uuid.New(),
		AlertID:   a.ID,
		Status:    StatusOpen,
		Notes:     &msg,
		CreatedAt: now,
	}
	a.Timeline = []*TimelineEntry{entry}
	return a, entry
}

// Origin is the measurement an alert is raised about.
type Origin struct {
	PatientID  uuid.UUID
	Code       string
	Value      interface{}
	Unit       string
	ObservedAt time.Time
}

// Transition moves a one step along open -> acknowledged -> resolved -> closed.
// On error a is not modified.
func (l Lifecycle) Transition(a *Alert, to Status, actor, notes *string) (*TimelineEntry, error) {
	if !CanTransition(a.Status, to) {
		return nil, &InvalidTransitionError{From: a.Status, To: to}
	}
	return l.apply(a, to, actor, notes), nil
}

// ForceTransition skips intermediate steps. It still refuses to reopen,
// to move backward, or to leave closed.
func (l Lifecycle) ForceTransition(a *Alert, to Status, actor, notes *string) (*TimelineEntry, error) {
	fromRank, ok := statusRank[a.Status]
	toRank, known := statusRank[to]
	if !ok || !known || to == StatusOpen || a.Status == StatusClosed || toRank <= fromRank {
		return nil, &InvalidTransitionError{From: a.Status, To: to}
	}
	return l.apply(a, to, actor, notes), nil
}

func (l Lifecycle) apply(a *Alert, to Status, actor, notes *string) *TimelineEntry {
	now := l.now()
	if a.Context == nil {
		a.Context = map[string]interface{}{}
	}

	switch to {
	case StatusAcknowledged:
		a.AcknowledgedAt, a.AcknowledgedBy = &now, actor
		a.Context[milestoneKeys[to]] = now.Sub(a.CreatedAt).Seconds()
	case StatusResolved:
		ref := a.CreatedAt
		if a.AcknowledgedAt != nil {
			ref = *a.AcknowledgedAt
		}
		a.ResolvedAt, a.ResolvedBy = &now, actor
		a.Context[milestoneKeys[to]] = now.Sub(ref).Seconds()
	case StatusClosed:
		a.ClosedAt, a.ClosedBy = &now, actor
		a.Context[milestoneKeys[to]] = now.Sub(a.CreatedAt).Seconds()
	}
	a.Status = to
	a.UpdatedAt = now

	entry := &TimelineEntry{
		ID:        uuid.New(),
		AlertID:   a.ID,
		Status:    to,
		ActorID:   actor,
		Notes:     notes,
		CreatedAt: now,
	}
	a.Timeline = append(a.Timeline, entry)
	return entry
}

// milestoneKeys names the context field each milestone's elapsed seconds
// are stored under.
var milestoneKeys = map[Status]string{
	StatusAcknowledged: "time_to_ack_seconds",
	StatusResolved:     "time_to_resolve_seconds",
	StatusClosed:       "time_to_close_seconds",
}
