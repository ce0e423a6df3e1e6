package alert

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrActiveAlertExists is returned by a store when saving a new alert would
// give the patient a second active alert for the same rule.
var ErrActiveAlertExists = errors.New("active alert already exists for rule")

// InvalidTransitionError rejects a lifecycle move. The alert is left unchanged.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

type NotFoundError struct {
	ID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("alert %s not found", e.ID)
}

var validStatuses = map[Status]bool{
	StatusOpen:         true,
	StatusAcknowledged: true,
	StatusResolved:     true,
	StatusClosed:       true,
}

// ParseStatus accepts any known status, case-insensitively.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !validStatuses[st] {
		return "", fmt.Errorf("unknown alert status %q", s)
	}
	return st, nil
}
