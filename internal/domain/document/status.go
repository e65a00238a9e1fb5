package document

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/docrag/internal/domain"
)

// Status is the indexing lifecycle state.
type Status string

// Lifecycle states.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("%w: invalid status %q (use pending, processing, completed or failed)",
			domain.ErrValidation, s)
	}
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether s -> to is a legal move.
func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Permission is the access level granted by a share.
type Permission string

// Share permissions.
const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

// Valid reports whether p is read or write.
func (p Permission) Valid() bool {
	return p == PermissionRead || p == PermissionWrite
}

// Share is an explicit access grant to a non-owner.
type Share struct {
	UserID     string
	Permission Permission
	SharedAt   time.Time
}
