package brief

import (
	"fmt"
	"strings"
)

type ProjectStatus string

const (
	ProjectDraft    ProjectStatus = "draft"
	ProjectApproved ProjectStatus = "approved"
)

func ParseProjectStatus(value string) (ProjectStatus, error) {
	switch status := ProjectStatus(strings.ToLower(strings.TrimSpace(value))); status {
	case ProjectDraft, ProjectApproved:
		return status, nil
	default:
		return "", fmt.Errorf("unknown project status %q", value)
	}
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority accepts the four tiers; blank input means normal.
func ParsePriority(value string) (Priority, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return PriorityNormal, nil
	}
	switch priority := Priority(trimmed); priority {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return priority, nil
	default:
		return "", fmt.Errorf("unknown priority %q", value)
	}
}

// RequestStatus only moves forward: pending to approved or rejected, approved to implemented.
type RequestStatus string

const (
	RequestPending     RequestStatus = "pending"
	RequestApproved    RequestStatus = "approved"
	RequestRejected    RequestStatus = "rejected"
	RequestImplemented RequestStatus = "implemented"
)

// CanTransition reports whether a change request may move from s to next.
func (s RequestStatus) CanTransition(next RequestStatus) bool {
	switch s {
	case RequestPending:
		return next == RequestApproved || next == RequestRejected
	case RequestApproved:
		return next == RequestImplemented
	default:
		return false
	}
}

// ParseReviewDecision accepts only the two outcomes a reviewer may choose.
func ParseReviewDecision(value string) (RequestStatus, error) {
	switch status := RequestStatus(strings.ToLower(strings.TrimSpace(value))); status {
	case RequestApproved, RequestRejected:
		return status, nil
	default:
		return "", fmt.Errorf("review status must be approved or rejected, got %q", value)
	}
}

const systemName = "System"

// Actor identifies who performed an audited action.
type Actor struct {
	name string
}

// System is the actor for unattributed, automated actions.
var System = Actor{}

// User returns a named actor. A blank name yields System.
func User(name string) Actor {
	return Actor{name: strings.TrimSpace(name)}
}

// ActorFrom rebuilds an actor from its stored kind and name.
func ActorFrom(kind, name string) Actor {
	if kind == "system" {
		return System
	}
	return User(name)
}

func (a Actor) IsSystem() bool { return a.name == "" }

func (a Actor) Name() string {
	if a.IsSystem() {
		return systemName
	}
	return a.name
}

func (a Actor) Kind() string {
	if a.IsSystem() {
		return "system"
	}
	return "user"
}

func (a Actor) String() string { return a.Name() }
