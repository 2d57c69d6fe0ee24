// Package domain defines the reconciliation types and public ports
package domain

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Member is a guild member as seen by the reconciler
type Member struct {
	GuildID string
	UserID  string
	Roles   []string
	Bot     bool
}

// HasRole reports whether the member currently carries roleID
func (m Member) HasRole(roleID string) bool {
	for _, r := range m.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// Verification is the external service's answer for one member
type Verification struct {
	Verified bool
	RoleID   string
}

// GuildConfig is the per guild reconciliation config
type GuildConfig struct {
	GuildID  string
	RoleID   string
	Name     string
	Approved bool
}

// Valid reports whether the config can drive role mutations
func (g GuildConfig) Valid() bool {
	return g.GuildID != "" && g.RoleID != "" && g.Approved
}

// OutcomeKind classifies what happened to one member
type OutcomeKind int

// Outcome kinds
const (
	OutcomeNoChange OutcomeKind = iota
	OutcomeGranted
	OutcomeRevoked
	OutcomeError
)

// String returns the outcome kind label
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeGranted:
		return "granted"
	case OutcomeRevoked:
		return "revoked"
	case OutcomeError:
		return "error"
	default:
		return "no_change"
	}
}

// ErrKind classifies member level failures for reporting
type ErrKind int

// Error kinds
const (
	ErrKindNone ErrKind = iota
	ErrKindLookup
	ErrKindRateLimited
	ErrKindPermanent
	ErrKindAborted
)

// String returns the error kind label
func (k ErrKind) String() string {
	switch k {
	case ErrKindLookup:
		return "lookup_failed"
	case ErrKindRateLimited:
		return "rate_limited"
	case ErrKindPermanent:
		return "permanent"
	case ErrKindAborted:
		return "aborted"
	default:
		return "none"
	}
}

// MemberOutcome is the per member result of a reconciliation pass
type MemberOutcome struct {
	UserID  string
	Kind    OutcomeKind
	ErrKind ErrKind
	Err     error

	// Verified is the upstream answer, meaningful when Kind is not an error
	Verified bool
}

// JobState is the lifecycle state of a batch job
type JobState int

// Job states
const (
	JobPending JobState = iota
	JobRunning
	JobCompleted
	JobAborted
)

// Terminal reports whether the state is final
func (s JobState) Terminal() bool { return s == JobCompleted || s == JobAborted }

// String returns the state label
func (s JobState) String() string {
	switch s {
	case JobRunning:
		return "running"
	case JobCompleted:
		return "completed"
	case JobAborted:
		return "aborted"
	default:
		return "pending"
	}
}

// Job is one batch reconciliation run over a guild roster.
// Workers append outcomes concurrently; all mutable state is guarded
type Job struct {
	ID        uuid.UUID
	GuildID   string
	Initiator string
	StartedAt time.Time

	mu         sync.Mutex
	state      JobState
	finishedAt time.Time
	outcomes   []MemberOutcome
	canceled   atomic.Bool
}

// NewJob creates a pending job
func NewJob(guildID, initiator string, startedAt time.Time) *Job {
	return &Job{
		ID:        uuid.New(),
		GuildID:   guildID,
		Initiator: initiator,
		StartedAt: startedAt,
	}
}

// Cancel requests the job stop dispatching new members
func (j *Job) Cancel() { j.canceled.Store(true) }

// Canceled reports whether a cancel was requested
func (j *Job) Canceled() bool { return j.canceled.Load() }

// State returns the current lifecycle state
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// SetState transitions the job; terminal states record the finish time
func (j *Job) SetState(s JobState, at time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = s
	if s.Terminal() {
		j.finishedAt = at
	}
}

// Append records one member outcome
func (j *Job) Append(o MemberOutcome) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.outcomes = append(j.outcomes, o)
}

// Outcomes returns a copy of the recorded outcomes
func (j *Job) Outcomes() []MemberOutcome {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]MemberOutcome, len(j.outcomes))
	copy(out, j.outcomes)
	return out
}

// FinishedAt returns the finish time, zero while non terminal
func (j *Job) FinishedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.finishedAt
}
