package service

import (
	"sync"
	"time"

	perr "rolegate/internal/platform/errors"
	"rolegate/internal/services/reconcile/domain"

	"github.com/google/uuid"
)

// Registry tracks at most one non terminal batch job per guild
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*domain.Job)}
}

// Begin registers a new pending job for the guild.
// A conflict is returned while a previous job is still non terminal
func (r *Registry) Begin(guildID, initiator string, at time.Time) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.jobs[guildID]; ok && !cur.State().Terminal() {
		return nil, perr.Conflictf("reconciliation already running for guild %s", guildID)
	}

	job := domain.NewJob(guildID, initiator, at)
	r.jobs[guildID] = job
	return job, nil
}

// Remove drops the job if it is still the one registered for its guild
func (r *Registry) Remove(guildID string, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.jobs[guildID]; ok && cur.ID == id {
		delete(r.jobs, guildID)
	}
}

// Active returns the registered job for a guild when one exists
func (r *Registry) Active(guildID string) (*domain.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[guildID]
	return job, ok
}
