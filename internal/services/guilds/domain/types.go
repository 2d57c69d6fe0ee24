// Package domain defines guild registry types and ports
package domain

import "time"

// Guild is the reconciliation config mirrored from the verification service
type Guild struct {
	GuildID  string
	RoleID   string
	Name     string
	OwnerID  string
	Approved bool

	// SyncedAt is when the row was last refreshed from upstream
	SyncedAt time.Time
}

// Fresh reports whether the mirror row is inside its ttl
func (g Guild) Fresh(now time.Time, ttl time.Duration) bool {
	if g.SyncedAt.IsZero() {
		return false
	}
	return now.Sub(g.SyncedAt) < ttl
}

// RegisterParams describes a guild registration request
type RegisterParams struct {
	GuildID string
	Name    string
	OwnerID string
}
