package domain

import "context"

// LookupPort answers verification queries against the external service
type LookupPort interface {
	IsVerified(ctx context.Context, userID, guildID string) (Verification, bool, error)
}

// RolePort applies role mutations on the chat platform
type RolePort interface {
	Grant(ctx context.Context, guildID, userID, roleID string) error
	Revoke(ctx context.Context, guildID, userID, roleID string) error
	RoleExists(ctx context.Context, guildID, roleID string) (bool, error)
}

// RosterPort reads guild membership from the chat platform
type RosterPort interface {
	Member(ctx context.Context, guildID, userID string) (Member, error)
	Members(ctx context.Context, guildID string) ([]Member, error)
}

// ConfigPort resolves the reconciliation config for a guild
type ConfigPort interface {
	Config(ctx context.Context, guildID string) (GuildConfig, error)
}

// AuditPort persists terminal job records
type AuditPort interface {
	RecordJob(ctx context.Context, job *Job) error
}

// EnginePort is the reconciliation surface consumed by the bot and ops modules
type EnginePort interface {
	// ReconcileOne converges a single member and never touches the job registry
	ReconcileOne(ctx context.Context, guildID, userID string) (MemberOutcome, error)

	// ReconcileAll runs a batch job to completion
	ReconcileAll(ctx context.Context, guildID, initiator string) (*Job, error)

	// Start launches a batch job in the background and returns it immediately
	Start(ctx context.Context, guildID, initiator string) (*Job, error)

	// ActiveJob returns the non terminal job for a guild when one exists
	ActiveJob(guildID string) (*Job, bool)
}
