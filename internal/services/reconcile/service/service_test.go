package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"rolegate/internal/modkit"
	perr "rolegate/internal/platform/errors"
	"rolegate/internal/services/reconcile/domain"

	"github.com/rs/zerolog"
)

type fakeLookup struct {
	mu       sync.Mutex
	verified map[string]bool
	errs     map[string]error
	hooks    map[string]func()
	calls    int
}

func (f *fakeLookup) IsVerified(_ context.Context, userID, _ string) (domain.Verification, bool, error) {
	f.mu.Lock()
	f.calls++
	hook := f.hooks[userID]
	err := f.errs[userID]
	ok := f.verified[userID]
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return domain.Verification{}, false, err
	}
	return domain.Verification{Verified: ok, RoleID: "r1"}, ok, nil
}

type fakeRoles struct {
	mu         sync.Mutex
	grants     []string
	revokes    []string
	grantErrs  map[string]error
	revokeErrs map[string]error
	roleGone   bool
}

func (f *fakeRoles) Grant(_ context.Context, _, userID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.grantErrs[userID]; err != nil {
		return err
	}
	f.grants = append(f.grants, userID)
	return nil
}

func (f *fakeRoles) Revoke(_ context.Context, _, userID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.revokeErrs[userID]; err != nil {
		return err
	}
	f.revokes = append(f.revokes, userID)
	return nil
}

func (f *fakeRoles) RoleExists(_ context.Context, _, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.roleGone, nil
}

func (f *fakeRoles) mutations() (grants, revokes []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.grants...), append([]string(nil), f.revokes...)
}

type fakeRoster struct {
	members []domain.Member
}

func (f *fakeRoster) Member(_ context.Context, guildID, userID string) (domain.Member, error) {
	for _, m := range f.members {
		if m.UserID == userID {
			return m, nil
		}
	}
	return domain.Member{}, perr.NotFoundf("member %s not in guild %s", userID, guildID)
}

func (f *fakeRoster) Members(_ context.Context, _ string) ([]domain.Member, error) {
	return f.members, nil
}

type fakeGuilds struct {
	cfg domain.GuildConfig
	err error
}

func (f *fakeGuilds) Config(_ context.Context, _ string) (domain.GuildConfig, error) {
	return f.cfg, f.err
}

type fakeAudit struct {
	mu   sync.Mutex
	jobs []*domain.Job
}

func (f *fakeAudit) RecordJob(_ context.Context, j *domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, j)
	return nil
}

func member(userID string, roles ...string) domain.Member {
	return domain.Member{GuildID: "g1", UserID: userID, Roles: roles}
}

func goodConfig() domain.GuildConfig {
	return domain.GuildConfig{GuildID: "g1", RoleID: "r1", Approved: true}
}

func newEngine(t *testing.T, cfg Config, ports Ports) *Service {
	t.Helper()
	if ports.Guilds == nil {
		ports.Guilds = &fakeGuilds{cfg: goodConfig()}
	}
	return New(modkit.Deps{Log: zerolog.Nop()}, cfg, ports)
}

func TestReconcileOneGrantsMissingRole(t *testing.T) {
	t.Parallel()

	roles := &fakeRoles{}
	svc := newEngine(t, Config{}, Ports{
		Lookup: &fakeLookup{verified: map[string]bool{"u1": true}},
		Roles:  roles,
		Roster: &fakeRoster{members: []domain.Member{member("u1", "other")}},
	})

	out, err := svc.ReconcileOne(context.Background(), "g1", "u1")
	if err != nil {
		t.Fatalf("ReconcileOne = %v", err)
	}
	if out.Kind != domain.OutcomeGranted {
		t.Fatalf("outcome = %v", out.Kind)
	}
	grants, revokes := roles.mutations()
	if len(grants) != 1 || grants[0] != "u1" || len(revokes) != 0 {
		t.Fatalf("grants=%v revokes=%v", grants, revokes)
	}
}

func TestReconcileOneRevokesStaleRole(t *testing.T) {
	t.Parallel()

	roles := &fakeRoles{}
	svc := newEngine(t, Config{}, Ports{
		Lookup: &fakeLookup{},
		Roles:  roles,
		Roster: &fakeRoster{members: []domain.Member{member("u1", "r1")}},
	})

	out, err := svc.ReconcileOne(context.Background(), "g1", "u1")
	if err != nil {
		t.Fatalf("ReconcileOne = %v", err)
	}
	if out.Kind != domain.OutcomeRevoked {
		t.Fatalf("outcome = %v", out.Kind)
	}
}

func TestReconcileOneIsIdempotent(t *testing.T) {
	t.Parallel()

	roles := &fakeRoles{}
	svc := newEngine(t, Config{}, Ports{
		Lookup: &fakeLookup{verified: map[string]bool{"u1": true}},
		Roles:  roles,
		Roster: &fakeRoster{members: []domain.Member{
			member("u1", "r1"),
			member("u2"),
		}},
	})

	// verified member already holds the role
	out, err := svc.ReconcileOne(context.Background(), "g1", "u1")
	if err != nil || out.Kind != domain.OutcomeNoChange {
		t.Fatalf("u1 outcome = %v err = %v", out.Kind, err)
	}
	// unverified member never had it
	out, err = svc.ReconcileOne(context.Background(), "g1", "u2")
	if err != nil || out.Kind != domain.OutcomeNoChange {
		t.Fatalf("u2 outcome = %v err = %v", out.Kind, err)
	}
	grants, revokes := roles.mutations()
	if len(grants) != 0 || len(revokes) != 0 {
		t.Fatalf("converged members must not be mutated: grants=%v revokes=%v", grants, revokes)
	}
}

func TestReconcileOneRejectsUnconfiguredGuild(t *testing.T) {
	t.Parallel()

	svc := newEngine(t, Config{}, Ports{
		Lookup: &fakeLookup{},
		Roles:  &fakeRoles{},
		Roster: &fakeRoster{},
		Guilds: &fakeGuilds{cfg: domain.GuildConfig{GuildID: "g1", Approved: false}},
	})

	_, err := svc.ReconcileOne(context.Background(), "g1", "u1")
	if !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestReconcileOneUnknownMember(t *testing.T) {
	t.Parallel()

	svc := newEngine(t, Config{}, Ports{
		Lookup: &fakeLookup{},
		Roles:  &fakeRoles{},
		Roster: &fakeRoster{},
	})

	_, err := svc.ReconcileOne(context.Background(), "g1", "ghost")
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestBatchConvergesRoster(t *testing.T) {
	t.Parallel()

	roles := &fakeRoles{}
	lookup := &fakeLookup{
		verified: map[string]bool{"u1": true, "u2": true, "u3": true, "u4": false},
		errs:     map[string]error{"u5": perr.Unavailablef("lookup timed out")},
	}
	svc := newEngine(t, Config{Concurrency: 3}, Ports{
		Lookup: lookup,
		Roles:  roles,
		Roster: &fakeRoster{members: []domain.Member{
			member("u1"),
			member("u2"),
			member("u3", "other"),
			member("u4", "r1"),
			member("u5"),
		}},
	})

	job, err := svc.ReconcileAll(context.Background(), "g1", "ops")
	if err != nil {
		t.Fatalf("ReconcileAll = %v", err)
	}
	if got := job.State(); got != domain.JobCompleted {
		t.Fatalf("state = %v", got)
	}

	sum := Summarize(job.Outcomes())
	if sum.Total != 5 || sum.Granted != 3 || sum.Revoked != 1 || sum.Errors != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.ByError["lookup_failed"] != 1 {
		t.Fatalf("by_error = %v", sum.ByError)
	}

	// one member's lookup failure must not stop the others
	grants, revokes := roles.mutations()
	if len(grants) != 3 || len(revokes) != 1 {
		t.Fatalf("grants=%v revokes=%v", grants, revokes)
	}
}

func TestBatchExclusivityPerGuild(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	lookup := &fakeLookup{
		verified: map[string]bool{"u1": true},
		hooks: map[string]func(){"u1": func() {
			once.Do(func() { close(started) })
			<-gate
		}},
	}
	svc := newEngine(t, Config{Concurrency: 1}, Ports{
		Lookup: lookup,
		Roles:  &fakeRoles{},
		Roster: &fakeRoster{members: []domain.Member{member("u1")}},
	})

	first, err := svc.Start(context.Background(), "g1", "ops")
	if err != nil {
		t.Fatalf("Start = %v", err)
	}
	<-started

	if _, err := svc.ReconcileAll(context.Background(), "g1", "ops"); !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("second run should conflict, got %v", err)
	}
	if active, ok := svc.ActiveJob("g1"); !ok || active.ID != first.ID {
		t.Fatalf("active job = %v ok = %v", active, ok)
	}

	close(gate)
	waitTerminal(t, first)

	// a terminal job releases the guild
	if _, err := svc.ReconcileAll(context.Background(), "g1", "ops"); err != nil {
		t.Fatalf("run after terminal = %v", err)
	}
}

func TestBatchCancellationMarksRemainingAborted(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	block := func() {
		wg.Done()
		<-gate
	}
	lookup := &fakeLookup{
		verified: map[string]bool{"u1": true, "u2": true, "u3": true, "u4": true, "u5": true},
		hooks:    map[string]func(){"u1": block, "u2": block},
	}
	svc := newEngine(t, Config{Concurrency: 2}, Ports{
		Lookup: lookup,
		Roles:  &fakeRoles{},
		Roster: &fakeRoster{members: []domain.Member{
			member("u1"), member("u2"), member("u3"), member("u4"), member("u5"),
		}},
	})

	job, err := svc.Start(context.Background(), "g1", "ops")
	if err != nil {
		t.Fatalf("Start = %v", err)
	}

	// u1 and u2 are in flight when the cancel lands
	wg.Wait()
	job.Cancel()
	close(gate)
	waitTerminal(t, job)

	if got := job.State(); got != domain.JobAborted {
		t.Fatalf("state = %v", got)
	}
	sum := Summarize(job.Outcomes())
	if sum.Total != 5 {
		t.Fatalf("total = %d", sum.Total)
	}
	// in-flight members finish, members never dispatched are marked aborted;
	// u3 may land on either side depending on when dispatch observed the cancel
	aborted := sum.ByError["aborted"]
	if sum.Granted < 2 || aborted < 2 || sum.Granted+aborted != 5 {
		t.Fatalf("granted = %d aborted = %d", sum.Granted, aborted)
	}
}

func TestBatchCancelBeforeDispatchAbortsEveryone(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	fetched := make(chan struct{})
	roster := &gatedRoster{
		fakeRoster: fakeRoster{members: []domain.Member{
			member("u1"), member("u2"), member("u3"),
		}},
		gate:    gate,
		fetched: fetched,
	}
	roles := &fakeRoles{}
	svc := newEngine(t, Config{Concurrency: 2}, Ports{
		Lookup: &fakeLookup{verified: map[string]bool{"u1": true, "u2": true, "u3": true}},
		Roles:  roles,
		Roster: roster,
	})

	job, err := svc.Start(context.Background(), "g1", "ops")
	if err != nil {
		t.Fatalf("Start = %v", err)
	}
	<-fetched
	job.Cancel()
	close(gate)
	waitTerminal(t, job)

	if got := job.State(); got != domain.JobAborted {
		t.Fatalf("state = %v", got)
	}
	sum := Summarize(job.Outcomes())
	if sum.Total != 3 || sum.ByError["aborted"] != 3 {
		t.Fatalf("summary = %+v", sum)
	}
	grants, revokes := roles.mutations()
	if len(grants) != 0 || len(revokes) != 0 {
		t.Fatalf("canceled job must not mutate: grants=%v revokes=%v", grants, revokes)
	}
}

// gatedRoster signals when the roster fetch begins and waits for release
type gatedRoster struct {
	fakeRoster
	gate    chan struct{}
	fetched chan struct{}
}

func (g *gatedRoster) Members(ctx context.Context, guildID string) ([]domain.Member, error) {
	close(g.fetched)
	<-g.gate
	return g.fakeRoster.Members(ctx, guildID)
}

func TestBatchAbortsWhenRoleDeletedMidRun(t *testing.T) {
	t.Parallel()

	roles := &fakeRoles{
		grantErrs: map[string]error{"u1": perr.NotFoundf("role gone")},
		roleGone:  true,
	}
	svc := newEngine(t, Config{Concurrency: 1}, Ports{
		Lookup: &fakeLookup{verified: map[string]bool{"u1": true, "u2": true}},
		Roles:  roles,
		Roster: &fakeRoster{members: []domain.Member{member("u1"), member("u2")}},
	})

	job, err := svc.ReconcileAll(context.Background(), "g1", "ops")
	if err != nil {
		t.Fatalf("ReconcileAll = %v", err)
	}
	if got := job.State(); got != domain.JobAborted {
		t.Fatalf("state = %v", got)
	}
}

func TestBatchAbortsOnInvalidConfig(t *testing.T) {
	t.Parallel()

	audit := &fakeAudit{}
	svc := newEngine(t, Config{}, Ports{
		Lookup: &fakeLookup{},
		Roles:  &fakeRoles{},
		Roster: &fakeRoster{members: []domain.Member{member("u1")}},
		Guilds: &fakeGuilds{cfg: domain.GuildConfig{GuildID: "g1"}},
		Audit:  audit,
	})

	job, err := svc.ReconcileAll(context.Background(), "g1", "ops")
	if err != nil {
		t.Fatalf("ReconcileAll = %v", err)
	}
	if got := job.State(); got != domain.JobAborted {
		t.Fatalf("state = %v", got)
	}
	if len(audit.jobs) != 1 {
		t.Fatalf("terminal job should be audited, got %d records", len(audit.jobs))
	}
}

func TestBatchSkipsBots(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{verified: map[string]bool{"u1": true}}
	svc := newEngine(t, Config{}, Ports{
		Lookup: lookup,
		Roles:  &fakeRoles{},
		Roster: &fakeRoster{members: []domain.Member{
			member("u1"),
			{GuildID: "g1", UserID: "bot1", Bot: true},
		}},
	})

	job, err := svc.ReconcileAll(context.Background(), "g1", "ops")
	if err != nil {
		t.Fatalf("ReconcileAll = %v", err)
	}
	sum := Summarize(job.Outcomes())
	if sum.Total != 1 {
		t.Fatalf("bots must be skipped, summary = %+v", sum)
	}
	if lookup.calls != 1 {
		t.Fatalf("lookup calls = %d", lookup.calls)
	}
}

func TestBatchClassifiesRateLimit(t *testing.T) {
	t.Parallel()

	roles := &fakeRoles{grantErrs: map[string]error{"u1": perr.TooManyRequestsf("quota exhausted")}}
	svc := newEngine(t, Config{}, Ports{
		Lookup: &fakeLookup{verified: map[string]bool{"u1": true}},
		Roles:  roles,
		Roster: &fakeRoster{members: []domain.Member{member("u1")}},
	})

	job, err := svc.ReconcileAll(context.Background(), "g1", "ops")
	if err != nil {
		t.Fatalf("ReconcileAll = %v", err)
	}
	sum := Summarize(job.Outcomes())
	if sum.ByError["rate_limited"] != 1 {
		t.Fatalf("by_error = %v", sum.ByError)
	}
}

func TestGrantRetryExhaustionIsNotALookupFailure(t *testing.T) {
	t.Parallel()

	roles := &fakeRoles{grantErrs: map[string]error{"u1": perr.Unavailablef("discord grant failed after retries")}}
	svc := newEngine(t, Config{}, Ports{
		Lookup: &fakeLookup{verified: map[string]bool{"u1": true}},
		Roles:  roles,
		Roster: &fakeRoster{members: []domain.Member{member("u1")}},
	})

	job, err := svc.ReconcileAll(context.Background(), "g1", "ops")
	if err != nil {
		t.Fatalf("ReconcileAll = %v", err)
	}
	sum := Summarize(job.Outcomes())
	if sum.ByError["lookup_failed"] != 0 {
		t.Fatalf("lookup succeeded, by_error = %v", sum.ByError)
	}
	if sum.ByError["rate_limited"] != 1 {
		t.Fatalf("by_error = %v", sum.ByError)
	}
}

func TestLookupBadRequestReportsLookupFailure(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{errs: map[string]error{"u1": perr.InvalidArgf("malformed user id")}}
	svc := newEngine(t, Config{}, Ports{
		Lookup: lookup,
		Roles:  &fakeRoles{},
		Roster: &fakeRoster{members: []domain.Member{member("u1")}},
	})

	job, err := svc.ReconcileAll(context.Background(), "g1", "ops")
	if err != nil {
		t.Fatalf("ReconcileAll = %v", err)
	}
	sum := Summarize(job.Outcomes())
	if sum.ByError["lookup_failed"] != 1 {
		t.Fatalf("by_error = %v", sum.ByError)
	}
}

func TestRevokeForbiddenReportsPermanent(t *testing.T) {
	t.Parallel()

	roles := &fakeRoles{revokeErrs: map[string]error{"u1": perr.Forbiddenf("missing manage roles")}}
	svc := newEngine(t, Config{}, Ports{
		Lookup: &fakeLookup{},
		Roles:  roles,
		Roster: &fakeRoster{members: []domain.Member{member("u1", "r1")}},
	})

	job, err := svc.ReconcileAll(context.Background(), "g1", "ops")
	if err != nil {
		t.Fatalf("ReconcileAll = %v", err)
	}
	sum := Summarize(job.Outcomes())
	if sum.ByError["permanent"] != 1 {
		t.Fatalf("by_error = %v", sum.ByError)
	}
}

func waitTerminal(t *testing.T, job *domain.Job) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job.State().Terminal() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job never reached a terminal state")
}
