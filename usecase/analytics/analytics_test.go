package analytics

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
	"github.com/taskforge/backend/repository/memory"
)

// countingTasks counts aggregate queries so tests can tell cache hits from
// recomputes.
type countingTasks struct {
	repository.TaskRepository
	calls int
}

func (c *countingTasks) CountForScope(ctx context.Context, scope domain.AnalyticsScope, now time.Time) (repository.TaskCounts, error) {
	c.calls++
	return c.TaskRepository.CountForScope(ctx, scope, now)
}

type testEnv struct {
	store *memory.Store
	tasks *countingTasks
	uc    *UseCase
	now   time.Time
	ctx   context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	tasks := &countingTasks{TaskRepository: store.Tasks()}
	uc := New(tasks, store.Snapshots(), 5*time.Minute, zap.NewNop())
	now := time.Date(2024, 4, 10, 15, 0, 0, 0, time.UTC)
	uc.Now = func() time.Time { return now }
	return &testEnv{store: store, tasks: tasks, uc: uc, now: now, ctx: context.Background()}
}

func (e *testEnv) addPrincipal(t *testing.T, id string, role domain.Role, team string) domain.Principal {
	t.Helper()
	p := domain.Principal{ID: id, Role: role, TeamID: team, Active: true, CreatedAt: e.now, UpdatedAt: e.now}
	if _, err := e.store.Principals().Create(e.ctx, &p); err != nil {
		t.Fatalf("seed principal %s: %v", id, err)
	}
	return p
}

func (e *testEnv) addTask(t *testing.T, id, owner string, status domain.TaskStatus, priority domain.TaskPriority, dueAt *time.Time) {
	t.Helper()
	task := &domain.Task{
		ID:        id,
		Title:     "task " + id,
		Status:    status,
		Priority:  priority,
		DueAt:     dueAt,
		OwnerID:   owner,
		CreatedAt: e.now,
		UpdatedAt: e.now,
	}
	if status == domain.StatusCompleted {
		done := e.now
		task.CompletedAt = &done
	}
	if _, err := e.store.Tasks().Create(e.ctx, task); err != nil {
		t.Fatalf("seed task %s: %v", id, err)
	}
}

func TestGetComputesSnapshotAndCaches(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addPrincipal(t, "alice", domain.RoleUser, "")
	past := env.now.Add(-time.Hour)
	env.addTask(t, "t1", "alice", domain.StatusPending, domain.PriorityHigh, &past)
	env.addTask(t, "t2", "alice", domain.StatusInProgress, domain.PriorityMedium, nil)
	env.addTask(t, "t3", "alice", domain.StatusCompleted, domain.PriorityMedium, &past)
	env.addTask(t, "t4", "alice", domain.StatusCompleted, domain.PriorityLow, nil)

	snap, err := env.uc.Get(env.ctx, alice, domain.UserScope("alice"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Total != 4 {
		t.Fatalf("total = %d, want 4", snap.Total)
	}
	if snap.ByStatus[domain.StatusPending] != 1 || snap.ByStatus[domain.StatusInProgress] != 1 || snap.ByStatus[domain.StatusCompleted] != 2 {
		t.Fatalf("by_status = %v, want 1/1/2", snap.ByStatus)
	}
	if snap.ByPriority[domain.PriorityMedium] != 2 || snap.ByPriority[domain.PriorityUrgent] != 0 {
		t.Fatalf("by_priority = %v, want medium 2 and urgent zero-filled", snap.ByPriority)
	}
	// t1 is past due and open; t3 is past due but completed.
	if snap.Overdue != 1 {
		t.Fatalf("overdue = %d, want 1", snap.Overdue)
	}
	if snap.CompletionRate != 0.5 {
		t.Fatalf("completion_rate = %v, want 0.5", snap.CompletionRate)
	}
	if snap.Bucket != "2024-04-10" {
		t.Fatalf("bucket = %s, want 2024-04-10", snap.Bucket)
	}

	if _, err := env.uc.Get(env.ctx, alice, domain.UserScope("alice")); err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if env.tasks.calls != 1 {
		t.Fatalf("count queries = %d, want 1 (second read served from cache)", env.tasks.calls)
	}
}

func TestStaleSnapshotIsRecomputed(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addPrincipal(t, "alice", domain.RoleUser, "")
	env.addTask(t, "t1", "alice", domain.StatusPending, domain.PriorityMedium, nil)

	stale := &domain.AnalyticsSnapshot{
		Scope:      domain.UserScope("alice"),
		Bucket:     domain.DayBucket(env.now),
		Total:      99,
		ByStatus:   map[domain.TaskStatus]int{},
		ByPriority: map[domain.TaskPriority]int{},
		ComputedAt: env.now.Add(-10 * time.Minute),
	}
	if err := env.store.Snapshots().Put(env.ctx, stale); err != nil {
		t.Fatalf("seed stale snapshot: %v", err)
	}

	snap, err := env.uc.Get(env.ctx, alice, domain.UserScope("alice"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Total != 1 {
		t.Fatalf("total = %d, want recomputed 1", snap.Total)
	}
	if !snap.ComputedAt.Equal(env.now) {
		t.Fatalf("computed_at = %v, want refreshed %v", snap.ComputedAt, env.now)
	}
	if env.tasks.calls != 1 {
		t.Fatalf("count queries = %d, want 1", env.tasks.calls)
	}
}

func TestInvalidationForcesRecompute(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addPrincipal(t, "alice", domain.RoleUser, "")
	env.addTask(t, "t1", "alice", domain.StatusPending, domain.PriorityMedium, nil)

	scope := domain.UserScope("alice")
	if _, err := env.uc.Get(env.ctx, alice, scope); err != nil {
		t.Fatalf("Get: %v", err)
	}
	env.addTask(t, "t2", "alice", domain.StatusPending, domain.PriorityMedium, nil)

	// Still cached: the new task is invisible until something invalidates.
	snap, err := env.uc.Get(env.ctx, alice, scope)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Total != 1 {
		t.Fatalf("total = %d, want cached 1", snap.Total)
	}

	if err := env.store.Snapshots().Invalidate(env.ctx, domain.DayBucket(env.now), scope); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	snap, err = env.uc.Get(env.ctx, alice, scope)
	if err != nil {
		t.Fatalf("Get after invalidate: %v", err)
	}
	if snap.Total != 2 {
		t.Fatalf("total = %d, want recomputed 2", snap.Total)
	}
	if env.tasks.calls != 2 {
		t.Fatalf("count queries = %d, want 2", env.tasks.calls)
	}
}

func TestScopeAuthorization(t *testing.T) {
	env := newTestEnv(t)
	admin := env.addPrincipal(t, "root", domain.RoleAdmin, "")
	manager := env.addPrincipal(t, "meg", domain.RoleManager, "team-a")
	user := env.addPrincipal(t, "alice", domain.RoleUser, "team-a")

	cases := []struct {
		name    string
		actor   domain.Principal
		scope   domain.AnalyticsScope
		allowed bool
	}{
		{"user reads own scope", user, domain.UserScope("alice"), true},
		{"user denied another user", user, domain.UserScope("meg"), false},
		{"user denied own team", user, domain.TeamScope("team-a"), false},
		{"user denied global", user, domain.ScopeGlobal, false},
		{"manager reads own scope", manager, domain.UserScope("meg"), true},
		{"manager reads own team", manager, domain.TeamScope("team-a"), true},
		{"manager denied other team", manager, domain.TeamScope("team-b"), false},
		{"manager denied global", manager, domain.ScopeGlobal, false},
		{"admin reads global", admin, domain.ScopeGlobal, true},
		{"admin reads any user", admin, domain.UserScope("alice"), true},
		{"admin reads any team", admin, domain.TeamScope("team-b"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.uc.Get(env.ctx, tc.actor, tc.scope)
			if tc.allowed && err != nil {
				t.Fatalf("got %v, want allowed", err)
			}
			if !tc.allowed && !domain.IsDomainError(err, domain.ErrCodeForbidden) {
				t.Fatalf("got %v, want FORBIDDEN", err)
			}
		})
	}

	if _, err := env.uc.Get(env.ctx, admin, domain.AnalyticsScope("planet:earth")); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("malformed scope: got %v, want INVALID", err)
	}
	inactive := domain.Principal{ID: "ghost", Role: domain.RoleAdmin, Active: false}
	if _, err := env.uc.Get(env.ctx, inactive, domain.ScopeGlobal); !domain.IsDomainError(err, domain.ErrCodeForbidden) {
		t.Fatalf("inactive actor: got %v, want FORBIDDEN", err)
	}
}

func TestEmptyScopeSnapshot(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addPrincipal(t, "alice", domain.RoleUser, "")

	snap, err := env.uc.Get(env.ctx, alice, domain.UserScope("alice"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Total != 0 || snap.CompletionRate != 0 {
		t.Fatalf("empty scope = %+v, want zero totals and rate", snap)
	}
	if len(snap.ByStatus) != 3 || len(snap.ByPriority) != 4 {
		t.Fatalf("zero-fill missing: by_status=%v by_priority=%v", snap.ByStatus, snap.ByPriority)
	}
}
