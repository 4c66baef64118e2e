package services

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
	"github.com/taskforge/backend/repository/memory"
)

type fanoutEnv struct {
	store  *memory.Store
	fanout *Fanout
	now    time.Time
	ctx    context.Context
}

func newFanoutEnv(t *testing.T) *fanoutEnv {
	t.Helper()
	store := memory.NewStore()
	return &fanoutEnv{
		store:  store,
		fanout: NewFanout(store.Notifications(), store.Tasks(), zap.NewNop()),
		now:    time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC),
		ctx:    context.Background(),
	}
}

func (e *fanoutEnv) addTask(t *testing.T, id, owner string, dueAt *time.Time, assignees ...string) *domain.Task {
	t.Helper()
	task := &domain.Task{
		ID:          id,
		Title:       "task " + id,
		Status:      domain.StatusPending,
		Priority:    domain.PriorityMedium,
		DueAt:       dueAt,
		OwnerID:     owner,
		AssigneeIDs: assignees,
		CreatedAt:   e.now,
		UpdatedAt:   e.now,
	}
	if _, err := e.store.Tasks().Create(e.ctx, task); err != nil {
		t.Fatalf("seed task %s: %v", id, err)
	}
	return task
}

func (e *fanoutEnv) inbox(t *testing.T, recipient string) []domain.Notification {
	t.Helper()
	out, err := e.store.Notifications().ListByRecipient(e.ctx, recipient, repository.NotificationFilter{})
	if err != nil {
		t.Fatalf("inbox %s: %v", recipient, err)
	}
	return out
}

func kinds(notifications []domain.Notification) []domain.NotificationKind {
	out := make([]domain.NotificationKind, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, n.Kind)
	}
	return out
}

func TestAssignmentNotifiesNewAssigneesOnly(t *testing.T) {
	env := newFanoutEnv(t)
	before := env.addTask(t, "t1", "owner", nil, "bob")
	after := before.Clone()
	after.AssigneeIDs = []string{"bob", "carol", "dave"}

	err := env.fanout.Handle(env.ctx, domain.Event{
		ID:         "e1",
		Kind:       domain.EventTaskAssigned,
		TaskID:     "t1",
		ActorID:    "meg",
		Before:     before.Clone(),
		After:      after,
		OccurredAt: env.now,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	for _, recipient := range []string{"carol", "dave"} {
		inbox := env.inbox(t, recipient)
		if len(inbox) != 1 || inbox[0].Kind != domain.NotificationAssigned {
			t.Fatalf("%s inbox = %v, want one assigned", recipient, kinds(inbox))
		}
		if inbox[0].ActorID != "meg" || inbox[0].TaskID != "t1" {
			t.Fatalf("%s notification = %+v, want actor meg task t1", recipient, inbox[0])
		}
	}
	if got := env.inbox(t, "bob"); len(got) != 0 {
		t.Fatalf("bob was already assigned, inbox = %v", kinds(got))
	}
}

func TestAssignmentSkipsActor(t *testing.T) {
	env := newFanoutEnv(t)
	before := env.addTask(t, "t1", "owner", nil)
	after := before.Clone()
	after.AssigneeIDs = []string{"meg", "carol"}

	err := env.fanout.Handle(env.ctx, domain.Event{
		Kind:       domain.EventTaskAssigned,
		TaskID:     "t1",
		ActorID:    "meg",
		Before:     before.Clone(),
		After:      after,
		OccurredAt: env.now,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := env.inbox(t, "meg"); len(got) != 0 {
		t.Fatalf("actor notified of own assignment: %v", kinds(got))
	}
	if got := env.inbox(t, "carol"); len(got) != 1 {
		t.Fatalf("carol inbox = %v, want one assigned", kinds(got))
	}
}

func TestCreationNotifiesInitialAssignees(t *testing.T) {
	env := newFanoutEnv(t)
	task := env.addTask(t, "t1", "owner", nil, "bob", "carol")

	err := env.fanout.Handle(env.ctx, domain.Event{
		Kind:       domain.EventTaskCreated,
		TaskID:     "t1",
		ActorID:    "owner",
		After:      task.Clone(),
		OccurredAt: env.now,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := env.inbox(t, "bob"); len(got) != 1 || got[0].Kind != domain.NotificationAssigned {
		t.Fatalf("bob inbox = %v, want one assigned", kinds(got))
	}
	if got := env.inbox(t, "carol"); len(got) != 1 {
		t.Fatalf("carol inbox = %v, want one assigned", kinds(got))
	}
	if got := env.inbox(t, "owner"); len(got) != 0 {
		t.Fatalf("owner inbox = %v, want empty", kinds(got))
	}
}

func TestCompletionNotifiesOwner(t *testing.T) {
	env := newFanoutEnv(t)
	task := env.addTask(t, "t1", "owner", nil, "bob")
	before := task.Clone()
	before.Status = domain.StatusInProgress
	after := task.Clone()
	after.Status = domain.StatusCompleted

	err := env.fanout.Handle(env.ctx, domain.Event{
		Kind:       domain.EventStatusChanged,
		TaskID:     "t1",
		ActorID:    "bob",
		Before:     before,
		After:      after,
		OccurredAt: env.now,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	inbox := env.inbox(t, "owner")
	if len(inbox) != 1 || inbox[0].Kind != domain.NotificationCompleted {
		t.Fatalf("owner inbox = %v, want one completed", kinds(inbox))
	}

	// The owner completing their own task stays silent.
	err = env.fanout.Handle(env.ctx, domain.Event{
		Kind:       domain.EventTaskCompleted,
		TaskID:     "t1",
		ActorID:    "owner",
		Before:     before.Clone(),
		After:      after.Clone(),
		OccurredAt: env.now,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if inbox := env.inbox(t, "owner"); len(inbox) != 1 {
		t.Fatalf("owner inbox = %v, want still one", kinds(inbox))
	}
}

func TestReopeningIsNotCompletion(t *testing.T) {
	env := newFanoutEnv(t)
	task := env.addTask(t, "t1", "owner", nil)
	before := task.Clone()
	before.Status = domain.StatusCompleted
	after := task.Clone()
	after.Status = domain.StatusPending

	err := env.fanout.Handle(env.ctx, domain.Event{
		Kind:       domain.EventStatusChanged,
		TaskID:     "t1",
		ActorID:    "bob",
		Before:     before,
		After:      after,
		OccurredAt: env.now,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if inbox := env.inbox(t, "owner"); len(inbox) != 0 {
		t.Fatalf("owner inbox = %v, want empty on reopen", kinds(inbox))
	}
}

func TestCommentMentionOutranksCommented(t *testing.T) {
	env := newFanoutEnv(t)
	task := env.addTask(t, "t1", "owner", nil, "alice", "bob")

	err := env.fanout.Handle(env.ctx, domain.Event{
		Kind:         domain.EventTaskCommented,
		TaskID:       "t1",
		ActorID:      "alice",
		Before:       task.Clone(),
		After:        task.Clone(),
		CommentID:    "c1",
		MentionedIDs: []string{"bob", "xavier"},
		OccurredAt:   env.now,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	// bob is assignee and mentioned: exactly one notification, the mention.
	bob := env.inbox(t, "bob")
	if len(bob) != 1 || bob[0].Kind != domain.NotificationMentioned {
		t.Fatalf("bob inbox = %v, want one mentioned", kinds(bob))
	}
	if bob[0].CommentID != "c1" {
		t.Fatalf("bob notification comment = %q, want c1", bob[0].CommentID)
	}
	xavier := env.inbox(t, "xavier")
	if len(xavier) != 1 || xavier[0].Kind != domain.NotificationMentioned {
		t.Fatalf("xavier inbox = %v, want one mentioned", kinds(xavier))
	}
	owner := env.inbox(t, "owner")
	if len(owner) != 1 || owner[0].Kind != domain.NotificationCommented {
		t.Fatalf("owner inbox = %v, want one commented", kinds(owner))
	}
	if got := env.inbox(t, "alice"); len(got) != 0 {
		t.Fatalf("commenter inbox = %v, want empty", kinds(got))
	}
}

func TestScanDueSoon(t *testing.T) {
	env := newFanoutEnv(t)
	soon := env.now.Add(6 * time.Hour)
	faraway := env.now.Add(72 * time.Hour)
	env.addTask(t, "due-soon", "owner", &soon, "bob")
	env.addTask(t, "due-later", "owner", &faraway)
	env.addTask(t, "no-due", "owner", nil)
	completed := env.addTask(t, "done", "owner", &soon)
	completed.Status = domain.StatusCompleted
	if err := env.store.Tasks().Update(env.ctx, completed); err != nil {
		t.Fatalf("complete task: %v", err)
	}

	produced, err := env.fanout.ScanDueSoon(env.ctx, env.now, 24*time.Hour)
	if err != nil {
		t.Fatalf("ScanDueSoon: %v", err)
	}
	if len(produced) != 2 {
		t.Fatalf("produced %d notifications, want owner+bob for due-soon", len(produced))
	}
	for _, n := range produced {
		if n.Kind != domain.NotificationDueSoon || n.TaskID != "due-soon" {
			t.Fatalf("notification = %+v, want due_soon for due-soon", n)
		}
		if n.DueAt == nil || !n.DueAt.Equal(soon) {
			t.Fatalf("notification due_at = %v, want %v", n.DueAt, soon)
		}
	}

	// The sweep is idempotent for the same due date.
	again, err := env.fanout.ScanDueSoon(env.ctx, env.now.Add(time.Hour), 24*time.Hour)
	if err != nil {
		t.Fatalf("second ScanDueSoon: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second sweep produced %d notifications, want 0", len(again))
	}

	// Moving the due date re-arms the reminder.
	moved := env.now.Add(10 * time.Hour)
	task, _ := env.store.Tasks().GetByID(env.ctx, "due-soon")
	task.DueAt = &moved
	if err := env.store.Tasks().Update(env.ctx, task); err != nil {
		t.Fatalf("move due date: %v", err)
	}
	rearmed, err := env.fanout.ScanDueSoon(env.ctx, env.now, 24*time.Hour)
	if err != nil {
		t.Fatalf("third ScanDueSoon: %v", err)
	}
	if len(rearmed) != 2 {
		t.Fatalf("rearmed sweep produced %d, want 2 for the new due date", len(rearmed))
	}
}

func TestScanOverdue(t *testing.T) {
	env := newFanoutEnv(t)
	past := env.now.Add(-2 * time.Hour)
	future := env.now.Add(2 * time.Hour)
	env.addTask(t, "late", "owner", &past, "bob")
	env.addTask(t, "on-track", "owner", &future)
	finished := env.addTask(t, "finished-late", "owner", &past)
	finished.Status = domain.StatusCompleted
	if err := env.store.Tasks().Update(env.ctx, finished); err != nil {
		t.Fatalf("complete task: %v", err)
	}

	produced, err := env.fanout.ScanOverdue(env.ctx, env.now)
	if err != nil {
		t.Fatalf("ScanOverdue: %v", err)
	}
	if len(produced) != 2 {
		t.Fatalf("produced %d notifications, want owner+bob for late", len(produced))
	}
	for _, n := range produced {
		if n.Kind != domain.NotificationOverdue || n.TaskID != "late" {
			t.Fatalf("notification = %+v, want overdue for late", n)
		}
	}

	again, err := env.fanout.ScanOverdue(env.ctx, env.now.Add(time.Hour))
	if err != nil {
		t.Fatalf("second ScanOverdue: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second sweep produced %d notifications, want 0", len(again))
	}
}
