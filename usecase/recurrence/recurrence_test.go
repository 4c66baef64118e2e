package recurrence

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
	"github.com/taskforge/backend/repository/memory"
)

type capturePublisher struct {
	events []domain.Event
}

func (c *capturePublisher) Publish(ctx context.Context, event domain.Event) error {
	c.events = append(c.events, event)
	return nil
}

type testEnv struct {
	store  *memory.Store
	bus    *capturePublisher
	engine *Engine
	ctx    context.Context
	anchor time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	bus := &capturePublisher{}
	engine := New(store.Rules(), store.Tasks(), store.Principals(), bus, zap.NewNop())
	return &testEnv{
		store:  store,
		bus:    bus,
		engine: engine,
		ctx:    context.Background(),
		anchor: time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC),
	}
}

func (e *testEnv) seedTemplate(t *testing.T, owner string) *domain.Task {
	t.Helper()
	p := domain.Principal{ID: owner, Role: domain.RoleUser, Active: true}
	if _, err := e.store.Principals().Create(e.ctx, &p); err != nil {
		t.Fatalf("seed principal: %v", err)
	}
	task := &domain.Task{
		ID:          "tmpl-" + owner,
		Title:       "standup notes",
		Description: "collect updates",
		Status:      domain.StatusPending,
		Priority:    domain.PriorityHigh,
		OwnerID:     owner,
		AssigneeIDs: []string{owner},
		TagIDs:      []string{"ritual"},
		CreatedAt:   e.anchor.Add(-24 * time.Hour),
		UpdatedAt:   e.anchor.Add(-24 * time.Hour),
	}
	if _, err := e.store.Tasks().Create(e.ctx, task); err != nil {
		t.Fatalf("seed template: %v", err)
	}
	return task
}

func (e *testEnv) seedRule(t *testing.T, template *domain.Task, freq domain.Frequency, interval int, next time.Time, end *time.Time) *domain.RecurrenceRule {
	t.Helper()
	rule := &domain.RecurrenceRule{
		ID:             "rule-" + template.ID,
		TemplateTaskID: template.ID,
		Frequency:      freq,
		Interval:       interval,
		AnchorAt:       e.anchor,
		NextFireAt:     next,
		EndAt:          end,
		Active:         true,
		CreatedAt:      e.anchor,
		UpdatedAt:      e.anchor,
	}
	if _, err := e.store.Rules().Create(e.ctx, rule); err != nil {
		t.Fatalf("seed rule: %v", err)
	}
	return rule
}

func TestWeeklyFireAdvancesAndIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	template := env.seedTemplate(t, "alice")
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	rule := env.seedRule(t, template, domain.FrequencyWeekly, 1, env.anchor, &end)
	now := env.anchor

	created, err := env.engine.FireDue(env.ctx, now)
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created %d tasks, want 1", len(created))
	}
	instance := created[0]
	if instance.DueAt == nil || !instance.DueAt.Equal(env.anchor) {
		t.Fatalf("instance due = %v, want the occurrence %v", instance.DueAt, env.anchor)
	}
	if instance.Status != domain.StatusPending || instance.SourceTemplateID != template.ID {
		t.Fatalf("instance not a pending copy of the template: %+v", instance)
	}
	if instance.Title != template.Title || instance.Priority != template.Priority {
		t.Fatal("template fields not copied")
	}

	stored, err := env.store.Rules().GetByID(env.ctx, rule.ID)
	if err != nil {
		t.Fatalf("reload rule: %v", err)
	}
	wantNext := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	if !stored.NextFireAt.Equal(wantNext) {
		t.Fatalf("next fire = %v, want %v", stored.NextFireAt, wantNext)
	}
	if stored.LastFiredAt == nil || !stored.LastFiredAt.Equal(env.anchor) {
		t.Fatal("fired occurrence not recorded")
	}

	// Retried trigger with the same now must not duplicate the occurrence.
	again, err := env.engine.FireDue(env.ctx, now)
	if err != nil {
		t.Fatalf("refire: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("refire created %d tasks, want 0", len(again))
	}

	if events := len(env.bus.events); events != 1 {
		t.Fatalf("published %d events, want 1 created", events)
	}
	if env.bus.events[0].Kind != domain.EventTaskCreated || env.bus.events[0].ActorID != "alice" {
		t.Fatalf("event = %+v, want created by template owner", env.bus.events[0])
	}
}

func TestDailyCatchUpAcrossInvocations(t *testing.T) {
	env := newTestEnv(t)
	template := env.seedTemplate(t, "alice")
	behind := env.anchor.AddDate(0, 0, -2)
	env.seedRule(t, template, domain.FrequencyDaily, 1, behind, nil)
	now := env.anchor

	var total int
	for i := 0; i < 3; i++ {
		created, err := env.engine.FireDue(env.ctx, now)
		if err != nil {
			t.Fatalf("fire %d: %v", i, err)
		}
		total += len(created)
	}
	// Occurrences at -2d, -1d and 0d, one per invocation.
	if total != 3 {
		t.Fatalf("materialized %d instances, want 3", total)
	}
	extra, err := env.engine.FireDue(env.ctx, now)
	if err != nil {
		t.Fatalf("final fire: %v", err)
	}
	if len(extra) != 0 {
		t.Fatalf("caught-up rule fired again: %d", len(extra))
	}
}

func TestEndDateDeactivates(t *testing.T) {
	env := newTestEnv(t)
	template := env.seedTemplate(t, "alice")
	end := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	rule := env.seedRule(t, template, domain.FrequencyWeekly, 1, env.anchor, &end)

	created, err := env.engine.FireDue(env.ctx, env.anchor)
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created %d, want the final occurrence", len(created))
	}
	stored, err := env.store.Rules().GetByID(env.ctx, rule.ID)
	if err != nil {
		t.Fatalf("reload rule: %v", err)
	}
	if stored.Active {
		t.Fatal("rule must deactivate once the next occurrence passes the end date")
	}
}

func TestOccurrencePastEndNeverFires(t *testing.T) {
	env := newTestEnv(t)
	template := env.seedTemplate(t, "alice")
	end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rule := env.seedRule(t, template, domain.FrequencyDaily, 1, env.anchor, &end)

	created, err := env.engine.FireDue(env.ctx, env.anchor)
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if len(created) != 0 {
		t.Fatalf("created %d, want 0 past end date", len(created))
	}
	stored, _ := env.store.Rules().GetByID(env.ctx, rule.ID)
	if stored.Active {
		t.Fatal("expired rule must deactivate")
	}
}

func TestDeletedTemplateDeactivatesRule(t *testing.T) {
	env := newTestEnv(t)
	template := env.seedTemplate(t, "alice")
	deleted := env.anchor.Add(-time.Hour)
	template.DeletedAt = &deleted
	if err := env.store.Tasks().Update(env.ctx, template); err != nil {
		t.Fatalf("trash template: %v", err)
	}
	rule := env.seedRule(t, template, domain.FrequencyDaily, 1, env.anchor, nil)

	created, err := env.engine.FireDue(env.ctx, env.anchor)
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if len(created) != 0 {
		t.Fatal("trashed template must not materialize instances")
	}
	stored, _ := env.store.Rules().GetByID(env.ctx, rule.ID)
	if stored.Active {
		t.Fatal("rule over trashed template must deactivate")
	}
	if len(env.bus.events) != 0 {
		t.Fatal("deactivation must not publish events")
	}
}

func TestMissingTemplateDeactivatesRule(t *testing.T) {
	env := newTestEnv(t)
	template := env.seedTemplate(t, "alice")
	rule := env.seedRule(t, template, domain.FrequencyDaily, 1, env.anchor, nil)
	rule.TemplateTaskID = "gone"
	if err := env.store.Rules().Update(env.ctx, rule); err != nil {
		t.Fatalf("point rule at missing template: %v", err)
	}

	if _, err := env.engine.FireDue(env.ctx, env.anchor); err != nil {
		t.Fatalf("fire: %v", err)
	}
	stored, _ := env.store.Rules().GetByID(env.ctx, rule.ID)
	if stored.Active {
		t.Fatal("rule with missing template must deactivate")
	}
}

func TestMonthlyAdvance(t *testing.T) {
	rule := &domain.RecurrenceRule{Frequency: domain.FrequencyMonthly, Interval: 2}
	from := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	got := rule.Advance(from)
	want := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("advance = %v, want %v", got, want)
	}
}

func TestCreateRule(t *testing.T) {
	env := newTestEnv(t)
	template := env.seedTemplate(t, "alice")
	owner := domain.Principal{ID: "alice", Role: domain.RoleUser, Active: true}
	outsider := domain.Principal{ID: "eve", Role: domain.RoleUser, Active: true}

	if _, err := env.engine.CreateRule(env.ctx, owner, RuleInput{TemplateTaskID: template.ID, Frequency: "hourly", Interval: 1, AnchorAt: env.anchor}, env.anchor); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("bad frequency: got %v, want INVALID", err)
	}
	if _, err := env.engine.CreateRule(env.ctx, owner, RuleInput{TemplateTaskID: template.ID, Frequency: domain.FrequencyDaily, Interval: 0, AnchorAt: env.anchor}, env.anchor); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("zero interval: got %v, want INVALID", err)
	}
	if _, err := env.engine.CreateRule(env.ctx, outsider, RuleInput{TemplateTaskID: template.ID, Frequency: domain.FrequencyDaily, Interval: 1, AnchorAt: env.anchor}, env.anchor); !domain.IsDomainError(err, domain.ErrCodeForbidden) {
		t.Fatalf("outsider: got %v, want FORBIDDEN", err)
	}

	rule, err := env.engine.CreateRule(env.ctx, owner, RuleInput{TemplateTaskID: template.ID, Frequency: domain.FrequencyDaily, Interval: 1, AnchorAt: env.anchor}, env.anchor)
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}
	if !rule.NextFireAt.Equal(env.anchor) || !rule.Active {
		t.Fatalf("rule not primed at anchor: %+v", rule)
	}
	reloaded, err := env.store.Tasks().GetByID(env.ctx, template.ID)
	if err != nil {
		t.Fatalf("reload template: %v", err)
	}
	if reloaded.RecurrenceRuleID != rule.ID {
		t.Fatal("template must point at its rule")
	}
}

func TestDeactivateRule(t *testing.T) {
	env := newTestEnv(t)
	template := env.seedTemplate(t, "alice")
	rule := env.seedRule(t, template, domain.FrequencyDaily, 1, env.anchor, nil)
	owner := domain.Principal{ID: "alice", Role: domain.RoleUser, Active: true}

	if err := env.engine.DeactivateRule(env.ctx, owner, rule.ID, env.anchor); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	stored, _ := env.store.Rules().GetByID(env.ctx, rule.ID)
	if stored.Active {
		t.Fatal("rule still active")
	}
	if _, err := env.engine.FireDue(env.ctx, env.anchor); err != nil {
		t.Fatalf("fire: %v", err)
	}
	liveInstances, err := env.store.Tasks().List(env.ctx, repository.TaskFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// Only the template itself should exist.
	if len(liveInstances) != 1 {
		t.Fatalf("inactive rule produced instances: %d tasks", len(liveInstances))
	}
}
