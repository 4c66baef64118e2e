// Package recurrence materializes task instances from recurrence rules.
// Firing is driven by an external trigger handing in the current time; the
// engine itself never consults a wall clock.
package recurrence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/pkg/keymutex"
	"github.com/taskforge/backend/repository"
	"github.com/taskforge/backend/usecase"
	"github.com/taskforge/backend/usecase/policy"
)

// maxRulesPerSweep bounds one FireDue pass; rules left over are picked up by
// the next trigger.
const maxRulesPerSweep = 200

type Engine struct {
	rules      repository.RecurrenceRepository
	tasks      repository.TaskRepository
	principals repository.PrincipalRepository
	events     usecase.EventPublisher
	locks      *keymutex.M
	logger     *zap.Logger
}

func New(
	rules repository.RecurrenceRepository,
	tasks repository.TaskRepository,
	principals repository.PrincipalRepository,
	events usecase.EventPublisher,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = usecase.NopPublisher{}
	}
	return &Engine{
		rules:      rules,
		tasks:      tasks,
		principals: principals,
		events:     events,
		locks:      keymutex.New(),
		logger:     logger,
	}
}

// FireDue materializes at most one occurrence per due rule. Rules that fail
// individually are logged and skipped; the sweep continues.
func (e *Engine) FireDue(ctx context.Context, now time.Time) ([]domain.Task, error) {
	due, err := e.rules.ListDue(ctx, now, maxRulesPerSweep)
	if err != nil {
		return nil, err
	}
	var created []domain.Task
	for _, rule := range due {
		instance, err := e.fireRule(ctx, rule.ID, now)
		if err != nil {
			e.logger.Error("recurrence firing failed",
				zap.String("rule_id", rule.ID),
				zap.Error(err))
			continue
		}
		if instance != nil {
			created = append(created, *instance)
		}
	}
	return created, nil
}

// fireRule handles one rule under its lock. The rule is advanced before the
// instance is created: a crash between the two loses one occurrence instead
// of duplicating it, keeping firing at-most-once per occurrence.
func (e *Engine) fireRule(ctx context.Context, ruleID string, now time.Time) (*domain.Task, error) {
	e.locks.Lock(ruleID)
	defer e.locks.Unlock(ruleID)

	rule, err := e.rules.GetByID(ctx, ruleID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !rule.Active || rule.NextFireAt.After(now) {
		return nil, nil
	}
	occurrence := rule.NextFireAt
	if rule.AlreadyFired(occurrence) {
		return nil, nil
	}
	if rule.Expired(occurrence) {
		return nil, e.deactivate(ctx, rule, now)
	}

	template, err := e.tasks.GetByID(ctx, rule.TemplateTaskID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, e.deactivate(ctx, rule, now)
		}
		return nil, err
	}
	if template.IsDeleted() {
		return nil, e.deactivate(ctx, rule, now)
	}

	fired := occurrence
	rule.LastFiredAt = &fired
	rule.NextFireAt = rule.Advance(occurrence)
	if rule.Expired(rule.NextFireAt) {
		rule.Active = false
	}
	rule.UpdatedAt = now
	if err := e.rules.Update(ctx, rule); err != nil {
		return nil, err
	}

	due := occurrence
	instance := &domain.Task{
		ID:               uuid.NewString(),
		Title:            template.Title,
		Description:      template.Description,
		Status:           domain.StatusPending,
		Priority:         template.Priority,
		DueAt:            &due,
		OwnerID:          template.OwnerID,
		AssigneeIDs:      append([]string(nil), template.AssigneeIDs...),
		CategoryID:       template.CategoryID,
		TagIDs:           append([]string(nil), template.TagIDs...),
		SourceTemplateID: template.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	created, err := e.tasks.Create(ctx, instance)
	if err != nil {
		return nil, err
	}
	if err := e.events.Publish(ctx, domain.Event{
		ID:         uuid.NewString(),
		Kind:       domain.EventTaskCreated,
		TaskID:     created.ID,
		ActorID:    template.OwnerID,
		After:      created.Clone(),
		OccurredAt: now,
	}); err != nil {
		e.logger.Error("failed to publish lifecycle event",
			zap.String("kind", string(domain.EventTaskCreated)),
			zap.String("task_id", created.ID),
			zap.Error(err))
	}
	return created, nil
}

func (e *Engine) deactivate(ctx context.Context, rule *domain.RecurrenceRule, now time.Time) error {
	rule.Active = false
	rule.UpdatedAt = now
	return e.rules.Update(ctx, rule)
}

// RuleInput carries the fields of a new recurrence rule.
type RuleInput struct {
	TemplateTaskID string
	Frequency      domain.Frequency
	Interval       int
	AnchorAt       time.Time
	EndAt          *time.Time
}

// CreateRule attaches a rule to a template task. The actor needs the
// update_fields permission on the template; the first occurrence fires at
// the anchor.
func (e *Engine) CreateRule(ctx context.Context, actor domain.Principal, input RuleInput, now time.Time) (*domain.RecurrenceRule, error) {
	if !domain.ValidFrequency(input.Frequency) {
		return nil, domain.Errorf(domain.ErrCodeInvalid, "unknown frequency %q", input.Frequency)
	}
	if input.Interval < 1 {
		return nil, domain.NewError(domain.ErrCodeInvalid, "interval must be at least 1")
	}
	if input.AnchorAt.IsZero() {
		return nil, domain.NewError(domain.ErrCodeInvalid, "anchor time is required")
	}
	if input.EndAt != nil && !input.EndAt.After(input.AnchorAt) {
		return nil, domain.NewError(domain.ErrCodeInvalid, "end must be after anchor")
	}
	template, err := e.tasks.GetByID(ctx, input.TemplateTaskID)
	if err != nil {
		return nil, err
	}
	if template.IsDeleted() {
		return nil, domain.ErrTaskDeleted
	}
	if err := e.authorizeTemplate(ctx, actor, template); err != nil {
		return nil, err
	}

	rule := &domain.RecurrenceRule{
		ID:             uuid.NewString(),
		TemplateTaskID: template.ID,
		Frequency:      input.Frequency,
		Interval:       input.Interval,
		AnchorAt:       input.AnchorAt,
		NextFireAt:     input.AnchorAt,
		EndAt:          input.EndAt,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	created, err := e.rules.Create(ctx, rule)
	if err != nil {
		return nil, err
	}
	template.RecurrenceRuleID = created.ID
	template.UpdatedAt = now
	if err := e.tasks.Update(ctx, template); err != nil {
		return nil, err
	}
	return created, nil
}

// DeactivateRule turns a rule off without touching produced instances.
func (e *Engine) DeactivateRule(ctx context.Context, actor domain.Principal, ruleID string, now time.Time) error {
	rule, err := e.rules.GetByID(ctx, ruleID)
	if err != nil {
		return err
	}
	template, err := e.tasks.GetByID(ctx, rule.TemplateTaskID)
	if err == nil {
		if err := e.authorizeTemplate(ctx, actor, template); err != nil {
			return err
		}
	} else if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		return err
	} else if !actor.IsAdmin() {
		// Orphaned rules are an admin cleanup concern.
		return domain.Errorf(domain.ErrCodeForbidden, "principal %s may not manage rule %s", actor.ID, ruleID)
	}
	e.locks.Lock(ruleID)
	defer e.locks.Unlock(ruleID)
	rule, err = e.rules.GetByID(ctx, ruleID)
	if err != nil {
		return err
	}
	return e.deactivate(ctx, rule, now)
}

func (e *Engine) authorizeTemplate(ctx context.Context, actor domain.Principal, template *domain.Task) error {
	in := policy.Input{Principal: actor, Task: *template}
	if actor.Role == domain.RoleManager && e.principals != nil {
		owner, err := e.principals.GetByID(ctx, template.OwnerID)
		if err == nil {
			in.OwnerTeamID = owner.TeamID
		} else if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return err
		}
	}
	return policy.Authorize(in, policy.ActionUpdateFields)
}
