// Package comment implements task discussion threads: adding comments
// carrying pre-resolved mentions and soft-deleting them. Adding a comment
// publishes a commented event so notification fanout can reach watchers and
// mentioned principals.
package comment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
	"github.com/taskforge/backend/usecase"
	"github.com/taskforge/backend/usecase/policy"
)

const maxContentLength = 10_000

type UseCase struct {
	comments   repository.CommentRepository
	tasks      repository.TaskRepository
	principals repository.PrincipalRepository
	events     usecase.EventPublisher
	logger     *zap.Logger

	// Now is the clock used for every timestamp; tests pin it.
	Now func() time.Time
}

func New(
	comments repository.CommentRepository,
	tasks repository.TaskRepository,
	principals repository.PrincipalRepository,
	events usecase.EventPublisher,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = usecase.NopPublisher{}
	}
	return &UseCase{
		comments:   comments,
		tasks:      tasks,
		principals: principals,
		events:     events,
		logger:     logger,
		Now:        time.Now,
	}
}

// AddInput carries a new comment. MentionedIDs must name existing
// principals; deactivated ones are accepted and simply keep the
// notification unread.
type AddInput struct {
	TaskID       string
	Content      string
	MentionedIDs []string
}

// Add attaches a comment to a live task. The actor must hold comment
// permission on the task; trashed tasks reject commenting with a conflict.
func (uc *UseCase) Add(ctx context.Context, actor domain.Principal, input AddInput) (*domain.Comment, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "comment content is required")
	}
	if len(content) > maxContentLength {
		return nil, domain.Errorf(domain.ErrCodeInvalid, "comment content exceeds %d characters", maxContentLength)
	}
	task, err := uc.tasks.GetByID(ctx, input.TaskID)
	if err != nil {
		return nil, err
	}
	if err := uc.authorize(ctx, actor, task, policy.ActionComment); err != nil {
		return nil, err
	}
	if task.IsDeleted() {
		return nil, domain.ErrTaskDeleted
	}
	mentions, err := uc.resolveMentions(ctx, dedupIDs(input.MentionedIDs))
	if err != nil {
		return nil, err
	}

	now := uc.Now()
	comment := &domain.Comment{
		ID:               uuid.NewString(),
		TaskID:           task.ID,
		AuthorID:         actor.ID,
		Content:          content,
		MentionedUserIDs: mentions,
		CreatedAt:        now,
	}
	created, err := uc.comments.Create(ctx, comment)
	if err != nil {
		return nil, err
	}
	uc.publish(ctx, domain.Event{
		ID:           uuid.NewString(),
		Kind:         domain.EventTaskCommented,
		TaskID:       task.ID,
		ActorID:      actor.ID,
		Before:       task.Clone(),
		After:        task.Clone(),
		CommentID:    created.ID,
		MentionedIDs: mentions,
		OccurredAt:   now,
	})
	return created, nil
}

// Delete soft-deletes a comment. Only the author or an admin may remove
// one; deleted comments are gone for every reader.
func (uc *UseCase) Delete(ctx context.Context, actor domain.Principal, commentID string) error {
	comment, err := uc.comments.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.IsDeleted() {
		return domain.ErrCommentNotFound
	}
	if !actor.Active || (actor.ID != comment.AuthorID && !actor.IsAdmin()) {
		return domain.Errorf(domain.ErrCodeForbidden, "principal %s may not delete comment %s", actor.ID, commentID)
	}
	now := uc.Now()
	comment.DeletedAt = &now
	return uc.comments.Update(ctx, comment)
}

// ListForTask returns the live comments of a task the actor may read,
// oldest first. Trashed tasks require trash visibility.
func (uc *UseCase) ListForTask(ctx context.Context, actor domain.Principal, taskID string, limit, offset int) ([]domain.Comment, error) {
	task, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	action := policy.ActionRead
	if task.IsDeleted() {
		action = policy.ActionViewTrash
	}
	if err := uc.authorize(ctx, actor, task, action); err != nil {
		return nil, err
	}
	return uc.comments.ListByTask(ctx, taskID, limit, offset)
}

// authorize mirrors the task lifecycle rules: managers need the owner and
// assignee team facts resolved before the policy can decide.
func (uc *UseCase) authorize(ctx context.Context, actor domain.Principal, task *domain.Task, action policy.Action) error {
	in := policy.Input{Principal: actor, Task: *task}
	if actor.Role == domain.RoleManager && uc.principals != nil {
		owner, err := uc.principals.GetByID(ctx, task.OwnerID)
		switch {
		case err == nil:
			in.OwnerTeamID = owner.TeamID
		case !domain.IsDomainError(err, domain.ErrCodeNotFound):
			return err
		}
		if len(task.AssigneeIDs) > 0 {
			assignees, err := uc.principals.ListByIDs(ctx, task.AssigneeIDs)
			if err != nil {
				return err
			}
			for _, a := range assignees {
				in.AssigneeTeamIDs = append(in.AssigneeTeamIDs, a.TeamID)
			}
		}
	}
	return policy.Authorize(in, action)
}

// resolveMentions checks every mentioned ID names an existing principal.
func (uc *UseCase) resolveMentions(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := uc.principals.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]struct{}, len(found))
	for _, p := range found {
		byID[p.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, domain.Errorf(domain.ErrCodeNotFound, "mentioned principal %s not found", id)
		}
	}
	return ids, nil
}

func (uc *UseCase) publish(ctx context.Context, event domain.Event) {
	if err := uc.events.Publish(ctx, event); err != nil {
		uc.logger.Error("failed to publish lifecycle event",
			zap.String("kind", string(event.Kind)),
			zap.String("task_id", event.TaskID),
			zap.Error(err))
	}
}

func dedupIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
