package memory

import (
	"context"
	"sort"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
)

type commentStore struct{ s *Store }

var _ repository.CommentRepository = commentStore{}

func cloneComment(c *domain.Comment) *domain.Comment {
	cp := *c
	if c.DeletedAt != nil {
		del := *c.DeletedAt
		cp.DeletedAt = &del
	}
	if c.MentionedUserIDs != nil {
		cp.MentionedUserIDs = append([]string(nil), c.MentionedUserIDs...)
	}
	return &cp
}

func (v commentStore) GetByID(ctx context.Context, id string) (*domain.Comment, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	c, ok := v.s.comments[id]
	if !ok {
		return nil, domain.ErrCommentNotFound
	}
	return cloneComment(c), nil
}

func (v commentStore) ListByTask(ctx context.Context, taskID string, limit, offset int) ([]domain.Comment, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var out []domain.Comment
	for _, c := range v.s.comments {
		if c.TaskID != taskID || c.IsDeleted() {
			continue
		}
		out = append(out, *cloneComment(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return v.s.seq[out[i].ID] < v.s.seq[out[j].ID]
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return paginate(out, limit, offset), nil
}

func (v commentStore) Create(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.comments[comment.ID]; ok {
		return nil, domain.NewError(domain.ErrCodeConflict, "comment already exists")
	}
	v.s.comments[comment.ID] = cloneComment(comment)
	v.s.track(comment.ID)
	return cloneComment(comment), nil
}

func (v commentStore) Update(ctx context.Context, comment *domain.Comment) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.comments[comment.ID]; !ok {
		return domain.ErrCommentNotFound
	}
	v.s.comments[comment.ID] = cloneComment(comment)
	return nil
}
