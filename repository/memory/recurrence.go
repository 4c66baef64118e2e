package memory

import (
	"context"
	"sort"
	"time"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
)

type ruleStore struct{ s *Store }

var _ repository.RecurrenceRepository = ruleStore{}

func cloneRule(r *domain.RecurrenceRule) *domain.RecurrenceRule {
	cp := *r
	if r.EndAt != nil {
		end := *r.EndAt
		cp.EndAt = &end
	}
	if r.LastFiredAt != nil {
		fired := *r.LastFiredAt
		cp.LastFiredAt = &fired
	}
	return &cp
}

func (v ruleStore) GetByID(ctx context.Context, id string) (*domain.RecurrenceRule, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	r, ok := v.s.rules[id]
	if !ok {
		return nil, domain.ErrRuleNotFound
	}
	return cloneRule(r), nil
}

func (v ruleStore) ListDue(ctx context.Context, at time.Time, limit int) ([]domain.RecurrenceRule, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var out []domain.RecurrenceRule
	for _, r := range v.s.rules {
		if !r.Active || r.NextFireAt.After(at) {
			continue
		}
		out = append(out, *cloneRule(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NextFireAt.Equal(out[j].NextFireAt) {
			return v.s.seq[out[i].ID] < v.s.seq[out[j].ID]
		}
		return out[i].NextFireAt.Before(out[j].NextFireAt)
	})
	return paginate(out, limit, 0), nil
}

func (v ruleStore) Create(ctx context.Context, rule *domain.RecurrenceRule) (*domain.RecurrenceRule, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.rules[rule.ID]; ok {
		return nil, domain.NewError(domain.ErrCodeConflict, "recurrence rule already exists")
	}
	v.s.rules[rule.ID] = cloneRule(rule)
	v.s.track(rule.ID)
	return cloneRule(rule), nil
}

func (v ruleStore) Update(ctx context.Context, rule *domain.RecurrenceRule) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.rules[rule.ID]; !ok {
		return domain.ErrRuleNotFound
	}
	v.s.rules[rule.ID] = cloneRule(rule)
	return nil
}
