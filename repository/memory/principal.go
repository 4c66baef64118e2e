package memory

import (
	"context"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
)

type principalStore struct{ s *Store }

var _ repository.PrincipalRepository = principalStore{}

func (v principalStore) GetByID(ctx context.Context, id string) (*domain.Principal, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	p, ok := v.s.principals[id]
	if !ok {
		return nil, domain.ErrPrincipalNotFound
	}
	cp := *p
	return &cp, nil
}

func (v principalStore) ListByIDs(ctx context.Context, ids []string) ([]domain.Principal, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	out := make([]domain.Principal, 0, len(ids))
	for _, id := range ids {
		if p, ok := v.s.principals[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (v principalStore) Create(ctx context.Context, principal *domain.Principal) (*domain.Principal, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.principals[principal.ID]; ok {
		return nil, domain.NewError(domain.ErrCodeConflict, "principal already exists")
	}
	cp := *principal
	v.s.principals[principal.ID] = &cp
	v.s.track(principal.ID)
	out := cp
	return &out, nil
}

func (v principalStore) Update(ctx context.Context, principal *domain.Principal) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.principals[principal.ID]; !ok {
		return domain.ErrPrincipalNotFound
	}
	cp := *principal
	v.s.principals[principal.ID] = &cp
	return nil
}
