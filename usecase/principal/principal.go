// Package principal manages the directory the policy engine evaluates
// against: registering principals, moving them between teams, changing
// roles and switching accounts off. Role and activation changes are admin
// operations; team membership is also open to managers for their own team.
package principal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
)

type UseCase struct {
	principals repository.PrincipalRepository
	logger     *zap.Logger

	// Now is the clock used for every timestamp; tests pin it.
	Now func() time.Time
}

func New(principals repository.PrincipalRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		principals: principals,
		logger:     logger,
		Now:        time.Now,
	}
}

// RegisterInput describes a new principal. A blank ID gets a generated one;
// a blank role defaults to user.
type RegisterInput struct {
	ID     string
	Role   domain.Role
	TeamID string
}

// Register creates an active principal. Admin only.
func (uc *UseCase) Register(ctx context.Context, actor domain.Principal, input RegisterInput) (*domain.Principal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	role := input.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !domain.ValidRole(role) {
		return nil, domain.Errorf(domain.ErrCodeInvalid, "unknown role %q", role)
	}
	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := uc.Now()
	p := &domain.Principal{
		ID:        id,
		Role:      role,
		TeamID:    input.TeamID,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := uc.principals.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("principal registered",
		zap.String("principal_id", created.ID),
		zap.String("role", string(created.Role)))
	return created, nil
}

// Get returns a principal the actor may inspect: themselves, anyone for
// admins, same-team members for managers.
func (uc *UseCase) Get(ctx context.Context, actor domain.Principal, principalID string) (*domain.Principal, error) {
	if !actor.Active {
		return nil, domain.Errorf(domain.ErrCodeForbidden, "principal %s is deactivated", actor.ID)
	}
	p, err := uc.principals.GetByID(ctx, principalID)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.ID == p.ID:
	case actor.IsAdmin():
	case actor.IsManager() && actor.SameTeam(p.TeamID):
	default:
		return nil, domain.Errorf(domain.ErrCodeForbidden, "principal %s may not view principal %s", actor.ID, principalID)
	}
	return p, nil
}

// ChangeRole moves a principal to a new role. Admin only.
func (uc *UseCase) ChangeRole(ctx context.Context, actor domain.Principal, principalID string, role domain.Role) (*domain.Principal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !domain.ValidRole(role) {
		return nil, domain.Errorf(domain.ErrCodeInvalid, "unknown role %q", role)
	}
	p, err := uc.principals.GetByID(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if p.Role == role {
		return p, nil
	}
	from := p.Role
	p.Role = role
	p.UpdatedAt = uc.Now()
	if err := uc.principals.Update(ctx, p); err != nil {
		return nil, err
	}
	uc.logger.Info("principal role changed",
		zap.String("principal_id", p.ID),
		zap.String("from", string(from)),
		zap.String("to", string(role)),
		zap.String("actor_id", actor.ID))
	return p, nil
}

// AssignTeam moves a principal onto a team, or off every team when teamID
// is blank. Admins place anyone anywhere; managers only manage membership
// of their own team.
func (uc *UseCase) AssignTeam(ctx context.Context, actor domain.Principal, principalID, teamID string) (*domain.Principal, error) {
	if !actor.Active || (!actor.IsAdmin() && !actor.IsManager()) {
		return nil, domain.Errorf(domain.ErrCodeForbidden, "principal %s may not manage team membership", actor.ID)
	}
	p, err := uc.principals.GetByID(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if actor.IsManager() {
		if actor.TeamID == "" {
			return nil, domain.Errorf(domain.ErrCodeForbidden, "manager %s has no team to assign to", actor.ID)
		}
		joining := teamID == actor.TeamID
		leavingOwnTeam := teamID == "" && p.TeamID == actor.TeamID
		if !joining && !leavingOwnTeam {
			return nil, domain.Errorf(domain.ErrCodeForbidden, "manager %s may only manage team %s", actor.ID, actor.TeamID)
		}
	}
	if p.TeamID == teamID {
		return p, nil
	}
	p.TeamID = teamID
	p.UpdatedAt = uc.Now()
	if err := uc.principals.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Deactivate switches a principal off; every authorization check fails for
// them afterwards. An admin cannot deactivate their own account.
func (uc *UseCase) Deactivate(ctx context.Context, actor domain.Principal, principalID string) (*domain.Principal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if actor.ID == principalID {
		return nil, domain.NewError(domain.ErrCodeConflict, "cannot deactivate own account")
	}
	return uc.setActive(ctx, principalID, false)
}

// Reactivate switches a deactivated principal back on. Admin only.
func (uc *UseCase) Reactivate(ctx context.Context, actor domain.Principal, principalID string) (*domain.Principal, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return uc.setActive(ctx, principalID, true)
}

func (uc *UseCase) setActive(ctx context.Context, principalID string, active bool) (*domain.Principal, error) {
	p, err := uc.principals.GetByID(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if p.Active == active {
		return p, nil
	}
	p.Active = active
	p.UpdatedAt = uc.Now()
	if err := uc.principals.Update(ctx, p); err != nil {
		return nil, err
	}
	uc.logger.Info("principal activation changed",
		zap.String("principal_id", p.ID),
		zap.Bool("active", active))
	return p, nil
}

func requireAdmin(actor domain.Principal) error {
	if !actor.Active || !actor.IsAdmin() {
		return domain.Errorf(domain.ErrCodeForbidden, "principal %s may not manage the directory", actor.ID)
	}
	return nil
}
