package policy

import (
	"testing"

	"github.com/taskforge/backend/domain"
)

func principal(id string, role domain.Role, team string) domain.Principal {
	return domain.Principal{ID: id, Role: role, TeamID: team, Active: true}
}

func TestAuthorize(t *testing.T) {
	owned := domain.Task{ID: "t1", OwnerID: "alice"}
	assignedTask := domain.Task{ID: "t2", OwnerID: "bob", AssigneeIDs: []string{"alice"}}
	foreign := domain.Task{ID: "t3", OwnerID: "bob"}

	cases := []struct {
		name   string
		in     Input
		action Action
		allow  bool
	}{
		{
			name:   "admin deletes any task",
			in:     Input{Principal: principal("root", domain.RoleAdmin, ""), Task: foreign},
			action: ActionDelete,
			allow:  true,
		},
		{
			name:   "admin views trash",
			in:     Input{Principal: principal("root", domain.RoleAdmin, ""), Task: foreign},
			action: ActionViewTrash,
			allow:  true,
		},
		{
			name:   "manager edits team member task",
			in:     Input{Principal: principal("mia", domain.RoleManager, "ops"), Task: foreign, OwnerTeamID: "ops"},
			action: ActionUpdateFields,
			allow:  true,
		},
		{
			name:   "manager assigns on team task",
			in:     Input{Principal: principal("mia", domain.RoleManager, "ops"), Task: foreign, OwnerTeamID: "ops"},
			action: ActionAssign,
			allow:  true,
		},
		{
			name:   "manager views trash of team task",
			in:     Input{Principal: principal("mia", domain.RoleManager, "ops"), Task: foreign, OwnerTeamID: "ops"},
			action: ActionViewTrash,
			allow:  true,
		},
		{
			name:   "manager cannot delete team member task",
			in:     Input{Principal: principal("mia", domain.RoleManager, "ops"), Task: foreign, OwnerTeamID: "ops"},
			action: ActionDelete,
			allow:  false,
		},
		{
			name:   "manager cannot restore team member task",
			in:     Input{Principal: principal("mia", domain.RoleManager, "ops"), Task: foreign, OwnerTeamID: "ops"},
			action: ActionRestore,
			allow:  false,
		},
		{
			name:   "manager deletes own task",
			in:     Input{Principal: principal("mia", domain.RoleManager, "ops"), Task: domain.Task{ID: "t4", OwnerID: "mia"}},
			action: ActionDelete,
			allow:  true,
		},
		{
			name:   "manager reads task assigned to team member",
			in:     Input{Principal: principal("mia", domain.RoleManager, "ops"), Task: foreign, OwnerTeamID: "sales", AssigneeTeamIDs: []string{"ops"}},
			action: ActionRead,
			allow:  true,
		},
		{
			name:   "manager denied outside team",
			in:     Input{Principal: principal("mia", domain.RoleManager, "ops"), Task: foreign, OwnerTeamID: "sales"},
			action: ActionRead,
			allow:  false,
		},
		{
			name:   "manager without team edits own task",
			in:     Input{Principal: principal("mia", domain.RoleManager, ""), Task: domain.Task{ID: "t5", OwnerID: "mia"}},
			action: ActionUpdateFields,
			allow:  true,
		},
		{
			name:   "owner moves status",
			in:     Input{Principal: principal("alice", domain.RoleUser, ""), Task: owned},
			action: ActionUpdateStatus,
			allow:  true,
		},
		{
			name:   "assignee moves status",
			in:     Input{Principal: principal("alice", domain.RoleUser, ""), Task: assignedTask},
			action: ActionUpdateStatus,
			allow:  true,
		},
		{
			name:   "assignee comments",
			in:     Input{Principal: principal("alice", domain.RoleUser, ""), Task: assignedTask},
			action: ActionComment,
			allow:  true,
		},
		{
			name:   "assignee cannot edit fields",
			in:     Input{Principal: principal("alice", domain.RoleUser, ""), Task: assignedTask},
			action: ActionUpdateFields,
			allow:  false,
		},
		{
			name:   "owner edits fields",
			in:     Input{Principal: principal("alice", domain.RoleUser, ""), Task: owned},
			action: ActionUpdateFields,
			allow:  true,
		},
		{
			name:   "owner cannot delete",
			in:     Input{Principal: principal("alice", domain.RoleUser, ""), Task: owned},
			action: ActionDelete,
			allow:  false,
		},
		{
			name:   "owner cannot view trash",
			in:     Input{Principal: principal("alice", domain.RoleUser, ""), Task: owned},
			action: ActionViewTrash,
			allow:  false,
		},
		{
			name:   "outsider cannot read",
			in:     Input{Principal: principal("eve", domain.RoleUser, ""), Task: owned},
			action: ActionRead,
			allow:  false,
		},
		{
			name:   "inactive admin denied",
			in:     Input{Principal: domain.Principal{ID: "root", Role: domain.RoleAdmin}, Task: owned},
			action: ActionRead,
			allow:  false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.in, tc.action)
			if tc.allow && err != nil {
				t.Fatalf("expected allow, got %v", err)
			}
			if !tc.allow {
				if err == nil {
					t.Fatal("expected deny, got allow")
				}
				if !domain.IsDomainError(err, domain.ErrCodeForbidden) {
					t.Fatalf("expected FORBIDDEN, got %v", err)
				}
			}
		})
	}
}

func TestAuthorizeUnknownAction(t *testing.T) {
	err := Authorize(Input{Principal: principal("root", domain.RoleAdmin, "")}, Action("explode"))
	if !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("expected INVALID, got %v", err)
	}
}

func TestAuthorizeDeterministic(t *testing.T) {
	in := Input{Principal: principal("alice", domain.RoleUser, ""), Task: domain.Task{ID: "t1", OwnerID: "alice"}}
	first := Authorize(in, ActionRead)
	second := Authorize(in, ActionRead)
	if (first == nil) != (second == nil) {
		t.Fatalf("authorize not deterministic: %v vs %v", first, second)
	}
	firstDeny := Authorize(in, ActionDelete)
	secondDeny := Authorize(in, ActionDelete)
	if firstDeny == nil || secondDeny == nil {
		t.Fatal("expected deny both times")
	}
	if firstDeny.Error() != secondDeny.Error() {
		t.Fatalf("deny messages differ: %q vs %q", firstDeny.Error(), secondDeny.Error())
	}
}
