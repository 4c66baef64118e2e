package domain

import "time"

// Role is the coarse permission tier attached to a principal.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	}
	return false
}

// Principal represents an already-authenticated identity. The engine never
// sees credentials; callers hand it principals resolved upstream.
type Principal struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	TeamID    string    `json:"team_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

func (p *Principal) IsManager() bool {
	return p != nil && p.Role == RoleManager
}

func (p *Principal) SameTeam(teamID string) bool {
	return p != nil && p.TeamID != "" && p.TeamID == teamID
}
