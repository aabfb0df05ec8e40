package session

import (
	"context"
	"roster/domain"

	"github.com/fundwit/go-commons/types"
)

type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

// Session is the authenticated viewer of a request.
type Session struct {
	Token    string      `json:"-"`
	Identity Identity    `json:"identity"`
	OrgID    types.ID    `json:"orgId"`
	Role     domain.Role `json:"role"`

	Context context.Context `json:"-"`
}

func (s *Session) IsAdmin() bool {
	return s.Role == domain.RoleAdmin
}

func (s *Session) Clone() Session {
	return Session{Token: s.Token, Identity: s.Identity, OrgID: s.OrgID, Role: s.Role, Context: s.Context}
}

// Ctx never returns nil.
func (s *Session) Ctx() context.Context {
	if s.Context == nil {
		return context.Background()
	}
	return s.Context
}
