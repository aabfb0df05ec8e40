package people

import (
	"roster/bizerror"
	"roster/domain"
	"roster/domain/invitation"
	"roster/session"
	"sort"
	"strings"
	"time"
)

// AdminUser is a member of the organization merged with the facts of its account.
type AdminUser struct {
	domain.Member

	Email        string            `json:"email"`
	Status       invitation.Status `json:"status"`
	LastSignInAt *time.Time        `json:"lastSignInAt"`
}

// QueryAdminUsers lists every member of the organization with email and last sign in.
// Members whose account is gone are listed without them.
func (m *PeopleManager) QueryAdminUsers(s *session.Session) ([]AdminUser, error) {
	if !s.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}
	members, err := m.store.ListMembers(s.Ctx(), s.OrgID)
	if err != nil {
		return nil, err
	}
	views, err := m.invitations.List(s)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*invitation.View, len(views))
	for i := range views {
		byID[views[i].ID] = &views[i]
	}

	users := make([]AdminUser, 0, len(members))
	for _, member := range members {
		user := AdminUser{Member: member}
		if v, found := byID[member.ID]; found {
			user.Email = v.Email
			user.Status = v.Status
			user.LastSignInAt = v.LastSignInAt
		}
		users = append(users, user)
	}
	sortAdminUsers(users)
	return users, nil
}

// sortAdminUsers puts active users first, then orders by name or email ignoring case.
func sortAdminUsers(users []AdminUser) {
	key := func(u *AdminUser) string {
		if u.FullName != "" {
			return strings.ToLower(u.FullName)
		}
		return strings.ToLower(u.Email)
	}
	sort.SliceStable(users, func(i, j int) bool {
		a, b := &users[i], &users[j]
		if a.IsActive != b.IsActive {
			return a.IsActive
		}
		if ka, kb := key(a), key(b); ka != kb {
			return ka < kb
		}
		return a.ID < b.ID
	})
}
