// Package access decides which member rows a viewer may see and which of their fields it may edit.
//
// Every switch over domain.Role in this package lists all roles explicitly; a new role must be
// added to each table before it gets anything beyond the least-privileged default.
package access

import (
	"roster/bizerror"
	"roster/domain"
	"roster/domain/dirty"
	"strings"
)

type Field uint8

const (
	FieldFullName Field = 1 << iota
	FieldRole
	FieldManagerID
	FieldHourlyRate
	FieldIsActive
)

// AllFields in display order.
var AllFields = []Field{FieldFullName, FieldRole, FieldManagerID, FieldHourlyRate, FieldIsActive}

var fieldNames = map[Field]string{
	FieldFullName:   dirty.FieldFullName,
	FieldRole:       dirty.FieldRole,
	FieldManagerID:  dirty.FieldManagerID,
	FieldHourlyRate: dirty.FieldHourlyRate,
	FieldIsActive:   dirty.FieldIsActive,
}

func (f Field) String() string {
	return fieldNames[f]
}

func ParseField(name string) (Field, bool) {
	for f, n := range fieldNames {
		if n == name {
			return f, true
		}
	}
	return 0, false
}

// FieldSet is a set of Field bits.
type FieldSet uint8

func SetOf(fields ...Field) FieldSet {
	var s FieldSet
	for _, f := range fields {
		s |= FieldSet(f)
	}
	return s
}

func (s FieldSet) Has(f Field) bool {
	return s&FieldSet(f) != 0
}

func (s FieldSet) Names() []string {
	names := []string{}
	for _, f := range AllFields {
		if s.Has(f) {
			names = append(names, f.String())
		}
	}
	return names
}

func (s FieldSet) String() string {
	return strings.Join(s.Names(), ",")
}

type Scope string

const (
	ScopeVisible Scope = "visible"
	ScopeAll     Scope = "all"
)

// CanSee reports whether the viewer may see row.
func CanSee(viewerID string, viewerRole domain.Role, row *domain.Member) bool {
	switch viewerRole {
	case domain.RoleAdmin:
		return true
	case domain.RoleManager:
		return row.ID == viewerID || row.IsReportOf(viewerID)
	case domain.RoleContractor:
		return row.ID == viewerID
	default:
		return row.ID == viewerID
	}
}

// Visible filters the org member list down to the rows the viewer may see, keeping order.
func Visible(viewerID string, viewerRole domain.Role, members []domain.Member) []domain.Member {
	visible := make([]domain.Member, 0, len(members))
	for i := range members {
		if CanSee(viewerID, viewerRole, &members[i]) {
			visible = append(visible, members[i])
		}
	}
	return visible
}

// VisibleInScope honors ScopeAll for admins only. It never widens access: for everyone else
// the scope is ignored.
func VisibleInScope(viewerID string, viewerRole domain.Role, members []domain.Member, scope Scope) []domain.Member {
	if scope == ScopeAll && viewerRole == domain.RoleAdmin {
		all := make([]domain.Member, len(members))
		copy(all, members)
		return all
	}
	return Visible(viewerID, viewerRole, members)
}

// EditableFields returns the fields of row the viewer may edit. Rows the viewer can not see
// expose nothing.
func EditableFields(viewerID string, viewerRole domain.Role, row *domain.Member) FieldSet {
	if !CanSee(viewerID, viewerRole, row) {
		return 0
	}
	self := row.ID == viewerID

	switch viewerRole {
	case domain.RoleAdmin:
		// role stays editable on the admin's own row, CheckUpdate rejects demotion
		return SetOf(AllFields...)
	case domain.RoleManager:
		var set FieldSet
		if self {
			set |= SetOf(FieldFullName)
		}
		if row.IsReportOf(viewerID) {
			set |= SetOf(FieldFullName, FieldHourlyRate)
		}
		return set
	case domain.RoleContractor:
		if self {
			return SetOf(FieldFullName)
		}
		return 0
	default:
		if self {
			return SetOf(FieldFullName)
		}
		return 0
	}
}

// CheckUpdate applies u to row and verifies that every field whose value actually changes is
// editable by the viewer. Fields requested with their current value are not edits.
// The manager reference cleared by a role change is not checked on its own.
func CheckUpdate(viewerID string, viewerRole domain.Role, row domain.Member, u *domain.MemberUpdating) (domain.Member, error) {
	if u.Role != nil && !u.Role.Valid() {
		return row, bizerror.ErrInvalidRole
	}
	next := u.Apply(row)

	allowed := EditableFields(viewerID, viewerRole, &row)
	changed := dirty.Diff(row, next)
	roleChanged := false
	for _, name := range changed {
		if name == dirty.FieldRole {
			roleChanged = true
		}
	}
	for _, name := range changed {
		f, _ := ParseField(name)
		if f == FieldManagerID && roleChanged && next.ManagerID == nil && allowed.Has(FieldRole) {
			continue
		}
		if !allowed.Has(f) {
			return row, &bizerror.ErrFieldForbidden{Field: name}
		}
	}

	if roleChanged && row.ID == viewerID && row.Role == domain.RoleAdmin {
		return row, bizerror.ErrSelfRoleLockout
	}
	return next, nil
}
