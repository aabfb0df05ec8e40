package domain

import (
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/shopspring/decimal"
)

// Member is one person of an organization, keyed by the identity provider account id.
type Member struct {
	ID    string   `json:"id" gorm:"primary_key;type:varchar(64)"`
	OrgID types.ID `json:"orgId" gorm:"index:idx_member_org" sql:"type:BIGINT NOT NULL"`

	Role       Role            `json:"role" gorm:"type:varchar(16)"`
	FullName   string          `json:"fullName" gorm:"type:varchar(128)"`
	HourlyRate decimal.Decimal `json:"hourlyRate" sql:"type:DECIMAL(12,2) NOT NULL"`
	IsActive   bool            `json:"isActive"`
	ManagerID  *string         `json:"managerId" gorm:"type:varchar(64)"`

	CreateTime time.Time `json:"createTime"`
}

// IsReportOf reports whether m is a direct report of managerID.
func (m *Member) IsReportOf(managerID string) bool {
	return m.ManagerID != nil && *m.ManagerID == managerID
}

// MemberUpdating carries the requested changes of one member row; nil means unchanged.
// ClearManager distinguishes "set manager to none" from "leave manager untouched".
type MemberUpdating struct {
	FullName     *string          `json:"fullName" binding:"omitempty,lte=128"`
	Role         *Role            `json:"role"`
	HourlyRate   *decimal.Decimal `json:"hourlyRate"`
	IsActive     *bool            `json:"isActive"`
	ManagerID    *string          `json:"managerId"`
	ClearManager bool             `json:"clearManager"`
}

// Empty reports whether no field is requested.
func (u *MemberUpdating) Empty() bool {
	return u.FullName == nil && u.Role == nil && u.HourlyRate == nil && u.IsActive == nil &&
		u.ManagerID == nil && !u.ClearManager
}

// Apply returns a copy of m with the requested values, enforcing that only contractors keep a manager.
func (u *MemberUpdating) Apply(m Member) Member {
	if u.FullName != nil {
		m.FullName = *u.FullName
	}
	if u.Role != nil {
		m.Role = *u.Role
	}
	if u.HourlyRate != nil {
		m.HourlyRate = *u.HourlyRate
	}
	if u.IsActive != nil {
		m.IsActive = *u.IsActive
	}
	if u.ClearManager {
		m.ManagerID = nil
	} else if u.ManagerID != nil {
		if *u.ManagerID == "" {
			m.ManagerID = nil
		} else {
			id := *u.ManagerID
			m.ManagerID = &id
		}
	}
	if m.Role != RoleContractor {
		m.ManagerID = nil
	}
	return m
}

// MemberQuery filters the visible people list.
type MemberQuery struct {
	Scope   string `form:"scope"`
	Role    string `form:"role"`
	Active  string `form:"active"`
	Keyword string `form:"q"`
}

// MemberRow is a visible member together with the fields the viewer may edit.
type MemberRow struct {
	Member
	Editable []string `json:"editable"`
}
