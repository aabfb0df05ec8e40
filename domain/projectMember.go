package domain

import (
	"time"

	"github.com/fundwit/go-commons/types"
)

// ProjectMember is the assignment of a member to a project. Removal is a soft flip of IsActive;
// the composite primary key keeps one row per (project, member).
type ProjectMember struct {
	ProjectID types.ID `json:"projectId" gorm:"primary_key;auto_increment:false" sql:"type:BIGINT NOT NULL"`
	MemberID  string   `json:"memberId" gorm:"primary_key;type:varchar(64)"`
	OrgID     types.ID `json:"orgId" gorm:"index:idx_project_member_org" sql:"type:BIGINT NOT NULL"`

	IsActive bool `json:"isActive"`

	CreateTime time.Time `json:"createTime"`
	UpdateTime time.Time `json:"updateTime"`
}

type ProjectMemberDetail struct {
	ProjectMember

	ProjectName string `json:"projectName"`
	MemberName  string `json:"memberName"`
	MemberRole  Role   `json:"memberRole"`
}

// MembershipToggle requests a project member to be (de)activated.
type MembershipToggle struct {
	ProjectID types.ID `json:"projectId" binding:"required"`
	MemberID  string   `json:"memberId" binding:"required"`
	Active    bool     `json:"active"`
}

// MembershipState is the outcome of a toggle.
type MembershipState struct {
	ProjectID types.ID `json:"projectId"`
	MemberID  string   `json:"memberId"`
	IsActive  bool     `json:"isActive"`
	Changed   bool     `json:"changed"`
}

type ProjectMemberQuery struct {
	ProjectID types.ID `form:"projectId" binding:"required"`
}
