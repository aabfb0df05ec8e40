package domain

import (
	"time"

	"github.com/fundwit/go-commons/types"
)

type WeekStart string

const (
	WeekStartSunday WeekStart = "sunday"
	WeekStartMonday WeekStart = "monday"
)

func (w WeekStart) Valid() bool {
	return w == WeekStartSunday || w == WeekStartMonday
}

type Project struct {
	ID    types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT NOT NULL"`
	OrgID types.ID `json:"orgId" gorm:"index:idx_project_org" sql:"type:BIGINT NOT NULL"`

	Name      string    `json:"name" gorm:"type:varchar(128)"`
	IsActive  bool      `json:"isActive"`
	WeekStart WeekStart `json:"weekStart" gorm:"type:varchar(8)"`

	CreateTime time.Time `json:"createTime"`
}

type ProjectCreating struct {
	Name      string    `json:"name" binding:"required,lte=128"`
	WeekStart WeekStart `json:"weekStart"`
}

type ProjectUpdating struct {
	Name      *string    `json:"name" binding:"omitempty,gte=1,lte=128"`
	IsActive  *bool      `json:"isActive"`
	WeekStart *WeekStart `json:"weekStart"`
}
