package domain

import (
	"github.com/fundwit/go-commons/types"
)

const DateLayout = "2006-01-02"

// TimeEntry is a time-tracking record. Capture happens elsewhere; the directory core reads and deletes.
type TimeEntry struct {
	ID       types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT NOT NULL"`
	OrgID    types.ID `json:"orgId" gorm:"index:idx_time_entry_org_date" sql:"type:BIGINT NOT NULL"`
	MemberID string   `json:"memberId" gorm:"type:varchar(64);index:idx_time_entry_member"`

	EntryDate  string  `json:"entryDate" gorm:"type:varchar(10);index:idx_time_entry_org_date"`
	TimeIn     *string `json:"timeIn" gorm:"type:varchar(8)"`
	TimeOut    *string `json:"timeOut" gorm:"type:varchar(8)"`
	LunchHours float64 `json:"lunchHours"`
}
