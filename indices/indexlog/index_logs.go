package indexlog

import (
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

const SourceMember = "MEMBER"

type IndexLog struct {
	SourceType string   `json:"sourceType" gorm:"index:idx_index_log_source;type:varchar(16)"`
	SourceID   string   `json:"sourceId" gorm:"index:idx_index_log_source;type:varchar(64)"`
	OrgID      types.ID `json:"orgId" gorm:"index:idx_index_log_org" sql:"type:BIGINT NOT NULL"`

	Deletion bool `json:"deletion"`
}

// IndexLogRecord is a change not yet applied to the search index while IndexedTime is nil.
// Obsolete records were superseded by a later change of the same source.
type IndexLogRecord struct {
	ID types.ID `json:"id" gorm:"primary_key;AUTO_INCREMENT"`

	IndexLog

	Obsolete    bool       `json:"obsolete"`
	Timestamp   time.Time  `json:"timestamp"`
	IndexedTime *time.Time `json:"indexedTime"`
}

func (r *IndexLogRecord) TableName() string {
	return "index_logs"
}

func MemberLog(orgID types.ID, memberID string, deletion bool) IndexLog {
	return IndexLog{SourceType: SourceMember, SourceID: memberID, OrgID: orgID, Deletion: deletion}
}

// Append records logs in tx, obsoleting the pending records of the same sources.
func Append(tx *gorm.DB, logs ...IndexLog) error {
	now := time.Now()
	for _, log := range logs {
		if err := tx.Model(&IndexLogRecord{}).
			Where("source_type = ? AND source_id = ? AND indexed_time IS NULL AND obsolete = ?",
				log.SourceType, log.SourceID, false).
			Update("obsolete", true).Error; err != nil {
			return err
		}
		if err := tx.Create(&IndexLogRecord{IndexLog: log, Timestamp: now}).Error; err != nil {
			return err
		}
	}
	return nil
}

// LoadPending returns at most limit pending records of the organization, oldest first.
func LoadPending(db *gorm.DB, orgID types.ID, limit int) ([]IndexLogRecord, error) {
	records := []IndexLogRecord{}
	if err := db.Where("org_id = ? AND indexed_time IS NULL AND obsolete = ?", orgID, false).
		Order("id ASC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func Finish(db *gorm.DB, ids []types.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return db.Model(&IndexLogRecord{}).Where("id IN (?)", ids).
		Update("indexed_time", time.Now()).Error
}
