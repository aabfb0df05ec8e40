package directory

import (
	"context"
	"errors"
	"fmt"
	"roster/bizerror"
	"roster/domain"
	"roster/indices/indexlog"
	"roster/persistence"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	otgorm "github.com/smacker/opentracing-gorm"
)

const source = "directory"

var (
	memberKey               = []string{"id"}
	memberUpsertColumns     = []string{"org_id", "role", "full_name", "hourly_rate", "is_active", "manager_id"}
	membershipKey           = []string{"project_id", "member_id"}
	membershipUpsertColumns = []string{"org_id", "is_active", "update_time"}
)

type GormStore struct {
	ds *persistence.DataSourceManager
}

func NewGormStore(ds *persistence.DataSourceManager) *GormStore {
	return &GormStore{ds: ds}
}

func (s *GormStore) AutoMigrate() error {
	return s.ds.GormDB().AutoMigrate(&domain.Member{}, &domain.Project{}, &domain.ProjectMember{}, &domain.TimeEntry{},
		&indexlog.IndexLogRecord{}).Error
}

func (s *GormStore) db(ctx context.Context) *gorm.DB {
	return otgorm.SetSpanToGorm(ctx, s.ds.GormDB())
}

func (s *GormStore) ListMembers(ctx context.Context, orgID types.ID) ([]domain.Member, error) {
	var members []domain.Member
	if err := s.db(ctx).Where("org_id = ?", orgID).Order("create_time ASC, id ASC").Find(&members).Error; err != nil {
		return nil, wrap(err)
	}
	return members, nil
}

func (s *GormStore) ListOrgIDs(ctx context.Context) ([]types.ID, error) {
	var ids []types.ID
	if err := s.db(ctx).Model(&domain.Member{}).Order("org_id ASC").Pluck("DISTINCT org_id", &ids).Error; err != nil {
		return nil, wrap(err)
	}
	return ids, nil
}

func (s *GormStore) GetMember(ctx context.Context, orgID types.ID, id string) (*domain.Member, error) {
	m := domain.Member{}
	if err := s.db(ctx).Where("org_id = ? AND id = ?", orgID, id).First(&m).Error; err != nil {
		return nil, wrap(err)
	}
	return &m, nil
}

func (s *GormStore) FindMember(ctx context.Context, id string) (*domain.Member, error) {
	m := domain.Member{}
	if err := s.db(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, wrap(err)
	}
	return &m, nil
}

func (s *GormStore) UpsertMember(ctx context.Context, m *domain.Member) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.CreateTime.IsZero() {
		m.CreateTime = time.Now()
	}
	db := s.db(ctx)
	option := upsertOption(db.Dialect().GetName(), memberKey, memberUpsertColumns)
	return wrap(db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Set("gorm:insert_option", option).Create(m).Error; err != nil {
			return err
		}
		return indexlog.Append(tx, indexlog.MemberLog(m.OrgID, m.ID, false))
	}))
}

func (s *GormStore) UpdateMember(ctx context.Context, m *domain.Member) error {
	return s.UpdateMembers(ctx, []domain.Member{*m})
}

// UpdateMembers writes members and their index logs in one transaction.
func (s *GormStore) UpdateMembers(ctx context.Context, members []domain.Member) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap(s.db(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range members {
			if err := updateMember(tx, &members[i]); err != nil {
				return err
			}
			if err := indexlog.Append(tx, indexlog.MemberLog(members[i].OrgID, members[i].ID, false)); err != nil {
				return err
			}
		}
		return nil
	}))
}

func updateMember(db *gorm.DB, m *domain.Member) error {
	return db.Model(&domain.Member{}).Where("org_id = ? AND id = ?", m.OrgID, m.ID).
		Updates(map[string]interface{}{
			"full_name":   m.FullName,
			"role":        m.Role,
			"hourly_rate": m.HourlyRate,
			"is_active":   m.IsActive,
			"manager_id":  m.ManagerID,
		}).Error
}

func (s *GormStore) DeleteMember(ctx context.Context, orgID types.ID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap(s.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("org_id = ? AND id = ?", orgID, id).Delete(&domain.Member{}).Error; err != nil {
			return err
		}
		return indexlog.Append(tx, indexlog.MemberLog(orgID, id, true))
	}))
}

func (s *GormStore) ListProjects(ctx context.Context, orgID types.ID) ([]domain.Project, error) {
	var projects []domain.Project
	if err := s.db(ctx).Where("org_id = ?", orgID).Order("name ASC, id ASC").Find(&projects).Error; err != nil {
		return nil, wrap(err)
	}
	return projects, nil
}

func (s *GormStore) GetProject(ctx context.Context, orgID types.ID, id types.ID) (*domain.Project, error) {
	p := domain.Project{}
	if err := s.db(ctx).Where("org_id = ? AND id = ?", orgID, id).First(&p).Error; err != nil {
		return nil, wrap(err)
	}
	return &p, nil
}

func (s *GormStore) CreateProject(ctx context.Context, p *domain.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap(s.db(ctx).Create(p).Error)
}

func (s *GormStore) UpdateProject(ctx context.Context, p *domain.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap(s.db(ctx).Model(&domain.Project{}).Where("org_id = ? AND id = ?", p.OrgID, p.ID).
		Updates(map[string]interface{}{"name": p.Name, "is_active": p.IsActive, "week_start": p.WeekStart}).Error)
}

func (s *GormStore) ListMemberships(ctx context.Context, orgID types.ID, filter MembershipFilter) ([]domain.ProjectMember, error) {
	q := s.db(ctx).Where("org_id = ?", orgID)
	if filter.ProjectID != nil {
		q = q.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.MemberID != nil {
		q = q.Where("member_id = ?", *filter.MemberID)
	}
	if filter.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	var rows []domain.ProjectMember
	if err := q.Order("project_id ASC, member_id ASC").Find(&rows).Error; err != nil {
		return nil, wrap(err)
	}
	return rows, nil
}

func (s *GormStore) GetMembership(ctx context.Context, orgID types.ID, projectID types.ID, memberID string) (*domain.ProjectMember, error) {
	row := domain.ProjectMember{}
	if err := s.db(ctx).Where("org_id = ? AND project_id = ? AND member_id = ?", orgID, projectID, memberID).
		First(&row).Error; err != nil {
		return nil, wrap(err)
	}
	return &row, nil
}

func (s *GormStore) UpsertMemberships(ctx context.Context, rows ...domain.ProjectMember) error {
	if len(rows) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	db := s.db(ctx)
	option := upsertOption(db.Dialect().GetName(), membershipKey, membershipUpsertColumns)
	return wrap(db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for i := range rows {
			row := rows[i]
			if row.CreateTime.IsZero() {
				row.CreateTime = now
			}
			row.UpdateTime = now
			if err := tx.Set("gorm:insert_option", option).Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	}))
}

func (s *GormStore) DeleteMemberships(ctx context.Context, orgID types.ID, memberID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	db := s.db(ctx).Where("org_id = ? AND member_id = ?", orgID, memberID).Delete(&domain.ProjectMember{})
	return db.RowsAffected, wrap(db.Error)
}

func (s *GormStore) ListTimeEntries(ctx context.Context, orgID types.ID, from, to string) ([]domain.TimeEntry, error) {
	var entries []domain.TimeEntry
	if err := s.db(ctx).Where("org_id = ? AND entry_date >= ? AND entry_date < ?", orgID, from, to).
		Order("entry_date ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, wrap(err)
	}
	return entries, nil
}

func (s *GormStore) DeleteTimeEntries(ctx context.Context, orgID types.ID, memberID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	db := s.db(ctx).Where("org_id = ? AND member_id = ?", orgID, memberID).Delete(&domain.TimeEntry{})
	return db.RowsAffected, wrap(db.Error)
}

func (s *GormStore) LoadPendingIndexLogs(ctx context.Context, orgID types.ID, limit int) ([]indexlog.IndexLogRecord, error) {
	records, err := indexlog.LoadPending(s.db(ctx), orgID, limit)
	if err != nil {
		return nil, wrap(err)
	}
	return records, nil
}

func (s *GormStore) FinishIndexLogs(ctx context.Context, ids []types.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap(indexlog.Finish(s.db(ctx), ids))
}

// upsertOption is the insert suffix turning a plain insert into an atomic insert-or-update on key.
func upsertOption(dialect string, key, columns []string) string {
	sets := make([]string, 0, len(columns))
	switch dialect {
	case persistence.DriverMysql:
		for _, c := range columns {
			sets = append(sets, fmt.Sprintf("%s=VALUES(%s)", c, c))
		}
		return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	default:
		for _, c := range columns {
			sets = append(sets, fmt.Sprintf("%s=excluded.%s", c, c))
		}
		return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(key, ", "), strings.Join(sets, ", "))
	}
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return bizerror.ErrNotFound
	}
	return bizerror.Upstream(source, err)
}
