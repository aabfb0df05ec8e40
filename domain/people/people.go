package people

import (
	"errors"
	"roster/bizerror"
	"roster/client/es"
	"roster/common"
	"roster/directory"
	"roster/domain"
	"roster/domain/access"
	"roster/domain/dirty"
	"roster/domain/invitation"
	"roster/indices"
	"roster/session"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type PeopleManagerTraits interface {
	QueryMembers(q *domain.MemberQuery, s *session.Session) ([]domain.MemberRow, error)
	UpdateMember(id string, u *domain.MemberUpdating, s *session.Session) (*SavedRow, error)
	SaveRows(rows []RowSaving, s *session.Session) (*SaveResult, error)
	QueryAdminUsers(s *session.Session) ([]AdminUser, error)
}

// SavedRow is a member row as written, with the baseline the caller keeps for later dirty checks.
type SavedRow struct {
	domain.MemberRow
	Baseline dirty.Signature `json:"baseline"`
}

type SaveResult struct {
	Saved   []SavedRow `json:"saved"`
	Skipped []string   `json:"skipped"`
}

// RowSaving carries every mutable field of one edited row. A nil ManagerID clears the manager.
type RowSaving struct {
	ID         string           `json:"id" binding:"required"`
	FullName   string           `json:"fullName" binding:"lte=128"`
	Role       domain.Role      `json:"role" binding:"required"`
	HourlyRate *decimal.Decimal `json:"hourlyRate" binding:"required"`
	IsActive   *bool            `json:"isActive" binding:"required"`
	ManagerID  *string          `json:"managerId"`
}

func (r *RowSaving) updating() *domain.MemberUpdating {
	fullName, role := r.FullName, r.Role
	u := &domain.MemberUpdating{FullName: &fullName, Role: &role}
	if r.HourlyRate != nil {
		rate := *r.HourlyRate
		u.HourlyRate = &rate
	}
	if r.IsActive != nil {
		active := *r.IsActive
		u.IsActive = &active
	}
	if r.ManagerID == nil || *r.ManagerID == "" {
		u.ClearManager = true
	} else {
		id := *r.ManagerID
		u.ManagerID = &id
	}
	return u
}

type PeopleManager struct {
	store       directory.Store
	invitations invitation.InvitationManagerTraits
}

func NewPeopleManager(store directory.Store, invitations invitation.InvitationManagerTraits) *PeopleManager {
	return &PeopleManager{store: store, invitations: invitations}
}

// QueryMembers returns the rows visible to the viewer, each with the fields the viewer may edit.
func (m *PeopleManager) QueryMembers(q *domain.MemberQuery, s *session.Session) ([]domain.MemberRow, error) {
	var role domain.Role
	if q.Role != "" {
		parsed, ok := domain.ParseRole(q.Role)
		if !ok {
			return nil, bizerror.ErrInvalidRole
		}
		role = parsed
	}
	var active *bool
	if q.Active != "" {
		v, err := strconv.ParseBool(q.Active)
		if err != nil {
			return nil, &common.ErrBadParam{Cause: err}
		}
		active = &v
	}

	ctx := s.Ctx()
	members, err := m.store.ListMembers(ctx, s.OrgID)
	if err != nil {
		return nil, err
	}
	visible := access.VisibleInScope(s.Identity.ID, s.Role, members, access.Scope(q.Scope))

	keyword := strings.TrimSpace(q.Keyword)
	var matched map[string]bool
	if keyword != "" && es.Enabled() {
		if matched, err = indices.SearchMemberIDs(ctx, s.OrgID, keyword); err != nil {
			logrus.WithField("orgId", s.OrgID).Warnf("member search failed, filtering in memory: %v", err)
			matched = nil
		}
	}

	rows := []domain.MemberRow{}
	for i := range visible {
		member := &visible[i]
		if role != "" && member.Role != role {
			continue
		}
		if active != nil && member.IsActive != *active {
			continue
		}
		if keyword != "" {
			if matched != nil && !matched[member.ID] {
				continue
			}
			if matched == nil && !matchKeyword(member, keyword) {
				continue
			}
		}
		rows = append(rows, rowOf(s, *member))
	}
	return rows, nil
}

func matchKeyword(m *domain.Member, keyword string) bool {
	keyword = strings.ToLower(keyword)
	return strings.Contains(strings.ToLower(m.FullName), keyword) ||
		strings.Contains(string(m.Role), keyword) ||
		strings.Contains(strings.ToLower(m.ID), keyword)
}

func rowOf(s *session.Session, m domain.Member) domain.MemberRow {
	return domain.MemberRow{Member: m, Editable: access.EditableFields(s.Identity.ID, s.Role, &m).Names()}
}

// UpdateMember applies u to one row. Nothing is written when the values equal the stored ones.
func (m *PeopleManager) UpdateMember(id string, u *domain.MemberUpdating, s *session.Session) (*SavedRow, error) {
	result, err := m.save(s, []string{id}, map[string]*domain.MemberUpdating{id: u})
	if err != nil {
		return nil, err
	}
	return &result.Saved[0], nil
}

// SaveRows writes the dirty rows of rows in one transaction. Every row is checked before anything is written.
func (m *PeopleManager) SaveRows(rows []RowSaving, s *session.Session) (*SaveResult, error) {
	ids := make([]string, 0, len(rows))
	updates := make(map[string]*domain.MemberUpdating, len(rows))
	for i := range rows {
		if _, found := updates[rows[i].ID]; found {
			return nil, &common.ErrBadParam{Cause: errors.New("duplicated row " + rows[i].ID)}
		}
		ids = append(ids, rows[i].ID)
		updates[rows[i].ID] = rows[i].updating()
	}
	return m.save(s, ids, updates)
}

func (m *PeopleManager) save(s *session.Session, ids []string, updates map[string]*domain.MemberUpdating) (*SaveResult, error) {
	ctx := s.Ctx()
	members, err := m.store.ListMembers(ctx, s.OrgID)
	if err != nil {
		return nil, err
	}
	stored := make(map[string]domain.Member, len(members))
	for _, member := range members {
		stored[member.ID] = member
	}
	tracker := dirty.NewTracker()
	tracker.Capture(members...)

	next := make(map[string]domain.Member, len(members))
	for id, member := range stored {
		next[id] = member
	}
	for _, id := range ids {
		row, found := stored[id]
		if !found {
			return nil, bizerror.ErrNotFound
		}
		if !access.CanSee(s.Identity.ID, s.Role, &row) {
			return nil, bizerror.ErrForbidden
		}
		updated, err := access.CheckUpdate(s.Identity.ID, s.Role, row, updates[id])
		if err != nil {
			return nil, err
		}
		if updated.HourlyRate.IsNegative() {
			return nil, bizerror.ErrNegativeRate
		}
		next[id] = updated
	}

	var changed []domain.Member
	result := &SaveResult{Saved: []SavedRow{}, Skipped: []string{}}
	for _, id := range ids {
		row := next[id]
		if !tracker.IsDirty(row) {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		if err := checkManager(row, stored[id], next); err != nil {
			return nil, err
		}
		changed = append(changed, row)
	}
	for _, row := range changed {
		if row.Role.CanManage() {
			continue
		}
		for _, other := range next {
			if other.IsReportOf(row.ID) {
				return nil, bizerror.ErrManagerHasReports
			}
		}
	}

	switch len(changed) {
	case 0:
	case 1:
		err = m.store.UpdateMember(ctx, &changed[0])
	default:
		err = m.store.UpdateMembers(ctx, changed)
	}
	if err != nil {
		return nil, err
	}
	changedIDs := make([]string, 0, len(changed))
	for _, row := range changed {
		changedIDs = append(changedIDs, row.ID)
	}
	session.EvictMemberSessions(changedIDs...)
	if err := indices.FlushIndexLogs(ctx, m.store, s.OrgID); err != nil {
		logrus.WithField("orgId", s.OrgID).Warnf("member index not flushed: %v", err)
	}

	for _, row := range changed {
		tracker.Commit(row)
		logrus.WithFields(logrus.Fields{"orgId": s.OrgID, "memberId": row.ID,
			"fields": dirty.Diff(stored[row.ID], row)}).Info("member updated")
	}
	for _, id := range ids {
		row := next[id]
		base, _ := tracker.Baseline(id)
		if len(ids) == 1 || containsID(changed, id) {
			result.Saved = append(result.Saved, SavedRow{MemberRow: rowOf(s, row), Baseline: base})
		}
	}
	return result, nil
}

// checkManager verifies the manager reference of row when it was (re)assigned.
func checkManager(row, before domain.Member, members map[string]domain.Member) error {
	if row.ManagerID == nil || common.DerefString(row.ManagerID) == common.DerefString(before.ManagerID) {
		return nil
	}
	manager, found := members[*row.ManagerID]
	if !found || manager.ID == row.ID || !manager.Role.CanManage() || !manager.IsActive {
		return bizerror.ErrInvalidManager
	}
	return nil
}

func containsID(members []domain.Member, id string) bool {
	for _, m := range members {
		if m.ID == id {
			return true
		}
	}
	return false
}
