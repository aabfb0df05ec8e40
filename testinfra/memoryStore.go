package testinfra

import (
	"context"
	"roster/bizerror"
	"roster/directory"
	"roster/domain"
	"roster/indices/indexlog"
	"sort"
	"sync"
	"time"

	"github.com/fundwit/go-commons/types"
)

type membershipKey struct {
	ProjectID types.ID
	MemberID  string
}

// MemoryStore is an in-memory directory.Store. Failures maps a method name to the error it returns.
type MemoryStore struct {
	mu sync.Mutex

	Members     map[string]domain.Member
	Projects    map[types.ID]domain.Project
	Memberships map[membershipKey]domain.ProjectMember
	TimeEntries []domain.TimeEntry
	IndexLogs   []indexlog.IndexLogRecord

	Failures map[string]error
	Calls    []string
}

var _ directory.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Members:     map[string]domain.Member{},
		Projects:    map[types.ID]domain.Project{},
		Memberships: map[membershipKey]domain.ProjectMember{},
		Failures:    map[string]error{},
	}
}

func (s *MemoryStore) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failures[method] = err
}

func (s *MemoryStore) CallsOf(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		if c == method {
			n++
		}
	}
	return n
}

func (s *MemoryStore) enter(method string) error {
	s.mu.Lock()
	s.Calls = append(s.Calls, method)
	if err := s.Failures[method]; err != nil {
		s.mu.Unlock()
		return bizerror.Upstream("directory", err)
	}
	return nil
}

func (s *MemoryStore) ListMembers(ctx context.Context, orgID types.ID) ([]domain.Member, error) {
	if err := s.enter("ListMembers"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	members := []domain.Member{}
	for _, m := range s.Members {
		if m.OrgID == orgID {
			members = append(members, m)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		if !members[i].CreateTime.Equal(members[j].CreateTime) {
			return members[i].CreateTime.Before(members[j].CreateTime)
		}
		return members[i].ID < members[j].ID
	})
	return members, nil
}

func (s *MemoryStore) ListOrgIDs(ctx context.Context) ([]types.ID, error) {
	if err := s.enter("ListOrgIDs"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	seen := map[types.ID]bool{}
	ids := []types.ID{}
	for _, m := range s.Members {
		if !seen[m.OrgID] {
			seen[m.OrgID] = true
			ids = append(ids, m.OrgID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryStore) GetMember(ctx context.Context, orgID types.ID, id string) (*domain.Member, error) {
	if err := s.enter("GetMember"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	m, found := s.Members[id]
	if !found || m.OrgID != orgID {
		return nil, bizerror.ErrNotFound
	}
	return &m, nil
}

func (s *MemoryStore) FindMember(ctx context.Context, id string) (*domain.Member, error) {
	if err := s.enter("FindMember"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	m, found := s.Members[id]
	if !found {
		return nil, bizerror.ErrNotFound
	}
	return &m, nil
}

func (s *MemoryStore) UpsertMember(ctx context.Context, m *domain.Member) error {
	if err := s.enter("UpsertMember"); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if existing, found := s.Members[m.ID]; found {
		m.CreateTime = existing.CreateTime
	} else if m.CreateTime.IsZero() {
		m.CreateTime = time.Now()
	}
	s.Members[m.ID] = *m
	s.appendIndexLog(indexlog.MemberLog(m.OrgID, m.ID, false))
	return nil
}

func (s *MemoryStore) UpdateMember(ctx context.Context, m *domain.Member) error {
	if err := s.enter("UpdateMember"); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.updateMember(m)
	return nil
}

func (s *MemoryStore) UpdateMembers(ctx context.Context, members []domain.Member) error {
	if err := s.enter("UpdateMembers"); err != nil {
		return err
	}
	defer s.mu.Unlock()
	for i := range members {
		s.updateMember(&members[i])
	}
	return nil
}

func (s *MemoryStore) updateMember(m *domain.Member) {
	existing, found := s.Members[m.ID]
	if !found || existing.OrgID != m.OrgID {
		return
	}
	s.appendIndexLog(indexlog.MemberLog(m.OrgID, m.ID, false))
	existing.FullName = m.FullName
	existing.Role = m.Role
	existing.HourlyRate = m.HourlyRate
	existing.IsActive = m.IsActive
	existing.ManagerID = m.ManagerID
	s.Members[m.ID] = existing
}

func (s *MemoryStore) DeleteMember(ctx context.Context, orgID types.ID, id string) error {
	if err := s.enter("DeleteMember"); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if m, found := s.Members[id]; found && m.OrgID == orgID {
		delete(s.Members, id)
	}
	s.appendIndexLog(indexlog.MemberLog(orgID, id, true))
	return nil
}

func (s *MemoryStore) appendIndexLog(log indexlog.IndexLog) {
	for i := range s.IndexLogs {
		r := &s.IndexLogs[i]
		if r.SourceType == log.SourceType && r.SourceID == log.SourceID && r.IndexedTime == nil {
			r.Obsolete = true
		}
	}
	s.IndexLogs = append(s.IndexLogs, indexlog.IndexLogRecord{
		ID: types.ID(len(s.IndexLogs) + 1), IndexLog: log, Timestamp: time.Now()})
}

func (s *MemoryStore) LoadPendingIndexLogs(ctx context.Context, orgID types.ID, limit int) ([]indexlog.IndexLogRecord, error) {
	if err := s.enter("LoadPendingIndexLogs"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	records := []indexlog.IndexLogRecord{}
	for _, r := range s.IndexLogs {
		if r.OrgID == orgID && r.IndexedTime == nil && !r.Obsolete && len(records) < limit {
			records = append(records, r)
		}
	}
	return records, nil
}

func (s *MemoryStore) FinishIndexLogs(ctx context.Context, ids []types.ID) error {
	if err := s.enter("FinishIndexLogs"); err != nil {
		return err
	}
	defer s.mu.Unlock()
	now := time.Now()
	for _, id := range ids {
		for i := range s.IndexLogs {
			if s.IndexLogs[i].ID == id {
				s.IndexLogs[i].IndexedTime = &now
			}
		}
	}
	return nil
}

// PendingIndexLogs returns the records not yet applied to the search index.
func (s *MemoryStore) PendingIndexLogs() []indexlog.IndexLogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := []indexlog.IndexLogRecord{}
	for _, r := range s.IndexLogs {
		if r.IndexedTime == nil && !r.Obsolete {
			records = append(records, r)
		}
	}
	return records
}

func (s *MemoryStore) ListProjects(ctx context.Context, orgID types.ID) ([]domain.Project, error) {
	if err := s.enter("ListProjects"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	projects := []domain.Project{}
	for _, p := range s.Projects {
		if p.OrgID == orgID {
			projects = append(projects, p)
		}
	}
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].Name != projects[j].Name {
			return projects[i].Name < projects[j].Name
		}
		return projects[i].ID < projects[j].ID
	})
	return projects, nil
}

func (s *MemoryStore) GetProject(ctx context.Context, orgID types.ID, id types.ID) (*domain.Project, error) {
	if err := s.enter("GetProject"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	p, found := s.Projects[id]
	if !found || p.OrgID != orgID {
		return nil, bizerror.ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) CreateProject(ctx context.Context, p *domain.Project) error {
	if err := s.enter("CreateProject"); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.Projects[p.ID] = *p
	return nil
}

func (s *MemoryStore) UpdateProject(ctx context.Context, p *domain.Project) error {
	if err := s.enter("UpdateProject"); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if existing, found := s.Projects[p.ID]; found && existing.OrgID == p.OrgID {
		existing.Name = p.Name
		existing.IsActive = p.IsActive
		existing.WeekStart = p.WeekStart
		s.Projects[p.ID] = existing
	}
	return nil
}

func (s *MemoryStore) ListMemberships(ctx context.Context, orgID types.ID, filter directory.MembershipFilter) ([]domain.ProjectMember, error) {
	if err := s.enter("ListMemberships"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	rows := []domain.ProjectMember{}
	for _, row := range s.Memberships {
		if row.OrgID != orgID ||
			(filter.ProjectID != nil && row.ProjectID != *filter.ProjectID) ||
			(filter.MemberID != nil && row.MemberID != *filter.MemberID) ||
			(filter.ActiveOnly && !row.IsActive) {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ProjectID != rows[j].ProjectID {
			return rows[i].ProjectID < rows[j].ProjectID
		}
		return rows[i].MemberID < rows[j].MemberID
	})
	return rows, nil
}

func (s *MemoryStore) GetMembership(ctx context.Context, orgID types.ID, projectID types.ID, memberID string) (*domain.ProjectMember, error) {
	if err := s.enter("GetMembership"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	row, found := s.Memberships[membershipKey{ProjectID: projectID, MemberID: memberID}]
	if !found || row.OrgID != orgID {
		return nil, bizerror.ErrNotFound
	}
	return &row, nil
}

func (s *MemoryStore) UpsertMemberships(ctx context.Context, rows ...domain.ProjectMember) error {
	if err := s.enter("UpsertMemberships"); err != nil {
		return err
	}
	defer s.mu.Unlock()
	now := time.Now()
	for _, row := range rows {
		key := membershipKey{ProjectID: row.ProjectID, MemberID: row.MemberID}
		if existing, found := s.Memberships[key]; found {
			row.CreateTime = existing.CreateTime
		} else if row.CreateTime.IsZero() {
			row.CreateTime = now
		}
		row.UpdateTime = now
		s.Memberships[key] = row
	}
	return nil
}

func (s *MemoryStore) DeleteMemberships(ctx context.Context, orgID types.ID, memberID string) (int64, error) {
	if err := s.enter("DeleteMemberships"); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	var n int64
	for key, row := range s.Memberships {
		if row.OrgID == orgID && row.MemberID == memberID {
			delete(s.Memberships, key)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListTimeEntries(ctx context.Context, orgID types.ID, from, to string) ([]domain.TimeEntry, error) {
	if err := s.enter("ListTimeEntries"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	entries := []domain.TimeEntry{}
	for _, e := range s.TimeEntries {
		if e.OrgID == orgID && e.EntryDate >= from && e.EntryDate < to {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (s *MemoryStore) DeleteTimeEntries(ctx context.Context, orgID types.ID, memberID string) (int64, error) {
	if err := s.enter("DeleteTimeEntries"); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	kept := s.TimeEntries[:0]
	var n int64
	for _, e := range s.TimeEntries {
		if e.OrgID == orgID && e.MemberID == memberID {
			n++
			continue
		}
		kept = append(kept, e)
	}
	s.TimeEntries = kept
	return n, nil
}

// MembershipRows returns every stored membership row of the project and member.
func (s *MemoryStore) MembershipRows(projectID types.ID, memberID string) []domain.ProjectMember {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := []domain.ProjectMember{}
	for _, row := range s.Memberships {
		if row.ProjectID == projectID && row.MemberID == memberID {
			rows = append(rows, row)
		}
	}
	return rows
}
