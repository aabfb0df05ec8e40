package namespace

import (
	"errors"
	"roster/bizerror"
	"roster/common"
	"roster/directory"
	"roster/domain"
	"roster/idgen"
	"roster/session"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

type ProjectManagerTraits interface {
	QueryProjects(s *session.Session) ([]domain.Project, error)
	CreateProject(c *domain.ProjectCreating, s *session.Session) (*domain.Project, error)
	UpdateProject(id types.ID, u *domain.ProjectUpdating, s *session.Session) (*domain.Project, error)
}

type ProjectManager struct {
	store    directory.Store
	idWorker *sonyflake.Sonyflake
}

func NewProjectManager(store directory.Store, idWorker *sonyflake.Sonyflake) *ProjectManager {
	return &ProjectManager{store: store, idWorker: idWorker}
}

// QueryProjects lists all projects of the organization for admins, and the projects
// the viewer is an active member of for everyone else.
func (m *ProjectManager) QueryProjects(s *session.Session) ([]domain.Project, error) {
	ctx := s.Ctx()
	projects, err := m.store.ListProjects(ctx, s.OrgID)
	if err != nil {
		return nil, err
	}
	if s.IsAdmin() {
		return projects, nil
	}

	memberID := s.Identity.ID
	memberships, err := m.store.ListMemberships(ctx, s.OrgID, directory.MembershipFilter{MemberID: &memberID, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	joined := map[types.ID]bool{}
	for _, pm := range memberships {
		joined[pm.ProjectID] = true
	}
	visible := []domain.Project{}
	for _, p := range projects {
		if joined[p.ID] {
			visible = append(visible, p)
		}
	}
	return visible, nil
}

func (m *ProjectManager) CreateProject(c *domain.ProjectCreating, s *session.Session) (*domain.Project, error) {
	if !s.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return nil, &common.ErrBadParam{Cause: errors.New("project name is required")}
	}
	weekStart := c.WeekStart
	if weekStart == "" {
		weekStart = domain.WeekStartSunday
	}
	if !weekStart.Valid() {
		return nil, bizerror.ErrInvalidWeek
	}

	p := domain.Project{ID: idgen.NextID(m.idWorker), OrgID: s.OrgID, Name: name, IsActive: true,
		WeekStart: weekStart, CreateTime: time.Now()}
	if err := m.store.CreateProject(s.Ctx(), &p); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"orgId": s.OrgID, "projectId": p.ID}).Info("project created")
	return &p, nil
}

// UpdateProject renames, (de)activates or changes the week start of a project. Projects are never deleted.
func (m *ProjectManager) UpdateProject(id types.ID, u *domain.ProjectUpdating, s *session.Session) (*domain.Project, error) {
	if !s.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}
	if u.WeekStart != nil && !u.WeekStart.Valid() {
		return nil, bizerror.ErrInvalidWeek
	}
	var name string
	if u.Name != nil {
		if name = strings.TrimSpace(*u.Name); name == "" {
			return nil, &common.ErrBadParam{Cause: errors.New("project name is required")}
		}
	}

	ctx := s.Ctx()
	p, err := m.store.GetProject(ctx, s.OrgID, id)
	if err != nil {
		return nil, err
	}
	if u.Name != nil {
		p.Name = name
	}
	if u.IsActive != nil {
		p.IsActive = *u.IsActive
	}
	if u.WeekStart != nil {
		p.WeekStart = *u.WeekStart
	}
	if err := m.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"orgId": s.OrgID, "projectId": p.ID, "active": p.IsActive}).Info("project updated")
	return p, nil
}
