package namespace

import (
	"errors"
	"roster/bizerror"
	"roster/directory"
	"roster/domain"
	"roster/domain/invitation"
	"roster/session"
	"sort"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

type MembershipManagerTraits interface {
	QueryProjectMembers(q *domain.ProjectMemberQuery, s *session.Session) ([]domain.ProjectMemberDetail, error)
	Toggle(t *domain.MembershipToggle, s *session.Session) (*domain.MembershipState, error)
	BulkInvite(r *BulkInviteRequest, s *session.Session) (*BulkInviteResult, error)
}

// BulkInviteRequest invites one member and assigns it to every project of ProjectIDs.
type BulkInviteRequest struct {
	invitation.InviteRequest
	ProjectIDs []types.ID `json:"projectIds"`
}

type BulkInviteResult struct {
	Member     domain.Member `json:"member"`
	ProjectIDs []types.ID    `json:"projectIds"`
}

type MembershipManager struct {
	store       directory.Store
	invitations invitation.InvitationManagerTraits
}

func NewMembershipManager(store directory.Store, invitations invitation.InvitationManagerTraits) *MembershipManager {
	return &MembershipManager{store: store, invitations: invitations}
}

// QueryProjectMembers lists the active members of a project with their names.
func (m *MembershipManager) QueryProjectMembers(q *domain.ProjectMemberQuery, s *session.Session) ([]domain.ProjectMemberDetail, error) {
	if !s.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}
	ctx := s.Ctx()
	project, err := m.store.GetProject(ctx, s.OrgID, q.ProjectID)
	if err != nil {
		return nil, err
	}
	memberships, err := m.store.ListMemberships(ctx, s.OrgID, directory.MembershipFilter{ProjectID: &project.ID, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	members, err := m.store.ListMembers(ctx, s.OrgID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Member, len(members))
	for _, member := range members {
		byID[member.ID] = member
	}

	details := []domain.ProjectMemberDetail{}
	for _, pm := range memberships {
		detail := domain.ProjectMemberDetail{ProjectMember: pm, ProjectName: project.Name, MemberName: "Unknown"}
		if member, found := byID[pm.MemberID]; found {
			detail.MemberName = member.FullName
			detail.MemberRole = member.Role
		}
		details = append(details, detail)
	}
	sort.SliceStable(details, func(i, j int) bool {
		return details[i].MemberName < details[j].MemberName
	})
	return details, nil
}

// Toggle (de)activates the membership of a member in a project. The row is upserted on
// (project id, member id), so repeated calls never create a second row.
func (m *MembershipManager) Toggle(t *domain.MembershipToggle, s *session.Session) (*domain.MembershipState, error) {
	if !s.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}
	ctx := s.Ctx()
	if _, err := m.store.GetProject(ctx, s.OrgID, t.ProjectID); err != nil {
		if errors.Is(err, bizerror.ErrNotFound) {
			return nil, bizerror.ErrInvalidProject
		}
		return nil, err
	}
	if _, err := m.store.GetMember(ctx, s.OrgID, t.MemberID); err != nil {
		if errors.Is(err, bizerror.ErrNotFound) {
			return nil, bizerror.ErrInvalidMember
		}
		return nil, err
	}

	state := &domain.MembershipState{ProjectID: t.ProjectID, MemberID: t.MemberID, IsActive: t.Active}
	prior, err := m.store.GetMembership(ctx, s.OrgID, t.ProjectID, t.MemberID)
	if err != nil && !errors.Is(err, bizerror.ErrNotFound) {
		return nil, err
	}
	if prior == nil && !t.Active {
		return state, nil
	}
	if prior != nil && prior.IsActive == t.Active {
		return state, nil
	}

	row := domain.ProjectMember{ProjectID: t.ProjectID, MemberID: t.MemberID, OrgID: s.OrgID, IsActive: t.Active}
	if err := m.store.UpsertMemberships(ctx, row); err != nil {
		return nil, err
	}
	state.Changed = true
	logrus.WithFields(logrus.Fields{"orgId": s.OrgID, "projectId": t.ProjectID, "memberId": t.MemberID,
		"active": t.Active}).Info("project membership toggled")
	return state, nil
}

// BulkInvite checks the whole project list before inviting, then writes all memberships at once.
// A failed membership write leaves the invited member in place.
func (m *MembershipManager) BulkInvite(r *BulkInviteRequest, s *session.Session) (*BulkInviteResult, error) {
	if !s.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}
	ctx := s.Ctx()
	projectIDs, err := m.checkProjects(r.ProjectIDs, s)
	if err != nil {
		return nil, err
	}

	member, err := m.invitations.Invite(&r.InviteRequest, s)
	if err != nil {
		return nil, err
	}

	if len(projectIDs) > 0 {
		now := time.Now()
		rows := make([]domain.ProjectMember, 0, len(projectIDs))
		for _, id := range projectIDs {
			rows = append(rows, domain.ProjectMember{ProjectID: id, MemberID: member.ID, OrgID: s.OrgID, IsActive: true,
				CreateTime: now, UpdateTime: now})
		}
		if err := m.store.UpsertMemberships(ctx, rows...); err != nil {
			logrus.WithFields(logrus.Fields{"orgId": s.OrgID, "memberId": member.ID}).
				WithError(err).Error("member invited but project assignment failed")
			return nil, err
		}
	}
	return &BulkInviteResult{Member: *member, ProjectIDs: projectIDs}, nil
}

// checkProjects returns the distinct ids, or ErrInvalidProject listing every id outside the organization.
func (m *MembershipManager) checkProjects(ids []types.ID, s *session.Session) ([]types.ID, error) {
	distinct := []types.ID{}
	if len(ids) == 0 {
		return distinct, nil
	}
	projects, err := m.store.ListProjects(s.Ctx(), s.OrgID)
	if err != nil {
		return nil, err
	}
	known := make(map[types.ID]bool, len(projects))
	for _, p := range projects {
		known[p.ID] = true
	}

	seen := map[types.ID]bool{}
	var invalid []types.ID
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if !known[id] {
			invalid = append(invalid, id)
			continue
		}
		distinct = append(distinct, id)
	}
	if len(invalid) > 0 {
		return nil, bizerror.ErrInvalidProject.WithData(invalid)
	}
	return distinct, nil
}
