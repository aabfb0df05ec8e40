package invitation

import (
	"context"
	"errors"
	"roster/bizerror"
	"roster/client/idp"
	"roster/directory"
	"roster/domain"
	"roster/indices"
	"roster/session"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type InvitationManagerTraits interface {
	List(s *session.Session) ([]View, error)
	CreateLink(c *LinkCreation, s *session.Session) (*Link, error)
	Invite(r *InviteRequest, s *session.Session) (*domain.Member, error)
	Cancel(id string, s *session.Session) error
}

type LinkCreation struct {
	Email string `json:"email"`
}

type Link struct {
	ActionLink string `json:"actionLink"`
	MemberID   string `json:"memberId"`
	Email      string `json:"email"`
}

// InviteRequest describes a new member. Without a password an invitation email is sent,
// with one the account is created confirmed.
type InviteRequest struct {
	Email      string          `json:"email"`
	FullName   string          `json:"fullName" binding:"lte=128"`
	Role       domain.Role     `json:"role"`
	HourlyRate decimal.Decimal `json:"hourlyRate"`
	ManagerID  *string         `json:"managerId"`
	Password   string          `json:"password" binding:"omitempty,gte=6"`
}

type InvitationManager struct {
	store    directory.Store
	provider idp.Provider
	validate *validator.Validate
	paging   Paging
	limiter  *rate.Limiter
}

var _ InvitationManagerTraits = (*InvitationManager)(nil)

func NewInvitationManager(store directory.Store, provider idp.Provider, paging Paging) *InvitationManager {
	if paging.PageSize <= 0 {
		paging.PageSize = DefaultPaging.PageSize
	}
	limit := rate.Inf
	if paging.Interval > 0 {
		limit = rate.Every(paging.Interval)
	}
	return &InvitationManager{
		store:    store,
		provider: provider,
		validate: validator.New(),
		paging:   paging,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// List returns the invitations of the viewer's organization: every account holding a member row in it.
func (m *InvitationManager) List(s *session.Session) ([]View, error) {
	if !s.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}
	ctx := s.Ctx()
	members, err := m.store.ListMembers(ctx, s.OrgID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Member, len(members))
	for _, member := range members {
		byID[member.ID] = member
	}

	views := []View{}
	for page := 1; ; page++ {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		accounts, err := m.provider.ListAccounts(ctx, page, m.paging.PageSize)
		if err != nil {
			return nil, err
		}
		for i := range accounts {
			member, found := byID[accounts[i].ID]
			if !found {
				continue
			}
			v := ViewOf(&accounts[i])
			v.FullName = member.FullName
			v.Role = member.Role
			views = append(views, v)
		}
		if len(accounts) < m.paging.PageSize {
			break
		}
	}
	SortViews(views)
	return views, nil
}

func (m *InvitationManager) CreateLink(c *LinkCreation, s *session.Session) (*Link, error) {
	if !s.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}
	email, err := m.normalizeEmail(c.Email)
	if err != nil {
		return nil, err
	}

	ctx := s.Ctx()
	if err := m.checkAccountOrg(ctx, email, s.OrgID); err != nil {
		return nil, err
	}
	link, err := m.provider.GenerateInviteLink(ctx, email)
	if err != nil {
		return nil, err
	}
	member := domain.Member{ID: link.Account.ID, OrgID: s.OrgID, Role: domain.RoleContractor,
		HourlyRate: decimal.Zero, IsActive: true}
	if _, err := m.attach(ctx, &member, false); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"orgId": s.OrgID, "memberId": member.ID}).Info("invitation link created")
	return &Link{ActionLink: link.ActionLink, MemberID: member.ID, Email: email}, nil
}

func (m *InvitationManager) Invite(r *InviteRequest, s *session.Session) (*domain.Member, error) {
	if !s.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}
	member, email, err := m.prepare(r, s)
	if err != nil {
		return nil, err
	}

	ctx := s.Ctx()
	if err := m.checkAccountOrg(ctx, email, s.OrgID); err != nil {
		return nil, err
	}
	var account *idp.Account
	if r.Password != "" {
		account, err = m.provider.CreateAccount(ctx, &idp.AccountCreation{Email: email, Password: r.Password, FullName: member.FullName})
	} else {
		account, err = m.provider.InviteByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}

	member.ID = account.ID
	saved, err := m.attach(ctx, member, true)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"orgId": s.OrgID, "memberId": saved.ID, "role": saved.Role}).Info("member invited")
	return saved, nil
}

// prepare validates r against the organization. Nothing is written.
func (m *InvitationManager) prepare(r *InviteRequest, s *session.Session) (*domain.Member, string, error) {
	email, err := m.normalizeEmail(r.Email)
	if err != nil {
		return nil, "", err
	}
	role := domain.RoleContractor
	if r.Role != "" {
		parsed, ok := domain.ParseRole(string(r.Role))
		if !ok || parsed == domain.RoleAdmin {
			return nil, "", bizerror.ErrInvalidRole
		}
		role = parsed
	}
	if r.HourlyRate.IsNegative() {
		return nil, "", bizerror.ErrNegativeRate
	}

	member := &domain.Member{OrgID: s.OrgID, Role: role, FullName: strings.TrimSpace(r.FullName),
		HourlyRate: r.HourlyRate, IsActive: true}
	if role == domain.RoleContractor && r.ManagerID != nil && *r.ManagerID != "" {
		manager, err := m.store.GetMember(s.Ctx(), s.OrgID, *r.ManagerID)
		if errors.Is(err, bizerror.ErrNotFound) {
			return nil, "", bizerror.ErrInvalidManager
		}
		if err != nil {
			return nil, "", err
		}
		if !manager.Role.CanManage() || !manager.IsActive {
			return nil, "", bizerror.ErrInvalidManager
		}
		id := manager.ID
		member.ManagerID = &id
	}
	return member, email, nil
}

func (m *InvitationManager) normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := m.validate.Var(email, "required,email"); err != nil {
		return "", bizerror.ErrInvalidEmail
	}
	return email, nil
}

// checkAccountOrg refuses an email whose account already belongs to another organization,
// before the identity provider issues anything for it.
func (m *InvitationManager) checkAccountOrg(ctx context.Context, email string, orgID types.ID) error {
	account, err := m.provider.FindAccountByEmail(ctx, email)
	if errors.Is(err, bizerror.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	member, err := m.store.FindMember(ctx, account.ID)
	if errors.Is(err, bizerror.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if member.OrgID != orgID {
		return bizerror.ErrMemberInOtherOrg
	}
	return nil
}

// attach upserts member as the organization row of its account. An existing row of the same
// organization is kept unless overwrite is set; a row of another organization is a conflict.
func (m *InvitationManager) attach(ctx context.Context, member *domain.Member, overwrite bool) (*domain.Member, error) {
	existing, err := m.store.FindMember(ctx, member.ID)
	if err != nil && !errors.Is(err, bizerror.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.OrgID != member.OrgID {
			return nil, bizerror.ErrMemberInOtherOrg
		}
		if !overwrite {
			return existing, nil
		}
		member.CreateTime = existing.CreateTime
	} else {
		member.CreateTime = time.Now()
	}

	if err := m.store.UpsertMember(ctx, member); err != nil {
		return nil, err
	}
	if err := indices.FlushIndexLogs(ctx, m.store, member.OrgID); err != nil {
		logrus.WithField("memberId", member.ID).Warnf("member index not flushed: %v", err)
	}
	return member, nil
}

// Cancel removes a not yet accepted invitation of the organization: memberships, time entries, member row,
// then the account. Only accounts with a member row in the organization can be cancelled; an account left
// behind by a failed last step has no organization and is reported as not found.
func (m *InvitationManager) Cancel(id string, s *session.Session) error {
	if !s.IsAdmin() {
		return bizerror.ErrForbidden
	}
	if id == s.Identity.ID {
		return bizerror.ErrSelfCancel
	}

	ctx := s.Ctx()
	if _, err := m.store.GetMember(ctx, s.OrgID, id); err != nil {
		return err
	}
	account, err := m.provider.GetAccount(ctx, id)
	if err != nil && !errors.Is(err, bizerror.ErrNotFound) {
		return err
	}
	if account != nil && DeriveStatus(account) == StatusActive {
		return bizerror.ErrInvitationAccepted
	}

	log := logrus.WithFields(logrus.Fields{"orgId": s.OrgID, "memberId": id})
	memberships, err := m.store.DeleteMemberships(ctx, s.OrgID, id)
	if err != nil {
		return err
	}
	entries, err := m.store.DeleteTimeEntries(ctx, s.OrgID, id)
	if err != nil {
		return err
	}
	if err := m.store.DeleteMember(ctx, s.OrgID, id); err != nil {
		return err
	}
	session.EvictMemberSessions(id)
	if err := indices.FlushIndexLogs(ctx, m.store, s.OrgID); err != nil {
		log.Warnf("member index not flushed: %v", err)
	}

	if account != nil {
		if err := m.provider.DeleteAccount(ctx, id); err != nil && !errors.Is(err, bizerror.ErrNotFound) {
			log.WithError(err).Error("member rows removed but account deletion failed")
			return err
		}
	}
	log.WithFields(logrus.Fields{"memberships": memberships, "timeEntries": entries}).Info("invitation cancelled")
	return nil
}
