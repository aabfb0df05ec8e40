// Package directory persists organization members, projects, project memberships and time entries.
// Every read and write is scoped by organization id.
package directory

import (
	"context"
	"roster/domain"
	"roster/indices/indexlog"

	"github.com/fundwit/go-commons/types"
)

type MembershipFilter struct {
	ProjectID  *types.ID
	MemberID   *string
	ActiveOnly bool
}

// Store is the org directory. Lookups of absent rows return bizerror.ErrNotFound, store failures
// are wrapped as bizerror.ErrUpstream. Deletes of absent rows are not errors.
type Store interface {
	ListMembers(ctx context.Context, orgID types.ID) ([]domain.Member, error)
	// ListOrgIDs returns the organizations holding at least one member, ascending.
	ListOrgIDs(ctx context.Context) ([]types.ID, error)
	GetMember(ctx context.Context, orgID types.ID, id string) (*domain.Member, error)
	// FindMember looks a member up by account id regardless of organization.
	FindMember(ctx context.Context, id string) (*domain.Member, error)
	UpsertMember(ctx context.Context, m *domain.Member) error
	UpdateMember(ctx context.Context, m *domain.Member) error
	UpdateMembers(ctx context.Context, members []domain.Member) error
	DeleteMember(ctx context.Context, orgID types.ID, id string) error

	ListProjects(ctx context.Context, orgID types.ID) ([]domain.Project, error)
	GetProject(ctx context.Context, orgID types.ID, id types.ID) (*domain.Project, error)
	CreateProject(ctx context.Context, p *domain.Project) error
	UpdateProject(ctx context.Context, p *domain.Project) error

	ListMemberships(ctx context.Context, orgID types.ID, filter MembershipFilter) ([]domain.ProjectMember, error)
	GetMembership(ctx context.Context, orgID types.ID, projectID types.ID, memberID string) (*domain.ProjectMember, error)
	// UpsertMemberships writes all rows in one transaction, keyed on (project id, member id).
	UpsertMemberships(ctx context.Context, rows ...domain.ProjectMember) error
	DeleteMemberships(ctx context.Context, orgID types.ID, memberID string) (int64, error)

	// ListTimeEntries returns entries with from <= entry date < to, dates formatted as domain.DateLayout.
	ListTimeEntries(ctx context.Context, orgID types.ID, from, to string) ([]domain.TimeEntry, error)
	DeleteTimeEntries(ctx context.Context, orgID types.ID, memberID string) (int64, error)

	// Member writes append an index log in the same transaction; LoadPendingIndexLogs returns the
	// logs not yet applied to the search index, oldest first.
	LoadPendingIndexLogs(ctx context.Context, orgID types.ID, limit int) ([]indexlog.IndexLogRecord, error)
	FinishIndexLogs(ctx context.Context, ids []types.ID) error
}
