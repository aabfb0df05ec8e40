package namespace_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"roster/bizerror"
	"roster/domain"
	"roster/domain/namespace"
	"roster/session"
	"roster/testinfra"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type projectManagerMock struct {
	QueryProjectsFunc func(s *session.Session) ([]domain.Project, error)
	CreateProjectFunc func(c *domain.ProjectCreating, s *session.Session) (*domain.Project, error)
	UpdateProjectFunc func(id types.ID, u *domain.ProjectUpdating, s *session.Session) (*domain.Project, error)
}

func (m *projectManagerMock) QueryProjects(s *session.Session) ([]domain.Project, error) {
	return m.QueryProjectsFunc(s)
}
func (m *projectManagerMock) CreateProject(c *domain.ProjectCreating, s *session.Session) (*domain.Project, error) {
	return m.CreateProjectFunc(c, s)
}
func (m *projectManagerMock) UpdateProject(id types.ID, u *domain.ProjectUpdating, s *session.Session) (*domain.Project, error) {
	return m.UpdateProjectFunc(id, u, s)
}

type membershipManagerMock struct {
	QueryProjectMembersFunc func(q *domain.ProjectMemberQuery, s *session.Session) ([]domain.ProjectMemberDetail, error)
	ToggleFunc              func(t *domain.MembershipToggle, s *session.Session) (*domain.MembershipState, error)
	BulkInviteFunc          func(r *namespace.BulkInviteRequest, s *session.Session) (*namespace.BulkInviteResult, error)
}

func (m *membershipManagerMock) QueryProjectMembers(q *domain.ProjectMemberQuery, s *session.Session) ([]domain.ProjectMemberDetail, error) {
	return m.QueryProjectMembersFunc(q, s)
}
func (m *membershipManagerMock) Toggle(t *domain.MembershipToggle, s *session.Session) (*domain.MembershipState, error) {
	return m.ToggleFunc(t, s)
}
func (m *membershipManagerMock) BulkInvite(r *namespace.BulkInviteRequest, s *session.Session) (*namespace.BulkInviteResult, error) {
	return m.BulkInviteFunc(r, s)
}

var _ = Describe("NamespaceRestApi", func() {
	var (
		router      *gin.Engine
		projects    *projectManagerMock
		memberships *membershipManagerMock
		auth        string
	)
	BeforeEach(func() {
		projects = &projectManagerMock{}
		memberships = &membershipManagerMock{}
		filter := session.BearerAuthFilter(testinfra.NewFakeProvider(), testinfra.NewMemoryStore())
		router = gin.Default()
		router.Use(bizerror.ErrorHandling())
		namespace.RegisterProjectsRestApis(router, projects, filter)
		namespace.RegisterProjectMembersRestApis(router, memberships, filter)
		auth = testinfra.CacheSession(testinfra.BuildSession("admin", 10, domain.RoleAdmin))
	})

	request := func(method, path, body string) (int, string) {
		req := httptest.NewRequest(method, path, nil)
		if body != "" {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
		}
		req.Header.Set("Authorization", auth)
		status, responseBody, _ := testinfra.ExecuteRequest(req, router)
		return status, responseBody
	}

	Describe("projects", func() {
		It("should query projects", func() {
			projects.QueryProjectsFunc = func(s *session.Session) ([]domain.Project, error) {
				t := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
				return []domain.Project{{ID: 123, OrgID: 10, Name: "test", IsActive: true, WeekStart: domain.WeekStartMonday, CreateTime: t}}, nil
			}
			status, body := request(http.MethodGet, namespace.ProjectsApiRoot, "")
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`[{"id":"123","orgId":"10","name":"test","isActive":true,"weekStart":"monday",
				"createTime":"2021-01-01T00:00:00Z"}]`))
		})

		It("should create a project", func() {
			var payload *domain.ProjectCreating
			projects.CreateProjectFunc = func(c *domain.ProjectCreating, s *session.Session) (*domain.Project, error) {
				payload = c
				return &domain.Project{ID: 123, OrgID: s.OrgID, Name: c.Name, IsActive: true, WeekStart: c.WeekStart,
					CreateTime: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)}, nil
			}
			status, body := request(http.MethodPost, namespace.ProjectsApiRoot, `{"name":"demo","weekStart":"sunday"}`)
			Expect(status).To(Equal(http.StatusCreated))
			Expect(body).To(MatchJSON(`{"id":"123","orgId":"10","name":"demo","isActive":true,"weekStart":"sunday",
				"createTime":"2021-01-01T00:00:00Z"}`))
			Expect(*payload).To(Equal(domain.ProjectCreating{Name: "demo", WeekStart: domain.WeekStartSunday}))
		})

		It("should validate the creation payload", func() {
			status, body := request(http.MethodPost, namespace.ProjectsApiRoot, `{}`)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body).To(MatchJSON(`{"code":"common.bad_param",
				"message":"Key: 'ProjectCreating.Name' Error:Field validation for 'Name' failed on the 'required' tag","data":null}`))
		})

		It("should update a project", func() {
			var id types.ID
			var payload *domain.ProjectUpdating
			projects.UpdateProjectFunc = func(i types.ID, u *domain.ProjectUpdating, s *session.Session) (*domain.Project, error) {
				id, payload = i, u
				return &domain.Project{ID: i, OrgID: 10, Name: "demo", IsActive: *u.IsActive, WeekStart: domain.WeekStartSunday}, nil
			}
			status, _ := request(http.MethodPatch, namespace.ProjectsApiRoot+"/123", `{"isActive":false}`)
			Expect(status).To(Equal(http.StatusOK))
			Expect(id).To(Equal(types.ID(123)))
			Expect(*payload.IsActive).To(BeFalse())
			Expect(payload.Name).To(BeNil())

			status, body := request(http.MethodPatch, namespace.ProjectsApiRoot+"/abc", `{"isActive":false}`)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body).To(MatchJSON(`{"code":"common.bad_param","message":"invalid id 'abc'","data":null}`))
		})
	})

	Describe("project members", func() {
		It("should query project members", func() {
			var query *domain.ProjectMemberQuery
			memberships.QueryProjectMembersFunc = func(q *domain.ProjectMemberQuery, s *session.Session) ([]domain.ProjectMemberDetail, error) {
				query = q
				return []domain.ProjectMemberDetail{}, nil
			}
			status, body := request(http.MethodGet, namespace.ProjectMembersApiRoot+"?projectId=100", "")
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`[]`))
			Expect(query.ProjectID).To(Equal(types.ID(100)))

			status, _ = request(http.MethodGet, namespace.ProjectMembersApiRoot, "")
			Expect(status).To(Equal(http.StatusBadRequest))
		})

		It("should toggle a membership", func() {
			var toggle *domain.MembershipToggle
			memberships.ToggleFunc = func(t *domain.MembershipToggle, s *session.Session) (*domain.MembershipState, error) {
				toggle = t
				return &domain.MembershipState{ProjectID: t.ProjectID, MemberID: t.MemberID, IsActive: t.Active, Changed: true}, nil
			}
			status, body := request(http.MethodPut, namespace.ProjectMembersApiRoot, `{"projectId":"100","memberId":"c1","active":true}`)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`{"projectId":"100","memberId":"c1","isActive":true,"changed":true}`))
			Expect(*toggle).To(Equal(domain.MembershipToggle{ProjectID: 100, MemberID: "c1", Active: true}))
		})

		It("should render invalid projects", func() {
			memberships.ToggleFunc = func(t *domain.MembershipToggle, s *session.Session) (*domain.MembershipState, error) {
				return nil, bizerror.ErrInvalidProject
			}
			status, body := request(http.MethodPut, namespace.ProjectMembersApiRoot, `{"projectId":"100","memberId":"c1","active":true}`)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body).To(MatchJSON(`{"code":"membership.invalid_project","message":"project not found in this organization","data":null}`))
		})

		It("should bulk invite", func() {
			var payload *namespace.BulkInviteRequest
			memberships.BulkInviteFunc = func(r *namespace.BulkInviteRequest, s *session.Session) (*namespace.BulkInviteResult, error) {
				payload = r
				return &namespace.BulkInviteResult{Member: domain.Member{ID: "n1", OrgID: 10, Role: domain.RoleContractor},
					ProjectIDs: r.ProjectIDs}, nil
			}
			status, body := request(http.MethodPost, namespace.InvitationsApiRoot,
				`{"email":"n@example.com","fullName":"Nina","projectIds":["100","200"]}`)
			Expect(status).To(Equal(http.StatusCreated))
			Expect(body).To(ContainSubstring(`"projectIds":["100","200"]`))
			Expect(payload.Email).To(Equal("n@example.com"))
			Expect(payload.FullName).To(Equal("Nina"))
			Expect(payload.ProjectIDs).To(Equal([]types.ID{100, 200}))
		})

		It("should render upstream failures of bulk invites", func() {
			memberships.BulkInviteFunc = func(r *namespace.BulkInviteRequest, s *session.Session) (*namespace.BulkInviteResult, error) {
				return nil, bizerror.Upstream("identity provider", errors.New("timeout"))
			}
			status, _ := request(http.MethodPost, namespace.InvitationsApiRoot, `{"email":"n@example.com"}`)
			Expect(status).To(Equal(http.StatusBadGateway))
		})
	})
})
