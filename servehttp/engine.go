package servehttp

import (
	"net/http"
	"roster/bizerror"
	"roster/client/idp"
	"roster/common"
	"roster/directory"
	"roster/domain/invitation"
	"roster/domain/namespace"
	"roster/domain/people"
	"roster/domain/snapshot"
	"roster/indices"
	"roster/infra/tracing"
	"roster/session"

	"github.com/gin-gonic/gin"
	"github.com/sony/sonyflake"
)

// Services are the managers behind the REST surface.
type Services struct {
	Store    directory.Store
	Provider idp.Provider

	Invitations invitation.InvitationManagerTraits
	Projects    namespace.ProjectManagerTraits
	Memberships namespace.MembershipManagerTraits
	People      people.PeopleManagerTraits
	Snapshots   snapshot.SnapshotManagerTraits
}

func NewServices(store directory.Store, provider idp.Provider, paging invitation.Paging, idWorker *sonyflake.Sonyflake) *Services {
	invitations := invitation.NewInvitationManager(store, provider, paging)
	return &Services{
		Store:       store,
		Provider:    provider,
		Invitations: invitations,
		Projects:    namespace.NewProjectManager(store, idWorker),
		Memberships: namespace.NewMembershipManager(store, invitations),
		People:      people.NewPeopleManager(store, invitations),
		Snapshots:   snapshot.NewSnapshotManager(store, invitations),
	}
}

// BuildEngine registers every REST api behind the bearer authentication filter.
func BuildEngine(s *Services) *gin.Engine {
	engine := gin.Default()
	engine.Use(tracing.TracingIngress())
	engine.Use(bizerror.ErrorHandling())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, common.GetServiceName())
	})

	auth := session.BearerAuthFilter(s.Provider, s.Store)
	session.RegisterSessionRestApis(engine, auth)
	people.RegisterPeopleRestApis(engine, s.People, auth)
	invitation.RegisterInvitationsRestAPI(engine, s.Invitations, auth)
	namespace.RegisterProjectsRestApis(engine, s.Projects, auth)
	namespace.RegisterProjectMembersRestApis(engine, s.Memberships, auth)
	snapshot.RegisterSnapshotRestAPI(engine, s.Snapshots, auth)
	indices.RegisterIndicesRestAPI(engine, s.Store, auth)
	return engine
}
