package namespace

import (
	"net/http"
	"roster/common"
	"roster/domain"
	"roster/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	ProjectMembersApiRoot = "/v1/project-members"
	InvitationsApiRoot    = "/v1/invitations"
)

type membershipHandler struct {
	manager MembershipManagerTraits
}

func RegisterProjectMembersRestApis(r *gin.Engine, m MembershipManagerTraits, middleWares ...gin.HandlerFunc) {
	handler := &membershipHandler{manager: m}

	g := r.Group(ProjectMembersApiRoot, middleWares...)
	g.GET("", handler.handleQueryProjectMembers)
	g.PUT("", handler.handleToggle)

	r.POST(InvitationsApiRoot, append(middleWares, handler.handleBulkInvite)...)
}

func (h *membershipHandler) handleQueryProjectMembers(c *gin.Context) {
	query := domain.ProjectMemberQuery{}
	if err := c.ShouldBindQuery(&query); err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	details, err := h.manager.QueryProjectMembers(&query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, details)
}

func (h *membershipHandler) handleToggle(c *gin.Context) {
	toggle := domain.MembershipToggle{}
	if err := c.ShouldBindBodyWith(&toggle, binding.JSON); err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	state, err := h.manager.Toggle(&toggle, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, state)
}

func (h *membershipHandler) handleBulkInvite(c *gin.Context) {
	request := BulkInviteRequest{}
	if err := c.ShouldBindBodyWith(&request, binding.JSON); err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	result, err := h.manager.BulkInvite(&request, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, result)
}
