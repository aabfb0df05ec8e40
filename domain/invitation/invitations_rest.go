package invitation

import (
	"net/http"
	"roster/common"
	"roster/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	PathInvitations     = "/v1/invitations"
	PathInvitationLinks = PathInvitations + "/links"
)

type invitationHandler struct {
	manager InvitationManagerTraits
}

func RegisterInvitationsRestAPI(r *gin.Engine, m InvitationManagerTraits, middleWares ...gin.HandlerFunc) {
	handler := &invitationHandler{manager: m}

	g := r.Group(PathInvitations, middleWares...)
	g.GET("", handler.handleList)
	g.POST("/links", handler.handleCreateLink)
	g.DELETE("/:id", handler.handleCancel)
}

func (h *invitationHandler) handleList(c *gin.Context) {
	views, err := h.manager.List(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, views)
}

func (h *invitationHandler) handleCreateLink(c *gin.Context) {
	creation := LinkCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	link, err := h.manager.CreateLink(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, link)
}

func (h *invitationHandler) handleCancel(c *gin.Context) {
	if err := h.manager.Cancel(c.Param("id"), session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}
