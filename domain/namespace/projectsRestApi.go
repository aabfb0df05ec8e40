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
	ProjectsApiRoot = "/v1/projects"
)

type projectHandler struct {
	manager ProjectManagerTraits
}

func RegisterProjectsRestApis(r *gin.Engine, m ProjectManagerTraits, middleWares ...gin.HandlerFunc) {
	handler := &projectHandler{manager: m}

	projects := r.Group(ProjectsApiRoot, middleWares...)
	projects.GET("", handler.handleQueryProjects)
	projects.POST("", handler.handleCreateProject)
	projects.PATCH(":id", handler.handleUpdateProject)
}

func (h *projectHandler) handleQueryProjects(c *gin.Context) {
	result, err := h.manager.QueryProjects(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}

func (h *projectHandler) handleCreateProject(c *gin.Context) {
	payload := domain.ProjectCreating{}
	if err := c.ShouldBindBodyWith(&payload, binding.JSON); err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	result, err := h.manager.CreateProject(&payload, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, result)
}

func (h *projectHandler) handleUpdateProject(c *gin.Context) {
	id, err := common.BindingPathID(c)
	if err != nil {
		panic(err)
	}

	payload := domain.ProjectUpdating{}
	if err := c.ShouldBindBodyWith(&payload, binding.JSON); err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	result, err := h.manager.UpdateProject(id, &payload, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}
