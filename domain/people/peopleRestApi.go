package people

import (
	"net/http"
	"roster/common"
	"roster/domain"
	"roster/session"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	PeopleApiRoot     = "/v1/people"
	AdminUsersApiRoot = "/v1/admin/users"
)

type peopleHandler struct {
	manager PeopleManagerTraits
}

func RegisterPeopleRestApis(r *gin.Engine, m PeopleManagerTraits, middleWares ...gin.HandlerFunc) {
	handler := &peopleHandler{manager: m}

	g := r.Group(PeopleApiRoot, middleWares...)
	g.GET("", handler.handleQueryMembers)
	g.PUT("", handler.handleSaveRows)
	g.PATCH(":id", handler.handleUpdateMember)

	r.GET(AdminUsersApiRoot, append(middleWares, handler.handleQueryAdminUsers)...)
}

func (h *peopleHandler) handleQueryMembers(c *gin.Context) {
	query := domain.MemberQuery{}
	if err := c.ShouldBindQuery(&query); err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	rows, err := h.manager.QueryMembers(&query, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, rows)
}

func (h *peopleHandler) handleUpdateMember(c *gin.Context) {
	updating := domain.MemberUpdating{}
	if err := c.ShouldBindBodyWith(&updating, binding.JSON); err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	row, err := h.manager.UpdateMember(c.Param("id"), &updating, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, row)
}

func (h *peopleHandler) handleSaveRows(c *gin.Context) {
	var rows []RowSaving
	if err := c.ShouldBindBodyWith(&rows, binding.JSON); err != nil {
		panic(&common.ErrBadParam{Cause: err})
	}
	result, err := h.manager.SaveRows(rows, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}

func (h *peopleHandler) handleQueryAdminUsers(c *gin.Context) {
	users, err := h.manager.QueryAdminUsers(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, users)
}
