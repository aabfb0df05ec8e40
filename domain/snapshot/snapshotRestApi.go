package snapshot

import (
	"net/http"
	"roster/session"

	"github.com/gin-gonic/gin"
)

var (
	PathSnapshot = "/v1/snapshot"
)

func RegisterSnapshotRestAPI(r *gin.Engine, m SnapshotManagerTraits, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathSnapshot, middleWares...)
	g.GET("", func(c *gin.Context) {
		result, err := m.Snapshot(session.ExtractSessionFromGinContext(c))
		if err != nil {
			panic(err)
		}
		c.JSON(http.StatusOK, result)
	})
}
