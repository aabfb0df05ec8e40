package indices

import (
	"net/http"
	"roster/session"

	"github.com/gin-gonic/gin"
)

var (
	PathIndexRequests = "/v1/index-requests"
)

func RegisterIndicesRestAPI(r *gin.Engine, lister MemberLister, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathIndexRequests, middleWares...)
	g.POST("", func(c *gin.Context) {
		result, err := ScheduleNewSyncRunFunc(session.ExtractSessionFromGinContext(c), lister)
		if err != nil {
			panic(err)
		}
		status := http.StatusOK
		if result == SyncStarted {
			status = http.StatusCreated
		}
		c.JSON(status, gin.H{"result": result})
	})
}
