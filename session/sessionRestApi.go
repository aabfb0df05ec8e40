package session

import (
	"net/http"
	"roster/bizerror"

	"github.com/gin-gonic/gin"
)

func RegisterSessionRestApis(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/session", middleWares...)
	g.GET("", handleDetailSession)
	g.DELETE("", handleEvictSession)
}

func handleDetailSession(c *gin.Context) {
	s := ExtractSessionFromGinContext(c)
	if s.Token == "" {
		panic(bizerror.ErrUnauthenticated)
	}
	c.JSON(http.StatusOK, s)
}

// handleEvictSession drops the cached session so the next request is resolved again.
func handleEvictSession(c *gin.Context) {
	s := ExtractSessionFromGinContext(c)
	if s.Token == "" {
		panic(bizerror.ErrUnauthenticated)
	}
	TokenCache.Delete(s.Token)
	c.Status(http.StatusNoContent)
}
