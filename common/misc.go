package common

import (
	"fmt"
	"os"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

const DefaultServiceName = "roster"

func GetServiceName() string {
	if name := os.Getenv("SERVICE_NAME"); name != "" {
		return name
	}
	return DefaultServiceName
}

func GetServiceInstance() string {
	if instance := os.Getenv("SERVICE_INSTANCE"); instance != "" {
		return instance
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

func StringPtr(s string) *string {
	return &s
}

// DerefString returns "" for nil.
func DerefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// BindingPathID parses the ":id" path parameter.
func BindingPathID(c *gin.Context) (types.ID, error) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		return 0, &ErrBadParam{Cause: fmt.Errorf("invalid id '%s'", c.Param("id"))}
	}
	return id, nil
}
