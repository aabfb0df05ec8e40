package servehttp

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const DefaultAddr = ":8080"

// ShutdownTimeout bounds the graceful shutdown of in-flight requests.
var ShutdownTimeout = 3 * time.Second

func ListenAddr() string {
	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		return addr
	}
	return DefaultAddr
}

// StartHTTPServer serves engine until SIGINT or SIGTERM is received.
func StartHTTPServer(engine *gin.Engine) {
	srv := &http.Server{
		Addr:    ListenAddr(),
		Handler: engine,
	}

	go func() {
		logrus.Infof("http server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// will call os.Exit(1)
			logrus.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	// kill (no param) default send syscall.SIGTERM
	// kill -2 send syscall.SIGINT
	// kill -9 send syscall.SIGKILL, can't be caught
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Infof("[QUIT] shutdown signal has been received, the service will exit in %v", ShutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	// graceful shutdown http.Server
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Fatalf("[QUIT] http server shutdown failed: %v", err)
	}
	logrus.Info("[QUIT] http server is shutdown gracefully, new request will be rejected.")
}
