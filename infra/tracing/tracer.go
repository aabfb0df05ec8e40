package tracing

import (
	"io"
	"os"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
	"github.com/uber/jaeger-client-go"
	"github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// InitTracerFromEnv installs a jaeger tracer configured by the JAEGER_* variables as the global tracer.
// Without JAEGER_SERVICE_NAME the global no-op tracer stays in place.
func InitTracerFromEnv() (io.Closer, error) {
	if os.Getenv("JAEGER_SERVICE_NAME") == "" {
		logrus.Info("JAEGER_SERVICE_NAME is not set, tracing disabled")
		return nopCloser{}, nil
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	tracer, closer, err := cfg.NewTracer(
		config.Logger(jaeger.StdLogger),
		config.Metrics(metrics.NullFactory),
	)
	if err != nil {
		return nil, err
	}
	opentracing.SetGlobalTracer(tracer)
	logrus.WithField("serviceName", cfg.ServiceName).Info("jaeger tracer initialized")
	return closer, nil
}
