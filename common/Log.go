package common

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

func init() {
	ConfigureLogger(logrus.StandardLogger())
}

// ConfigureLogger LOG_LEVEL, LOG_FORMAT=json|text
func ConfigureLogger(logger *logrus.Logger) {
	logger.Out = os.Stdout
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		logger.Formatter = &logrus.JSONFormatter{}
	} else {
		logger.Formatter = &logrus.TextFormatter{}
	}
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}
	logger.ReplaceHooks(logrus.LevelHooks{})
	logger.AddHook(&DefaultFieldsHook{})
}

type DefaultFieldsHook struct {
}

func (hook *DefaultFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook *DefaultFieldsHook) Fire(e *logrus.Entry) error {
	e.Data["serviceName"] = GetServiceName()
	e.Data["serviceInstance"] = GetServiceInstance()
	return nil
}
