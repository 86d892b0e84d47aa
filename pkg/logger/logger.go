package logger

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/cricket-features/internal/cricket"
)

// ServiceName tags every line written by the project's binaries
const ServiceName = "cricket-features"

var Logger *logrus.Logger

// InitLogger configures the process logger for one binary. Every entry carries
// the service and binary names. Production and LOG_FORMAT=json write JSON.
func InitLogger(binary, logLevel string, isDevelopment bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetLevel(resolveLevel(log, logLevel, isDevelopment))

	if !isDevelopment || strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	log.AddHook(defaultFields{"service": ServiceName, "binary": binary})

	Logger = log
	return log
}

func resolveLevel(log *logrus.Logger, logLevel string, isDevelopment bool) logrus.Level {
	if logLevel == "" {
		if isDevelopment {
			return logrus.DebugLevel
		}
		return logrus.InfoLevel
	}
	level, err := logrus.ParseLevel(strings.ToLower(logLevel))
	if err != nil {
		log.WithField("invalid_level", logLevel).Warn("Invalid LOG_LEVEL, using INFO")
		return logrus.InfoLevel
	}
	return level
}

// defaultFields fills in fields an entry does not already set
type defaultFields logrus.Fields

func (h defaultFields) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h defaultFields) Fire(entry *logrus.Entry) error {
	for k, v := range h {
		if _, ok := entry.Data[k]; !ok {
			entry.Data[k] = v
		}
	}
	return nil
}

// GetLogger returns the process logger, creating a bare one if no binary set it up
func GetLogger() *logrus.Logger {
	if Logger == nil {
		return InitLogger("", "info", false)
	}
	return Logger
}

// WithRunContext tags log lines with a pipeline run and the format family it is
// processing; an empty family tags the run only
func WithRunContext(runID uuid.UUID, family cricket.Family) *logrus.Entry {
	fields := logrus.Fields{"run_id": runID.String()}
	if family != "" {
		fields["format"] = string(family)
	}
	return GetLogger().WithFields(fields)
}
