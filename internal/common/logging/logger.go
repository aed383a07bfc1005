package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ============================================================
// Logger
// ============================================================

// Logger is shared by every component of a service process.
var Logger = logrus.New()

type appNameHook struct {
	appName string
}

func (h *appNameHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *appNameHook) Fire(entry *logrus.Entry) error {
	entry.Message = "[" + h.appName + "] " + entry.Message
	return nil
}

// Init configures Logger for a service: stdout, LOG_LEVEL (default info),
// full timestamps and the service name prefixed to every message.
func Init(appName, level string) {
	configure(Logger, os.Stdout, appName, level)
}

func configure(l *logrus.Logger, out io.Writer, appName, level string) {
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	l.ReplaceHooks(make(logrus.LevelHooks))
	l.AddHook(&appNameHook{appName})

	levelStr := strings.ToLower(level)
	if levelStr == "" {
		levelStr = "info"
	}
	parsed, err := logrus.ParseLevel(levelStr)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)
	if err != nil {
		l.Warnf("Invalid LOG_LEVEL '%s', defaulting to INFO", levelStr)
	}
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return Logger.WithField("component", name)
}

// Discard returns an entry that writes nowhere. Used as the default for
// components constructed without a logger.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
