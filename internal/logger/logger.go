package logger

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const entryKey = "logger"

// New builds the application logger. Release mode logs JSON at the configured
// level, every other mode logs text at debug level.
func New(output io.Writer, ginMode, level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(output)
	l.SetFormatter(new(logrus.JSONFormatter))

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)

	if ginMode != gin.ReleaseMode {
		l.SetLevel(logrus.DebugLevel)
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return l
}

// Attach stores a request-scoped entry on the gin context.
func Attach(c *gin.Context, entry *logrus.Entry) {
	c.Set(entryKey, entry)
}

// From returns the request-scoped entry tagged with component. Outside a
// request pipeline it falls back to the standard logger.
func From(c *gin.Context, component string) *logrus.Entry {
	if c != nil {
		if value, ok := c.Get(entryKey); ok {
			if entry, ok := value.(*logrus.Entry); ok {
				return entry.WithField("component", component)
			}
		}
	}
	return logrus.StandardLogger().WithField("component", component)
}
