package webrtc

import (
	"fmt"

	"github.com/pion/logging"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/logger"
)

// loggerFactory routes pion's internal logging through the module logger.
// Trace output is dropped.
type loggerFactory struct{}

func (loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return pionLogger{module: logger.Module("WebRTC/" + scope)}
}

type pionLogger struct {
	module logger.Module
}

func (pionLogger) Trace(string)                  {}
func (pionLogger) Tracef(string, ...interface{}) {}

func (l pionLogger) Debug(msg string) { l.module.Debug("%s", msg) }
func (l pionLogger) Debugf(format string, args ...interface{}) {
	// ICE and SCTP debug output is chatty; skip formatting it when unused.
	if !logger.Enabled(logger.DEBUG) {
		return
	}
	l.module.Debug("%s", fmt.Sprintf(format, args...))
}

func (l pionLogger) Info(msg string) { l.module.Info("%s", msg) }
func (l pionLogger) Infof(format string, args ...interface{}) {
	l.module.Info("%s", fmt.Sprintf(format, args...))
}

func (l pionLogger) Warn(msg string) { l.module.Warn("%s", msg) }
func (l pionLogger) Warnf(format string, args ...interface{}) {
	l.module.Warn("%s", fmt.Sprintf(format, args...))
}

func (l pionLogger) Error(msg string) { l.module.Error("%s", msg) }
func (l pionLogger) Errorf(format string, args ...interface{}) {
	l.module.Error("%s", fmt.Sprintf(format, args...))
}
