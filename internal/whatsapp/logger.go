package whatsapp

import (
	"fmt"
	"log/slog"

	waLog "go.mau.fi/whatsmeow/util/log"
)

// slogAdapter routes whatsmeow's internal logging into the application
// logger so everything shares one JSON stream.
type slogAdapter struct {
	logger *slog.Logger
}

func newWALogger(logger *slog.Logger, module string) waLog.Logger {
	return &slogAdapter{logger: logger.With("module", module)}
}

func (l *slogAdapter) Warnf(msg string, args ...any)  { l.logger.Warn(fmt.Sprintf(msg, args...)) }
func (l *slogAdapter) Errorf(msg string, args ...any) { l.logger.Error(fmt.Sprintf(msg, args...)) }
func (l *slogAdapter) Infof(msg string, args ...any)  { l.logger.Info(fmt.Sprintf(msg, args...)) }
func (l *slogAdapter) Debugf(msg string, args ...any) { l.logger.Debug(fmt.Sprintf(msg, args...)) }

func (l *slogAdapter) Sub(module string) waLog.Logger {
	return &slogAdapter{logger: l.logger.With("module", module)}
}
