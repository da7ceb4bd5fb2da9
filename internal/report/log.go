package report

import (
	"go.uber.org/zap"
)

// LogReporter writes progress events through a zap logger.
type LogReporter struct {
	logger *zap.Logger
}

// NewLogReporter creates a LogReporter.
func NewLogReporter(logger *zap.Logger) *LogReporter {
	return &LogReporter{logger: logger.Named("progress")}
}

// Report implements Reporter.
func (l *LogReporter) Report(e Event) {
	switch ev := e.(type) {
	case Status:
		l.logger.Info(ev.Message)
	case Records:
		l.logger.Info("Records loaded", zap.Int("count", len(ev.IDs)), zap.Strings("ids", ev.IDs))
	case RecordStart:
		l.logger.Info("Processing record", zap.String("record", ev.ID), zap.Int("index", ev.Index))
	case RecordEnd:
		l.logger.Info("Record finished",
			zap.String("record", ev.ID),
			zap.Int("index", ev.Index),
			zap.Stringer("outcome", ev.Outcome),
		)
	case Counts:
		l.logger.Debug("Counts", zap.Int("succeeded", ev.Succeeded), zap.Int("failed", ev.Failed))
	}
}
