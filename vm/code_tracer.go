package vm

import (
	"github.com/tliron/commonlog"
)

// TraceSink receives optional code tracing output, one line per call.
type TraceSink interface {
	Tracef(format string, args ...any)
}

type discardTraceSink struct{}

func (discardTraceSink) Tracef(string, ...any) {}

// LogTraceSink writes trace lines to a commonlog logger at info level.
type LogTraceSink struct {
	Log commonlog.Logger
}

// NewLogTraceSink creates a sink writing to the "fninfo.trace" logger.
func NewLogTraceSink() *LogTraceSink {
	return &LogTraceSink{Log: commonlog.GetLogger("fninfo.trace")}
}

// Tracef implements TraceSink.
func (s *LogTraceSink) Tracef(format string, args ...any) {
	s.Log.Infof(format, args...)
}

var (
	log  = commonlog.GetLogger("fninfo.vm")
	flog = commonlog.GetLogger("fninfo.flusher")
)
