package xmlrpc

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var debugLogger atomic.Pointer[zap.Logger]

func init() {
	debugLogger.Store(zap.NewNop())
}

// SetDebugLogger sets the logger that receives debug traces of how Go
// types get mapped to XML-RPC. A nil logger turns tracing off, which
// is the default.
//
// The traces are emitted once per Go type, the first time the type
// is marshaled, unmarshaled or inspected with [ShapeOf].
func SetDebugLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	debugLogger.Store(l.Named("xmlrpc"))
}

func debugLog() *zap.Logger {
	return debugLogger.Load()
}
