package asock

import (
	"fmt"

	"go.uber.org/zap"
)

type zapDebugger struct {
	logger         *zap.Logger
	context        string
	dynamicContext func() string
}

// NewZapDebugger routes debug output to logger at debug level.
// Extra values are attached as fields named arg0, arg1...
func NewZapDebugger(logger *zap.Logger) Debugger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &zapDebugger{logger: logger}
}

func (d *zapDebugger) Log(main string, v ...any) {
	fields := make([]zap.Field, 0, len(v)+2)
	if d.context != "" {
		fields = append(fields, zap.String("context", d.context))
	}
	if d.dynamicContext != nil {
		fields = append(fields, zap.String("conn", d.dynamicContext()))
	}
	for i, value := range v {
		key := fmt.Sprintf("arg%d", i)
		if err, ok := value.(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, value))
	}
	d.logger.Debug(main, fields...)
}

func (d zapDebugger) WithContext(context string) Debugger {
	d.context = context
	return &d
}

func (d zapDebugger) WithDynamicContext(context string, dynamicContext func() string) Debugger {
	d.context = context
	d.dynamicContext = dynamicContext
	return &d
}
