package temporal

import (
	"fmt"

	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
)

// zapLogger routes Temporal SDK log lines into zap.
type zapLogger struct {
	logger *zap.Logger
}

var (
	_ log.Logger     = (*zapLogger)(nil)
	_ log.WithLogger = (*zapLogger)(nil)
)

// NewZapAdapter wraps logger for client.Options.Logger. The SDK tags its lines
// with a "component" field so they can be filtered from gateway output.
func NewZapAdapter(logger *zap.Logger) log.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &zapLogger{logger: logger.With(zap.String("component", "temporal-sdk"))}
}

func (z *zapLogger) Debug(msg string, keyvals ...interface{}) {
	z.logger.Debug(msg, fields(keyvals)...)
}

func (z *zapLogger) Info(msg string, keyvals ...interface{}) {
	z.logger.Info(msg, fields(keyvals)...)
}

func (z *zapLogger) Warn(msg string, keyvals ...interface{}) {
	z.logger.Warn(msg, fields(keyvals)...)
}

func (z *zapLogger) Error(msg string, keyvals ...interface{}) {
	z.logger.Error(msg, fields(keyvals)...)
}

func (z *zapLogger) With(keyvals ...interface{}) log.Logger {
	return &zapLogger{logger: z.logger.With(fields(keyvals)...)}
}

// fields converts SDK key/value pairs. A non-string key is stringified and a
// dangling value is kept under "extra".
func fields(keyvals []interface{}) []zap.Field {
	out := make([]zap.Field, 0, (len(keyvals)+1)/2)
	for i := 0; i < len(keyvals); i += 2 {
		if i+1 == len(keyvals) {
			out = append(out, zap.Any("extra", keyvals[i]))
			break
		}
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		if err, isErr := keyvals[i+1].(error); isErr {
			out = append(out, zap.NamedError(key, err))
			continue
		}
		out = append(out, zap.Any(key, keyvals[i+1]))
	}
	return out
}
