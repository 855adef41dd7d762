package logging

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"
)

// DispatcherLogger lets the command dispatcher log through zerolog.
type DispatcherLogger struct {
	logger zerolog.Logger
}

func NewDispatcherLogger(logger zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{logger: logger}
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(toFields(keysAndValues)).Msg(msg)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info().Fields(toFields(keysAndValues)).Msg(msg)
}

func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error().Fields(toFields(keysAndValues)).Msg(msg)
}

// toFields follows slog's argument rules: a key/value pair, or a slog.Attr on
// its own. Non-string keys are formatted and a dangling value is kept under
// !BADKEY.
func toFields(args []any) map[string]any {
	fields := make(map[string]any, len(args)/2)
	for len(args) > 0 {
		switch k := args[0].(type) {
		case slog.Attr:
			fields[k.Key] = k.Value.Any()
			args = args[1:]
			continue
		case string:
			if len(args) == 1 {
				fields["!BADKEY"] = k
				return fields
			}
			fields[k] = args[1]
		default:
			if len(args) == 1 {
				fields["!BADKEY"] = k
				return fields
			}
			fields[fmt.Sprint(k)] = args[1]
		}
		args = args[2:]
	}
	return fields
}
