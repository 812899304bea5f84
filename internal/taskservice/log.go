package taskservice

import (
	"fmt"
	"log/slog"
)

func warnf(format string, args ...any) {
	slog.Warn(fmt.Sprintf(format, args...))
}
