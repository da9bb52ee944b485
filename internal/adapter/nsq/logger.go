package nsq

import (
	"context"
	"log/slog"
	"strings"

	gonsq "github.com/nsqio/go-nsq"
)

// slogOutput routes go-nsq's line logger into slog. go-nsq prefixes every
// line with a three letter level.
type slogOutput struct {
	logger *slog.Logger
}

func (o slogOutput) Output(_ int, s string) error {
	level := slog.LevelInfo
	msg := s
	if len(s) >= 3 {
		switch s[:3] {
		case "DBG":
			level = slog.LevelDebug
		case "WRN":
			level = slog.LevelWarn
		case "ERR":
			level = slog.LevelError
		}
		msg = strings.TrimSpace(s[3:])
	}
	o.logger.Log(context.Background(), level, msg, "component", "nsq")
	return nil
}

// logLevel maps the process log level onto go-nsq's, so the client is no
// chattier than the rest of the service.
func logLevel(l slog.Level) gonsq.LogLevel {
	switch {
	case l <= slog.LevelDebug:
		return gonsq.LogLevelDebug
	case l <= slog.LevelInfo:
		return gonsq.LogLevelInfo
	case l <= slog.LevelWarn:
		return gonsq.LogLevelWarning
	default:
		return gonsq.LogLevelError
	}
}
