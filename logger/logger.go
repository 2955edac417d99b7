package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Stage names attached to failure logs so a run can be grepped by step.
const (
	StageFeedFetch = "feed_fetch"
	StageFeedParse = "feed_parse"
	StagePageFetch = "page_fetch"
	StagePageParse = "page_parse"
	StageImage     = "image_fetch"
	StageSummarize = "summarize"
	StageRender    = "render"
	StageDeliver   = "deliver"
	StageWeather   = "weather"
)

// ParseLevel maps a config string onto a slog level. Unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init installs the process-wide logger. Output goes to stderr and, when
// logFile is set, is appended to that file too. The returned closer releases
// the file and is safe to call when no file was opened.
func Init(level, logFile string) (func() error, error) {
	writers := []io.Writer{os.Stderr}
	closer := func() error { return nil }

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return closer, fmt.Errorf("opening log file: %w", err)
		}
		writers = append(writers, f)
		closer = f.Close
	}

	slog.SetDefault(New(io.MultiWriter(writers...), ParseLevel(level)))
	return closer, nil
}

// New builds a text logger writing to w with short timestamps.
func New(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String("time", a.Value.Time().Format("15:04:05"))
			}
			return a
		},
	})
	return slog.New(handler)
}
