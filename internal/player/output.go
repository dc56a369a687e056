package player

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"

	"noiseplayer/internal/logging"
)

// lineLogger forwards the player's stderr to the logger one line at a time.
type lineLogger struct {
	mu      sync.Mutex
	logger  *slog.Logger
	pending []byte
}

func newLineLogger(logger *slog.Logger) *lineLogger {
	return &lineLogger{logger: logger}
}

func (w *lineLogger) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, p...)
	for {
		idx := bytes.IndexByte(w.pending, '\n')
		if idx < 0 {
			break
		}
		w.emit(string(w.pending[:idx]))
		w.pending = w.pending[idx+1:]
	}
	return len(p), nil
}

func (w *lineLogger) emit(line string) {
	line = strings.TrimSpace(line)
	if line == "" || w.logger == nil {
		return
	}
	logging.WarnWithContext(w.logger, "player output", "player_output",
		logging.String("line", line),
		logging.String(logging.FieldErrorHint, "check the player binary and audio device"),
		logging.String(logging.FieldImpact, "playback may be degraded"),
	)
}
