// Package activitylog writes the crew's activity stream as zstd-compressed
// JSONL files with hourly rotation. The files are the durable record behind
// the fire-and-forget dashboard events.
package activitylog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"botcrew.ai/internal/bot"
)

type jsonlZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func newJSONLZstdWriter(baseDir, prefix string) *jsonlZstdWriter {
	return &jsonlZstdWriter{baseDir: baseDir, prefix: prefix}
}

func (w *jsonlZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *jsonlZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *jsonlZstdWriter) closeLocked() error {
	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err
}

func (w *jsonlZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *jsonlZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// Entry is one activity record.
type Entry struct {
	TS    time.Time      `json:"ts"`
	Kind  string         `json:"kind"` // "status", "log", "plan", "job"
	Bot   *bot.BotStatus `json:"bot,omitempty"`
	Level string         `json:"level,omitempty"`
	Text  string         `json:"text,omitempty"`

	GoalID string `json:"goal_id,omitempty"`
	JobID  string `json:"job_id,omitempty"`
	Event  string `json:"event,omitempty"`
	Worker string `json:"worker,omitempty"`
}

// Logger records bot and plan activity. It implements bot.StatusSink and
// plan.Recorder; write errors are swallowed because the activity log must
// never take a worker down.
type Logger struct {
	w *jsonlZstdWriter
}

func New(dataDir string) *Logger {
	return &Logger{w: newJSONLZstdWriter(filepath.Join(dataDir, "activity"), "activity")}
}

func (l *Logger) Close() error { return l.w.Close() }

func (l *Logger) BotChanged(s bot.BotStatus) {
	_ = l.w.Write(Entry{TS: time.Now().UTC(), Kind: "status", Bot: &s})
}

func (l *Logger) BotLog(name, level, message string) {
	_ = l.w.Write(Entry{TS: time.Now().UTC(), Kind: "log", Worker: name, Level: level, Text: message})
}

func (l *Logger) PlanCreated(goalID, item string, quantity, jobs int) {
	_ = l.w.Write(Entry{
		TS:     time.Now().UTC(),
		Kind:   "plan",
		GoalID: goalID,
		Text:   fmt.Sprintf("%s x%d, %d jobs", item, quantity, jobs),
	})
}

func (l *Logger) JobEvent(goalID, jobID, event, worker, detail string) {
	_ = l.w.Write(Entry{
		TS:     time.Now().UTC(),
		Kind:   "job",
		GoalID: goalID,
		JobID:  jobID,
		Event:  event,
		Worker: worker,
		Text:   detail,
	})
}
