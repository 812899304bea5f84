package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/inkotake/ojoagent/internal/artifact"
	"github.com/inkotake/ojoagent/internal/bus"
	"github.com/inkotake/ojoagent/internal/llmstream"
	"github.com/inkotake/ojoagent/internal/models"
)

// StageLogger fans a stage's progress lines out to the event bus and
// appends them to pipeline.log inside the workspace, keeping LLM "thinking"
// content on its own channel so it is never mixed into the user-visible
// log as anything else (spec §4.2.4, grounded on
// services/llm/stream_handler.py's on_chunk callback).
type StageLogger struct {
	bus         *bus.Bus
	taskID      int64
	problemID   string
	logFilePath string
}

func newStageLogger(b *bus.Bus, workspace *artifact.Manager, taskID int64, problemID string) *StageLogger {
	return &StageLogger{bus: b, taskID: taskID, problemID: problemID, logFilePath: filepath.Join(workspace.Dir(), PipelineLogFilename)}
}

// PipelineLogFilename is the append-only per-run log file inside every
// workspace (spec §3.1, §6.3).
const PipelineLogFilename = "pipeline.log"

// Log appends a formatted line to pipeline.log and publishes a
// task.progress event carrying it.
func (l *StageLogger) Log(ctx context.Context, stage models.Stage, format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	l.appendLine(line)
	l.bus.Publish(ctx, string(models.EventTaskProgress), models.ProgressEvent{
		EventType: models.EventTaskProgress,
		TaskID:    l.taskID,
		ProblemID: l.problemID,
		Stage:     stage,
		Logs:      []string{line},
		Timestamp: time.Now(),
	})
}

// Thinking appends a "[thinking] ..." line, distinct from Log's content
// channel (spec §4.2.4 "route reasoning/thinking content to a distinct
// log channel").
func (l *StageLogger) Thinking(ctx context.Context, stage models.Stage, text string) {
	l.appendLine("[thinking] " + text)
	l.bus.Publish(ctx, string(models.EventTaskProgress), models.ProgressEvent{
		EventType: models.EventTaskProgress,
		TaskID:    l.taskID,
		ProblemID: l.problemID,
		Stage:     stage,
		Extra:     map[string]any{"thinking": text},
		Timestamp: time.Now(),
	})
}

func (l *StageLogger) appendLine(line string) {
	f, err := os.OpenFile(l.logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintln(f, line)
}

// onChunk builds an llmstream.Chunk handler that routes thoughts to
// Thinking and stream errors to Log, for use as ChatRequest.OnChunk.
// Content chunks are not logged.
func (l *StageLogger) onChunk(ctx context.Context, stage models.Stage) func(llmstream.Chunk) {
	return func(c llmstream.Chunk) {
		switch c.Type {
		case llmstream.ChunkTypeThought:
			if c.Thought != "" {
				l.Thinking(ctx, stage, c.Thought)
			}
		case llmstream.ChunkTypeError:
			if c.Err != nil {
				l.Log(ctx, stage, "stream error: %v", c.Err)
			}
		}
	}
}
