package bus

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/inkotake/ojoagent/internal/models"
)

// Batching thresholds (spec §4.8).
const (
	MaxBatchLines  = 20
	BatchTimer     = 200 * time.Millisecond
	FileFlushLines = 50
	FileFlushTimer = time.Second
)

// criticalMarkers are substrings that force an immediate flush regardless of
// batch size or timer state: stage markers, success/failure glyphs,
// upload/solve tags, and terminal-condition phrases (spec §4.8).
var criticalMarkers = []string{
	"[fetch]", "[gen]", "[upload]", "[solve]",
	"✓", "✗",
	"retry exceeded",
	"cancelled",
}

func isCriticalLine(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range criticalMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// LogBatcher buffers a single (task, problem)'s log lines and emits them to
// the Event Bus as a task.progress event whenever a critical line arrives, a
// batch of MaxBatchLines accumulates, or BatchTimer elapses — whichever
// fires first. It separately buffers the same lines for a file writer,
// flushed on FileFlushLines/FileFlushTimer. Both buffers are force-flushed
// on Close (spec §4.8: "on task termination, both buffers are force-flushed").
type LogBatcher struct {
	bus       *Bus
	taskID    int64
	problemID string
	stage     models.Stage
	fileFlush func(lines []string) // e.g. append to pipeline.log

	mu         sync.Mutex
	busBuf     []string
	fileBuf    []string
	busTimer   *time.Timer
	fileTimer  *time.Timer
	closed     bool
}

// NewLogBatcher builds a batcher for one task's log stream. fileFlush is
// invoked with the accumulated file-buffer lines whenever it's flushed,
// after the batcher's lock has been released.
func NewLogBatcher(b *Bus, taskID int64, problemID string, fileFlush func(lines []string)) *LogBatcher {
	lb := &LogBatcher{
		bus:       b,
		taskID:    taskID,
		problemID: problemID,
		stage:     models.StagePending,
		fileFlush: fileFlush,
	}
	return lb
}

// SetStage updates the stage tag attached to subsequently emitted events.
func (lb *LogBatcher) SetStage(stage models.Stage) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.stage = stage
}

// Write appends one log line, applying the flush rules described above.
func (lb *LogBatcher) Write(ctx context.Context, line string) {
	lb.mu.Lock()
	if lb.closed {
		lb.mu.Unlock()
		return
	}

	lb.busBuf = append(lb.busBuf, line)
	lb.fileBuf = append(lb.fileBuf, line)

	critical := isCriticalLine(line)
	flushBus := critical || len(lb.busBuf) >= MaxBatchLines
	flushFile := len(lb.fileBuf) >= FileFlushLines

	if flushBus {
		lb.stopBusTimerLocked()
	} else if lb.busTimer == nil {
		lb.busTimer = time.AfterFunc(BatchTimer, func() { lb.flushBusTimerFired(ctx) })
	}

	if flushFile {
		lb.stopFileTimerLocked()
	} else if lb.fileTimer == nil {
		lb.fileTimer = time.AfterFunc(FileFlushTimer, lb.flushFileTimerFired)
	}

	var busLines, fileLines []string
	if flushBus {
		busLines = lb.busBuf
		lb.busBuf = nil
	}
	if flushFile {
		fileLines = lb.fileBuf
		lb.fileBuf = nil
	}
	lb.mu.Unlock()

	if busLines != nil {
		lb.emit(ctx, busLines)
	}
	if fileLines != nil && lb.fileFlush != nil {
		lb.fileFlush(fileLines)
	}
}

func (lb *LogBatcher) flushBusTimerFired(ctx context.Context) {
	lb.mu.Lock()
	lb.busTimer = nil
	lines := lb.busBuf
	lb.busBuf = nil
	lb.mu.Unlock()

	if len(lines) > 0 {
		lb.emit(ctx, lines)
	}
}

func (lb *LogBatcher) flushFileTimerFired() {
	lb.mu.Lock()
	lb.fileTimer = nil
	lines := lb.fileBuf
	lb.fileBuf = nil
	lb.mu.Unlock()

	if len(lines) > 0 && lb.fileFlush != nil {
		lb.fileFlush(lines)
	}
}

func (lb *LogBatcher) stopBusTimerLocked() {
	if lb.busTimer != nil {
		lb.busTimer.Stop()
		lb.busTimer = nil
	}
}

func (lb *LogBatcher) stopFileTimerLocked() {
	if lb.fileTimer != nil {
		lb.fileTimer.Stop()
		lb.fileTimer = nil
	}
}

func (lb *LogBatcher) emit(ctx context.Context, lines []string) {
	lb.bus.Publish(ctx, TopicTaskProgress, models.ProgressEvent{
		EventType: models.EventTaskProgress,
		TaskID:    lb.taskID,
		ProblemID: lb.problemID,
		Stage:     lb.stage,
		Logs:      lines,
		Timestamp: time.Now(),
	})
}

// Close force-flushes both buffers and stops accepting further writes,
// matching spec §4.8's termination guarantee.
func (lb *LogBatcher) Close(ctx context.Context) {
	lb.mu.Lock()
	if lb.closed {
		lb.mu.Unlock()
		return
	}
	lb.closed = true
	lb.stopBusTimerLocked()
	lb.stopFileTimerLocked()
	busLines := lb.busBuf
	fileLines := lb.fileBuf
	lb.busBuf = nil
	lb.fileBuf = nil
	lb.mu.Unlock()

	if len(busLines) > 0 {
		lb.emit(ctx, busLines)
	}
	if len(fileLines) > 0 && lb.fileFlush != nil {
		lb.fileFlush(fileLines)
	}
}
