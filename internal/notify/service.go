package notify

import (
	"context"
	"log/slog"
	"time"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token        string
	Channel      string
	DashboardURL string
}

// TaskStartedInput is the data a task-start notification needs.
type TaskStartedInput struct {
	TaskID    int64
	ProblemID string
}

// TaskCompletedInput is the data a terminal-task notification needs.
type TaskCompletedInput struct {
	TaskID       int64
	ProblemID    string
	Status       string // completed, failed, cancelled
	OKFetch      bool
	OKGen        bool
	OKUpload     bool
	OKSolve      bool
	UploadedURL  string
	ErrorMessage string
}

// Service delivers Slack notifications for task lifecycle events. Nil-safe:
// every method is a no-op when the Service itself is nil, so callers can
// wire it unconditionally and skip a separate "Slack enabled" check.
type Service struct {
	client       *Client
	dashboardURL string
	logger       *slog.Logger
}

// NewService builds a Service, or returns nil if Token or Channel is empty
// (Slack notifications are an optional deployment feature, not required
// for the Task Service to function).
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client:       NewClient(cfg.Token, cfg.Channel),
		dashboardURL: cfg.DashboardURL,
		logger:       slog.Default().With("component", "notify"),
	}
}

// NotifyTaskStarted posts a "processing started" message. Fail-open: a
// post error is logged, never returned.
func (s *Service) NotifyTaskStarted(ctx context.Context, input TaskStartedInput) {
	if s == nil {
		return
	}
	blocks := BuildStartedMessage(input.TaskID, input.ProblemID, s.dashboardURL)
	if _, err := s.client.PostMessage(ctx, blocks, "", 5*time.Second); err != nil {
		s.logger.Warn("failed to send task-started notification", "task_id", input.TaskID, "error", err)
	}
}

// NotifyTaskCompleted posts a terminal-status message. Fail-open: a post
// error is logged, never returned.
func (s *Service) NotifyTaskCompleted(ctx context.Context, input TaskCompletedInput) {
	if s == nil {
		return
	}
	blocks := BuildTerminalMessage(input, s.dashboardURL)
	if _, err := s.client.PostMessage(ctx, blocks, "", 10*time.Second); err != nil {
		s.logger.Warn("failed to send task-completed notification", "task_id", input.TaskID, "status", input.Status, "error", err)
	}
}
