// Package manual implements the "manual" pseudo-adapter (spec glossary:
// "manual_<timestamp>"): it turns a user's pasted problem text or raw
// HTML into a normalized ProblemData without talking to any remote
// judge. It only ever declares FetchProblem.
package manual

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/inkotake/ojoagent/internal/adapter"
	"github.com/inkotake/ojoagent/internal/artifact"
	"github.com/inkotake/ojoagent/internal/models"
)

// Name is this adapter's registry key.
const Name = "manual"

// tempPrefix marks an origin id as "raw paste staged but not yet
// formatted into problem_data.json" (spec glossary's "manual_temp_xxx",
// with the leading "manual_" already stripped by the time it reaches
// this adapter's methods).
const tempPrefix = "temp_"

const tempStageDir = ".manual_temp"

// Adapter is the manual-paste pseudo-adapter.
type Adapter struct {
	workspaceRoot string
	initialized   bool
}

// New builds a manual Adapter rooted at workspaceRoot (spec §4.5:
// OJO_WORKSPACE → /app/workspace → ./workspace).
func New(workspaceRoot string) *Adapter {
	return &Adapter{workspaceRoot: workspaceRoot}
}

func (a *Adapter) Name() string        { return Name }
func (a *Adapter) DisplayName() string { return "Manual Paste" }
func (a *Adapter) Priority() int       { return adapter.DefaultPriority }

func (a *Adapter) Capabilities() []adapter.Capability {
	return []adapter.Capability{adapter.CapFetchProblem}
}

func (a *Adapter) Initialize(adapter.InitContext) bool {
	a.initialized = true
	return true
}

func (a *Adapter) HealthCheck() adapter.HealthStatus {
	status := adapter.HealthUninitialized
	if a.initialized {
		status = adapter.HealthReady
	}
	return adapter.HealthStatus{
		Healthy: a.initialized,
		Status:  status,
		Message: "manual paste adapter has no remote dependency",
	}
}

func (a *Adapter) Shutdown() {}

// SupportsURL matches the "manual://" pseudo-scheme only.
func (a *Adapter) SupportsURL(url string) bool {
	return strings.HasPrefix(url, "manual://")
}

// ParseProblemID strips the "manual://" prefix, returning the origin id.
func (a *Adapter) ParseProblemID(input string) string {
	id, ok := strings.CutPrefix(input, "manual://")
	if !ok || id == "" {
		return ""
	}
	return id
}

// FetchProblem reads the already-formatted problem_data.json for a saved
// paste, or — if id names a staged-but-unformatted paste (tempPrefix) —
// formats the staged raw text/HTML first and persists the result.
func (a *Adapter) FetchProblem(ctx context.Context, id string) (*models.ProblemData, error) {
	userID, ok := adapter.UserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("manual: FetchProblem requires a user id in context")
	}

	canonicalID := Name + "_" + id
	dir := artifact.Dir(a.workspaceRoot, userID, canonicalID)
	m, err := artifact.New(dir)
	if err != nil {
		return nil, fmt.Errorf("manual: open workspace: %w", err)
	}

	data, ok, err := m.Load()
	if err != nil {
		return nil, fmt.Errorf("manual: load problem data: %w", err)
	}
	if ok {
		return data, nil
	}
	if strings.HasPrefix(id, tempPrefix) {
		return a.formatAndSave(m, userID, id)
	}
	if !ok {
		return nil, fmt.Errorf("manual: no pasted statement saved for %q", canonicalID)
	}
	return data, nil
}

func (a *Adapter) formatAndSave(m *artifact.Manager, userID int64, tempID string) (*models.ProblemData, error) {
	raw, err := a.readStagedPaste(userID, tempID)
	if err != nil {
		return nil, err
	}

	data, err := formatPastedText(raw)
	if err != nil {
		return nil, fmt.Errorf("manual: format pasted text: %w", err)
	}
	data.Source = Name
	data.ID = tempID
	data.URL = "manual://" + tempID

	if err := m.Save(data); err != nil {
		return nil, fmt.Errorf("manual: save formatted problem data: %w", err)
	}
	_ = os.Remove(a.stagedPastePath(userID, tempID))

	return data, nil
}

// StageRawPaste writes a user's pasted text or HTML to the staging area
// and returns a "temp_<unix millis>" origin id for it. Callers
// (the task-creation endpoint) use problemid.Canonicalize("manual",
// thisID) to get the canonical problem id for the new task.
func (a *Adapter) StageRawPaste(userID int64, raw string, now time.Time) (string, error) {
	id := fmt.Sprintf("%s%d", tempPrefix, now.UnixMilli())
	dir := filepath.Join(artifact.UserDir(a.workspaceRoot, userID), tempStageDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("manual: create staging dir: %w", err)
	}
	path := filepath.Join(dir, id+".txt")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		return "", fmt.Errorf("manual: write staged paste: %w", err)
	}
	return id, nil
}

func (a *Adapter) readStagedPaste(userID int64, tempID string) (string, error) {
	data, err := os.ReadFile(a.stagedPastePath(userID, tempID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("manual: staged paste %q not found", tempID)
		}
		return "", fmt.Errorf("manual: read staged paste: %w", err)
	}
	return string(data), nil
}

func (a *Adapter) stagedPastePath(userID int64, tempID string) string {
	return filepath.Join(artifact.UserDir(a.workspaceRoot, userID), tempStageDir, tempID+".txt")
}

// formatPastedText turns raw pasted content into a ProblemData. If raw
// looks like an HTML document (a pasted judge page's view-source), it is
// run through go-readability to strip navigation/scripts/ads down to the
// article body and title; otherwise the first line becomes the title and
// the remaining lines, trimmed, the description. This replaces the LLM-formatting step the
// original implementation used here — that concern now belongs to the
// Gen stage's prompt layer, not the adapter.
func formatPastedText(raw string) (*models.ProblemData, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("pasted content is empty")
	}

	if looksLikeHTML(trimmed) {
		article, err := readability.FromReader(strings.NewReader(trimmed), nil)
		if err != nil {
			return nil, fmt.Errorf("extract readable content: %w", err)
		}
		title := article.Title
		if title == "" {
			title = "Pasted Problem"
		}
		return &models.ProblemData{
			Title:       title,
			Description: article.TextContent,
		}, nil
	}

	lines := strings.SplitN(trimmed, "\n", 2)
	title := strings.TrimSpace(lines[0])
	if title == "" {
		title = "Pasted Problem"
	}
	description := trimmed
	if len(lines) == 2 {
		description = strings.TrimSpace(lines[1])
	}
	return &models.ProblemData{
		Title:       title,
		Description: description,
	}, nil
}

func looksLikeHTML(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "<html") || strings.Contains(lower, "<body") || strings.Contains(lower, "<div")
}
