package httpapi

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/inkotake/ojoagent/internal/artifact"
	"github.com/inkotake/ojoagent/internal/db"
	"github.com/inkotake/ojoagent/internal/models"
	"github.com/inkotake/ojoagent/internal/pipeline"
)

// healthHandler aggregates database connectivity into a single liveness
// probe (spec §6.1 health route isn't named explicitly, but every caller
// needs one; grounded on tarsy's pkg/api/handler_health.go shape).
func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := db.Health(ctx, s.dbClient.DB())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": dbHealth, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": dbHealth})
}

// createTasksRequest is the §6.1 "Create task batch" request body.
type createTasksRequest struct {
	ProblemIDs []string          `json:"problem_ids" binding:"required,min=1"`
	Config     models.TaskConfig `json:"config" binding:"required"`
}

// createTasksHandler allocates one row per problem id and dispatches the
// batch for execution in the background; it returns as soon as the rows
// exist rather than waiting for the pipeline to finish (spec §6.1 "Create
// task batch. Output: list of created task ids").
func (s *Server) createTasksHandler(c *gin.Context) {
	var req createTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := callerUserID(c)
	created := s.tasks.CreateTasks(c.Request.Context(), userID, req.ProblemIDs, req.Config)

	go s.tasks.ExecuteTasks(context.Background(), created, req.Config, userID)

	c.JSON(http.StatusAccepted, gin.H{"tasks": created})
}

// listTasksHandler implements §6.1 "List tasks" with server-side filtering.
func (s *Server) listTasksHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	filters := models.TaskFilters{
		Search:           c.Query("search"),
		Status:           c.Query("status"),
		SourceJudge:      c.Query("source_judge"),
		DestinationJudge: c.Query("destination_judge"),
		Limit:            limit,
	}

	tasks, err := s.tasks.GetUserTasks(c.Request.Context(), callerUserID(c), filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (s *Server) parseTaskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return 0, false
	}
	return id, true
}

// getTaskHandler implements §6.1 "Get task: by id + caller identity",
// returning 404 when ownership rules hide the row from this caller.
func (s *Server) getTaskHandler(c *gin.Context) {
	id, ok := s.parseTaskID(c)
	if !ok {
		return
	}
	task, err := s.tasks.GetTask(c.Request.Context(), id, callerUserID(c), callerIsAdmin(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, task)
}

// cancelTaskHandler implements §6.1 "Cancel task".
func (s *Server) cancelTaskHandler(c *gin.Context) {
	id, ok := s.parseTaskID(c)
	if !ok {
		return
	}
	if err := s.tasks.CancelTask(id); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

// retryTaskRequest is the §6.1 "Retry task" request body.
type retryTaskRequest struct {
	Module models.Module     `json:"module" binding:"required"`
	Config models.TaskConfig `json:"config"`
}

// retryTaskHandler re-runs the selected module(s) in place (spec §4.1
// RetryTask). RetryTask runs the row under its owner's user id, so an
// admin's retry still uses the owner's credentials and per-user adapter
// settings; the module and TaskConfig come from this request's body.
func (s *Server) retryTaskHandler(c *gin.Context) {
	id, ok := s.parseTaskID(c)
	if !ok {
		return
	}
	var req retryTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	go func() {
		if err := s.tasks.RetryTask(context.Background(), id, callerUserID(c), req.Module, callerIsAdmin(c), req.Config); err != nil {
			_ = err // best-effort background retry; a refusal returned here is dropped, failures during the run publish task.failed
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "retrying"})
}

// deleteTaskHandler implements §6.1 "Delete task": the row disappears
// immediately, artifact cleanup happens in the background and skips
// AC-confirmed workspaces (spec §4.1 DeleteTask, §4.5 Manager.Delete).
func (s *Server) deleteTaskHandler(c *gin.Context) {
	id, ok := s.parseTaskID(c)
	if !ok {
		return
	}
	userID := callerUserID(c)

	task, err := s.tasks.GetTask(c.Request.Context(), id, userID, callerIsAdmin(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	deleteArtifacts := func() {
		dir := s.workspaceDir(c.Request.Context(), task)
		if dir == "" {
			return
		}
		mgr, err := artifact.New(dir)
		if err != nil {
			return
		}
		_, _ = mgr.Delete()
	}

	if err := s.tasks.DeleteTask(c.Request.Context(), id, userID, deleteArtifacts); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// downloadTaskHandler streams the workspace ZIP described in spec §6.1
// "Download workspace".
func (s *Server) downloadTaskHandler(c *gin.Context) {
	id, ok := s.parseTaskID(c)
	if !ok {
		return
	}
	task, err := s.tasks.GetTask(c.Request.Context(), id, callerUserID(c), callerIsAdmin(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	dir := s.workspaceDir(c.Request.Context(), task)
	if dir == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "workspace not resolvable"})
		return
	}
	if _, err := os.Stat(dir); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "workspace not found"})
		return
	}
	mgr, err := artifact.New(dir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	filename := filepath.Base(dir) + ".zip"
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Type", "application/zip")
	if err := mgr.WriteDownloadArchive(c.Writer); err != nil {
		// headers are already flushed; nothing left to do but log server-side.
		return
	}
}

// workspaceDir resolves task's on-disk workspace by re-canonicalizing its
// stored problem id (spec §8.2: Canonicalize is idempotent, so this is
// safe even if the row already holds a canonical id).
func (s *Server) workspaceDir(ctx context.Context, task *models.Task) string {
	canonicalID, err := s.resolver.Canonicalize(ctx, task.SourceJudge, task.ProblemID)
	if err != nil {
		return ""
	}
	return artifact.Dir(s.workspaceRoot, task.UserID, canonicalID)
}

// getTaskLogsHandler implements §6.1 "Get task logs: returns the most
// recent pipeline.log contents, line-buffered."
func (s *Server) getTaskLogsHandler(c *gin.Context) {
	id, ok := s.parseTaskID(c)
	if !ok {
		return
	}
	task, err := s.tasks.GetTask(c.Request.Context(), id, callerUserID(c), callerIsAdmin(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	dir := s.workspaceDir(c.Request.Context(), task)
	data, err := os.ReadFile(filepath.Join(dir, pipeline.PipelineLogFilename))
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusOK, gin.H{"lines": []string{}})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": strings.Split(strings.TrimRight(string(data), "\n"), "\n")})
}

// wsHandler upgrades to a WebSocket and hands the connection to the Fanout
// for the lifetime of the connection (spec §6.2 Event stream).
func (s *Server) wsHandler(c *gin.Context) {
	origins := s.allowedWSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: origins,
	})
	if err != nil {
		return
	}
	defer conn.CloseNow()
	s.fanout.HandleConnection(c.Request.Context(), conn)
}
