// Package pipeline is the Pipeline Runner (C8): the four-stage state
// machine — Fetch, Gen, Upload, Solve — that turns one task's module
// selection into a sequence of adapter/LLM calls against a single
// problem's workspace (spec §4.2).
//
// Grounded on _examples/original_source/src/services/solver.py's
// SolveService (temperature annealing, retry-context protocol, submit +
// poll loop) and pipeline.py's stage sequencing (not read directly — its
// shape is inferred from solver.py, the fetch/gen adapters already built,
// and spec §4.2's per-stage contract), expressed in the teacher's style:
// explicit stage functions, context-threaded cancellation, and the same
// semaphore/retry/event-bus primitives internal/concurrency and
// internal/bus already provide.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/inkotake/ojoagent/internal/adapter"
	"github.com/inkotake/ojoagent/internal/artifact"
	"github.com/inkotake/ojoagent/internal/bus"
	"github.com/inkotake/ojoagent/internal/concurrency"
	"github.com/inkotake/ojoagent/internal/generator"
	"github.com/inkotake/ojoagent/internal/llmstream"
	"github.com/inkotake/ojoagent/internal/metrics"
	"github.com/inkotake/ojoagent/internal/models"
	"github.com/inkotake/ojoagent/internal/problemid"
	"github.com/inkotake/ojoagent/internal/usercontext"
)

// Authenticator performs the adapter-specific login flow to mint a fresh
// AuthCacheEntry when the per-user cache has nothing (or an expired
// entry) for (userID, adapterName). Concrete login flows (cookie capture,
// OAuth, API-key passthrough) are adapter- and deployment-specific, so
// this stays a caller-supplied hook rather than logic owned by the
// runner (spec §4.7 "the user context caches sessions; something else
// populates them").
type Authenticator interface {
	Authenticate(ctx context.Context, userID int64, adapterName string) (models.AuthCacheEntry, error)
}

// Config wires every already-built component the runner orchestrates.
type Config struct {
	Registry      *adapter.Registry
	Resolver      *problemid.Resolver
	WorkspaceRoot string
	Semaphores    *concurrency.SemaphorePool
	LLMFactory    *llmstream.Factory
	UserContexts  *usercontext.Manager
	SubmitSlot    *concurrency.SubmitSlot
	Bus           *bus.Bus
	Toolchain     *generator.Toolchain
	Authenticator Authenticator

	// SolutionSearcher is the optional Solution Searcher hook (spec
	// §4.2.3); nil disables it entirely.
	SolutionSearcher SolutionSearcher
}

// Runner executes the four-stage pipeline for one task at a time; callers
// (the Task Service's worker pool) provide their own concurrency across
// tasks.
type Runner struct {
	cfg Config
}

// New builds a Runner. Registry, Resolver, WorkspaceRoot, Semaphores,
// LLMFactory, UserContexts, SubmitSlot, Bus, and Toolchain are required;
// Authenticator and SolutionSearcher may be nil (auth-required stages
// fail fast with a clear error instead, and the searcher hook is simply
// skipped).
func New(cfg Config) *Runner {
	if cfg.Bus == nil {
		cfg.Bus = bus.New()
	}
	return &Runner{cfg: cfg}
}

// Request is one unit of work: a task row plus the resolved batch
// configuration that governs which modules run and which adapters/LLM
// provider to use.
type Request struct {
	Task        *models.Task
	Config      models.TaskConfig
	LLMCreds    llmstream.UserCredentials
	LLMProvider llmstream.ProviderName
	CancelToken *concurrency.CancelToken
	// ExternalCancelled lets the caller (Task Service shutdown/delete) veto
	// continuation without owning the runner's own CancelToken.
	ExternalCancelled concurrency.CancellationCheck
}

// Result is what RunTask reports back to the caller for persistence.
type Result struct {
	FinalStage   models.Stage
	OKFetch      bool
	OKGen        bool
	OKUpload     bool
	OKSolve      bool
	UploadedURL  string
	ErrorMessage string
	Cancelled    bool
}

// stageCtx bundles everything a stage function needs, avoiding a long
// positional parameter list across fetch.go/gen.go/upload.go/solve.go.
type stageCtx struct {
	ctx         context.Context
	runner      *Runner
	req         *Request
	canonicalID string
	workspace   *artifact.Manager
	logger      *StageLogger
	userCtx     *usercontext.UserContext
}

func (s *stageCtx) cancelled() bool {
	return concurrency.Probe(s.req.CancelToken, s.req.ExternalCancelled)
}

// resolveAuth returns a usable session for (this task's user, adapterName),
// reusing the per-user cache when it has a live entry and falling back to
// the caller-supplied Authenticator otherwise (spec §4.6 User Context:
// "something else populates the cache"). Returns an error if neither the
// cache nor an Authenticator can produce one.
func (s *stageCtx) resolveAuth(adapterName string) (models.AuthCacheEntry, error) {
	now := time.Now()
	if entry, ok := s.userCtx.GetAuth(adapterName, now); ok {
		return entry, nil
	}
	if s.runner.cfg.Authenticator == nil {
		return models.AuthCacheEntry{}, fmt.Errorf("no cached session for adapter %q and no authenticator configured", adapterName)
	}
	entry, err := s.runner.cfg.Authenticator.Authenticate(s.ctx, s.req.Task.UserID, adapterName)
	if err != nil {
		return models.AuthCacheEntry{}, fmt.Errorf("authenticate against %q: %w", adapterName, err)
	}
	s.userCtx.SetAuth(adapterName, entry.Token, entry.HTTPSession, now)
	return entry, nil
}

// RunTask canonicalizes the problem id, opens its workspace, and runs
// each enabled module in order (Fetch, Gen, Upload, Solve), passing over
// the ones the module selection disables. It returns early only when
// Fetch fails terminally or the task is found cancelled after a stage;
// any other stage error is recorded and the later enabled stages still
// run (spec §4.2).
func (r *Runner) RunTask(ctx context.Context, req *Request) Result {
	modules := req.Config.Modules()

	canonicalID, err := r.cfg.Resolver.Canonicalize(ctx, req.Config.GetFetchAdapter(req.Task.ProblemID), req.Task.ProblemID)
	if err != nil {
		return Result{FinalStage: models.StageFailed, ErrorMessage: fmt.Sprintf("resolve problem id: %v", err)}
	}

	dir := problemid.WorkspaceDir(r.cfg.WorkspaceRoot, req.Task.UserID, canonicalID)
	workspace, err := artifact.New(dir)
	if err != nil {
		return Result{FinalStage: models.StageFailed, ErrorMessage: fmt.Sprintf("open workspace: %v", err)}
	}

	userCtx := r.cfg.UserContexts.Get(req.Task.UserID)
	userCtx.IncrementActiveTasks()
	defer userCtx.DecrementActiveTasks()

	sc := &stageCtx{
		ctx:         ctx,
		runner:      r,
		req:         req,
		canonicalID: canonicalID,
		workspace:   workspace,
		logger:      newStageLogger(r.cfg.Bus, workspace, req.Task.ID, canonicalID),
		userCtx:     userCtx,
	}

	result := Result{FinalStage: models.StagePending}

	if modules.Fetch {
		result.FinalStage = models.StageFetch
		started := time.Now()
		ok, terminal, err := runFetch(sc)
		result.OKFetch = ok
		metrics.ObserveStage("fetch", stageOutcome(ok), time.Since(started))
		if err != nil {
			result.ErrorMessage = err.Error()
			if terminal {
				result.FinalStage = models.StageFailed
				return result
			}
		}
		if sc.cancelled() {
			return cancelledResult(result)
		}
	}

	if modules.Gen {
		result.FinalStage = models.StageGen
		started := time.Now()
		ok, err := runGen(sc, req.LLMProvider, req.LLMCreds)
		result.OKGen = ok
		metrics.ObserveStage("gen", stageOutcome(ok), time.Since(started))
		if err != nil {
			result.ErrorMessage = err.Error()
		}
		if sc.cancelled() {
			return cancelledResult(result)
		}
	}

	if modules.Upload {
		result.FinalStage = models.StageUpload
		started := time.Now()
		uploadedURL, ok, err := runUpload(sc, req.Config.TargetAdapter)
		result.OKUpload = ok
		result.UploadedURL = uploadedURL
		metrics.ObserveStage("upload", stageOutcome(ok), time.Since(started))
		if err != nil {
			result.ErrorMessage = err.Error()
		}
		if sc.cancelled() {
			return cancelledResult(result)
		}
	}

	if modules.Solve {
		result.FinalStage = models.StageSolve
		started := time.Now()
		ok, err := runSolve(sc, req.Config.TargetAdapter, req.LLMProvider, req.LLMCreds)
		result.OKSolve = ok
		metrics.ObserveStage("solve", stageOutcome(ok), time.Since(started))
		if err != nil {
			result.ErrorMessage = err.Error()
		}
		if sc.cancelled() {
			return cancelledResult(result)
		}
	}

	if result.ErrorMessage == "" {
		result.FinalStage = models.StageCompleted
	} else {
		result.FinalStage = models.StageFailed
	}
	return result
}

func stageOutcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

func cancelledResult(r Result) Result {
	r.Cancelled = true
	r.FinalStage = models.StageCancelled
	r.ErrorMessage = "任务被取消"
	return r
}

// jitteredWait sleeps base±jitter, interruptibly, used by every stage's
// between-attempt backoff (spec §4.2.2's per-stage numeric waits).
func jitteredWait(sc *stageCtx, base, jitter time.Duration) (cancelled bool) {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int63n(int64(2*jitter))) - jitter
	}
	if d < 0 {
		d = 0
	}
	return concurrency.InterruptibleSleep(d, func() bool { return sc.cancelled() })
}

func logEvent(sc *stageCtx, eventType models.EventType, stage models.Stage, progress int, message string) {
	sc.runner.cfg.Bus.Publish(sc.ctx, string(eventType), models.ProgressEvent{
		EventType: eventType,
		TaskID:    sc.req.Task.ID,
		ProblemID: sc.canonicalID,
		Stage:     stage,
		Progress:  progress,
		Message:   message,
		Timestamp: time.Now(),
	})
}

func warnf(format string, args ...any) {
	slog.Warn(fmt.Sprintf(format, args...))
}
