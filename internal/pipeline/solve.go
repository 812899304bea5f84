package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/inkotake/ojoagent/internal/adapter"
	"github.com/inkotake/ojoagent/internal/llmstream"
	"github.com/inkotake/ojoagent/internal/models"
	"github.com/inkotake/ojoagent/internal/prompt"
)

const (
	maxSolveAttempts     = 3
	solveDefaultTemp     = 0.3
	solveMinTemp         = 0.3
	solveCETempDrop      = 0.2
	minSolutionChars     = 50
	solvePollInterval    = 3 * time.Second
	solveFirstPollWait   = 2 * time.Second
	solveDeadline        = 240 * time.Second
	solveMaxCEPolls      = 3
	solveNormalWait      = 30 * time.Second
	solveNormalWaitJit   = 1500 * time.Millisecond
	solveRateLimitWait   = 72500 * time.Millisecond // 60s + uniform(-5, 30)s centered at 72.5s
	solveRateLimitJit    = 17500 * time.Millisecond
	solveNotExistWait    = 19 * time.Second // 15s + uniform(-2, 10)s centered at 19s
	solveNotExistJit     = 6 * time.Second
	solveAuthExpiredWait = 2500 * time.Millisecond
	solveAuthExpiredJit  = 500 * time.Millisecond
)

// runSolve implements the Solve stage (spec §4.2.2 Solve), grounded
// directly on solver.py's solve()/submit_only(): resolve or mint a
// session, reuse or regenerate solution.cpp, submit through the target
// adapter, and poll its verdict up to solveDeadline. A compile-error
// verdict lowers the temperature by solveCETempDrop, floored at
// solveMinTemp (higher than the Gen stage's floor); because
// solveDefaultTemp equals solveMinTemp, every attempt runs at 0.3. It
// also regenerates the code on the next attempt; any other non-AC verdict is recorded as retry context without
// touching temperature. Transport-level errors are classified by
// errors.go's bilingual substring matchers to pick the backoff bucket.
func runSolve(sc *stageCtx, targetAdapterName string, providerName llmstream.ProviderName, creds llmstream.UserCredentials) (bool, error) {
	if status, err := sc.workspace.GetProcessingStatus(); err == nil && status.OKSolve {
		sc.logger.Log(sc.ctx, models.StageSolve, "solve already satisfied by an earlier stage's short-circuit, skipping")
		return true, nil
	}

	a, found := sc.runner.cfg.Registry.GetAdapter(targetAdapterName)
	if !found {
		return false, fmt.Errorf("solve: unknown target adapter %q", targetAdapterName)
	}
	submitter, err := adapter.RequireCapability[adapter.SubmitSolution](a, adapter.CapSubmitSolution)
	if err != nil {
		return false, err
	}

	realID, err := sc.workspace.GetUploadRealID(targetAdapterName)
	if err != nil {
		return false, err
	}
	if realID == "" {
		return false, fmt.Errorf("solve: no uploaded problem id for adapter %q, upload must run first", targetAdapterName)
	}

	problem, ok, err := sc.workspace.Load()
	if err != nil {
		return false, fmt.Errorf("solve: load problem data: %w", err)
	}
	if !ok {
		return false, fmt.Errorf("solve: no problem_data.json, fetch must run first")
	}

	var referenceSolutions string
	if sc.runner.cfg.SolutionSearcher != nil {
		if found, serr := sc.runner.cfg.SolutionSearcher.Search(sc.ctx, sc.canonicalID, problem.Title, problem.Description); serr == nil {
			referenceSolutions = found
		} else {
			sc.logger.Log(sc.ctx, models.StageSolve, "solution searcher skipped: %v", serr)
		}
	}

	var client llmstream.Client
	temperature := solveDefaultTemp
	var retries []models.RetryAttempt
	languageKey := submitter.GetDefaultLanguage("C++")

	for attempt := 1; attempt <= maxSolveAttempts; attempt++ {
		if sc.cancelled() {
			return false, nil
		}
		sc.logger.Log(sc.ctx, models.StageSolve, "solve attempt %d/%d, temperature=%.2f", attempt, maxSolveAttempts, temperature)

		auth, err := sc.resolveAuth(targetAdapterName)
		if err != nil {
			return false, fmt.Errorf("solve: %w", err)
		}

		if client == nil {
			client, err = sc.runner.cfg.LLMFactory.Build(providerName, creds, sc.req.CancelToken)
			if err != nil {
				return false, fmt.Errorf("solve: build LLM client: %w", err)
			}
		}

		code, err := resolveSolutionCode(sc, client, problem, retries, referenceSolutions, temperature, attempt)
		if err != nil {
			return false, fmt.Errorf("solve: %w", err)
		}

		status, submitErr := submitAndPoll(sc, submitter, targetAdapterName, realID, code, languageKey, auth)
		if submitErr != nil {
			if handleSolveError(sc, submitErr, targetAdapterName) {
				return false, nil
			}
			if attempt == maxSolveAttempts {
				return false, fmt.Errorf("solve: exhausted %d attempts: %w", maxSolveAttempts, submitErr)
			}
			continue
		}

		if status.IsAccepted {
			sc.logger.Log(sc.ctx, models.StageSolve, "solve accepted on attempt %d", attempt)
			if err := sc.workspace.SetProcessingStatus(models.ProcessingStatus{
				LastStage:       models.StageSolve,
				OKSolve:         true,
				CompletedSolveAt: time.Now().UTC().Format(time.RFC3339),
			}); err != nil {
				return false, fmt.Errorf("solve: persist status: %w", err)
			}
			logEvent(sc, models.EventTaskProgress, models.StageSolve, 100, "solve accepted")
			return true, nil
		}

		if isCompileErrorMessage(status.Status) {
			old := temperature
			temperature = temperature - solveCETempDrop
			if temperature < solveMinTemp {
				temperature = solveMinTemp
			}
			sc.logger.Log(sc.ctx, models.StageSolve, "compile error verdict, cooling %.2f -> %.2f", old, temperature)
			retries = append(retries, models.RetryAttempt{Attempt: attempt, Verdict: status.Status, Temperature: temperature})
		} else {
			sc.logger.Log(sc.ctx, models.StageSolve, "verdict: %s", status.Status)
			retries = append(retries, models.RetryAttempt{Attempt: attempt, Verdict: status.Status, Temperature: temperature})
		}

		if attempt < maxSolveAttempts {
			jitteredWait(sc, solveNormalWait, solveNormalWaitJit)
		}
	}

	return false, fmt.Errorf("solve: exhausted %d attempts without acceptance", maxSolveAttempts)
}

// resolveSolutionCode reuses an existing solution.cpp on the first
// attempt when it already clears minSolutionChars; any retry, or a
// too-short/missing file, regenerates through the LLM.
func resolveSolutionCode(sc *stageCtx, client llmstream.Client, problem *models.ProblemData, retries []models.RetryAttempt, referenceSolutions string, temperature float64, attempt int) (string, error) {
	if attempt == 1 {
		if existing, ok, err := sc.workspace.LoadSolution(); err == nil && ok && len(existing) >= minSolutionChars {
			sc.logger.Log(sc.ctx, models.StageSolve, "reusing existing solution.cpp (%d chars)", len(existing))
			return existing, nil
		}
	}

	req := llmstream.ChatRequest{
		Prompt:       prompt.BuildSolvePrompt(problem, retries, referenceSolutions),
		SystemPrompt: prompt.SolveSystemPrompt,
		Temperature:  temperature,
		Stream:       true,
		OnChunk:      sc.logger.onChunk(sc.ctx, models.StageSolve),
	}

	release, err := sc.runner.cfg.Semaphores.LLM.Acquire(sc.ctx, 0)
	if err != nil {
		return "", fmt.Errorf("acquire LLM slot: %w", err)
	}
	result, err := client.ChatCompletion(sc.ctx, req)
	release()
	if err != nil {
		return "", fmt.Errorf("LLM call: %w", err)
	}

	code, ok := prompt.ExtractCode(result.Content, result.Reasoning)
	if !ok {
		return "", fmt.Errorf("no code block in solve response")
	}
	code = prompt.SanitizeCppCode(code)
	if len(code) < minSolutionChars {
		return "", fmt.Errorf("generated solution too short (%d chars)", len(code))
	}

	if err := sc.workspace.SaveSolution(code); err != nil {
		return "", fmt.Errorf("persist solution.cpp: %w", err)
	}
	return code, nil
}

// submitAndPoll submits code once (serialized through SubmitSlot to
// respect the judge's per-key rate limit) and polls the verdict on a
// fixed 3s interval up to solveDeadline, treating a compile-error
// verdict with no error text on the first solveMaxCEPolls-1 polls (the
// count is incremented before the pollCount < solveMaxCEPolls check) as
// the judge still warming up rather than a terminal verdict (solver.py's
// exact "poll_count < 3" rule).
func submitAndPoll(sc *stageCtx, submitter adapter.SubmitSolution, targetAdapterName, realID, code, languageKey string, auth models.AuthCacheEntry) (adapter.SubmissionStatus, error) {
	release, err := sc.runner.cfg.SubmitSlot.Hold(sc.ctx, targetAdapterName)
	if err != nil {
		return adapter.SubmissionStatus{}, err
	}

	var result adapter.SubmissionResult
	err = sc.runner.cfg.Registry.CallRemote(targetAdapterName, func() error {
		var submitErr error
		result, submitErr = submitter.SubmitSolution(sc.ctx, realID, code, languageKey, auth)
		return submitErr
	})
	if err != nil {
		release()
		return adapter.SubmissionStatus{}, err
	}
	if result.Status != "submitted" {
		release()
		return adapter.SubmissionStatus{}, fmt.Errorf("submit failed: %s", result.Message)
	}
	sc.logger.Log(sc.ctx, models.StageSolve, "submitted, submission_id=%s", result.SubmissionID)

	if jitteredWait(sc, solveFirstPollWait, 0) {
		release()
		return adapter.SubmissionStatus{}, context.Canceled
	}
	release()

	deadline := time.Now().Add(solveDeadline)
	pollCount := 0
	var last adapter.SubmissionStatus

	for time.Now().Before(deadline) {
		if sc.cancelled() {
			return adapter.SubmissionStatus{}, context.Canceled
		}

		var status adapter.SubmissionStatus
		err := sc.runner.cfg.Registry.CallRemote(targetAdapterName, func() error {
			var pollErr error
			status, pollErr = submitter.GetSubmissionStatus(sc.ctx, result.SubmissionID, auth)
			return pollErr
		})
		if err != nil {
			return adapter.SubmissionStatus{}, err
		}
		last = status
		pollCount++
		sc.logger.Log(sc.ctx, models.StageSolve, "poll %d: %s", pollCount, status.Status)

		if isCompileErrorMessage(status.Status) && status.Raw["errorMessage"] == nil && pollCount < solveMaxCEPolls {
			sc.logger.Log(sc.ctx, models.StageSolve, "CE with no error text yet, still judging")
			if jitteredWait(sc, solvePollInterval, 0) {
				return adapter.SubmissionStatus{}, context.Canceled
			}
			continue
		}

		if isTerminalVerdict(status) {
			return status, nil
		}

		if jitteredWait(sc, solvePollInterval, 0) {
			return adapter.SubmissionStatus{}, context.Canceled
		}
	}

	sc.logger.Log(sc.ctx, models.StageSolve, "polling timed out after %s", solveDeadline)
	return last, nil
}

func isTerminalVerdict(status adapter.SubmissionStatus) bool {
	switch status.Status {
	case "Judging", "Pending", "Waiting", "Queued", "Compiling":
		return false
	default:
		return true
	}
}

// handleSolveError classifies a transport/submit-level error (not a
// judge verdict) and waits the matching backoff bucket, returning true
// only if the task was cancelled mid-wait.
func handleSolveError(sc *stageCtx, err error, targetAdapterName string) (cancelled bool) {
	msg := err.Error()
	sc.logger.Log(sc.ctx, models.StageSolve, "submit/poll error: %v", msg)

	switch {
	case isAuthExpired(msg):
		sc.logger.Log(sc.ctx, models.StageSolve, "auth expired, clearing cached session")
		sc.userCtx.ClearAuth(targetAdapterName)
		return jitteredWait(sc, solveAuthExpiredWait, solveAuthExpiredJit)
	case isRateLimited(msg):
		return jitteredWait(sc, solveRateLimitWait, solveRateLimitJit)
	case isProblemNotExist(msg):
		return jitteredWait(sc, solveNotExistWait, solveNotExistJit)
	default:
		return jitteredWait(sc, solveNormalWait, solveNormalWaitJit)
	}
}
