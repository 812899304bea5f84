package pipeline

import (
	"fmt"
	"time"

	"github.com/inkotake/ojoagent/internal/adapter"
	"github.com/inkotake/ojoagent/internal/models"
)

// runFetch implements the Fetch stage (spec §4.2.2 Fetch): reuse
// problem_data.json whenever it already exists — AC-confirmed or not —
// to avoid re-crawling the origin judge on every task retry; otherwise
// dispatch to the resolved FetchProblem adapter. A 404-class error is
// terminal: the caller should stop the pipeline entirely rather than
// proceed to Gen/Upload/Solve with no statement.
func runFetch(sc *stageCtx) (ok bool, terminal bool, err error) {
	if sc.workspace.HasStatement() {
		sc.logger.Log(sc.ctx, models.StageFetch, "reusing existing problem_data.json, skipping fetch")
		logEvent(sc, models.EventTaskProgress, models.StageFetch, 100, "fetch reused")
		return true, false, nil
	}

	hint := sc.req.Config.GetFetchAdapter(sc.req.Task.ProblemID)
	var a adapter.Adapter
	var found bool
	if hint != "" {
		a, found = sc.runner.cfg.Registry.GetAdapter(hint)
	} else {
		a, found = sc.runner.cfg.Registry.FindAdapterByURL(sc.req.Task.ProblemID)
	}
	if !found {
		return false, true, fmt.Errorf("fetch: no adapter found for %q (hint=%q)", sc.req.Task.ProblemID, hint)
	}

	fetcher, err := adapter.RequireCapability[adapter.FetchProblem](a, adapter.CapFetchProblem)
	if err != nil {
		return false, true, err
	}

	originID := fetcher.ParseProblemID(sc.req.Task.ProblemID)
	if originID == "" {
		originID = sc.req.Task.ProblemID
	}

	release, err := sc.runner.cfg.Semaphores.RemoteRead.Acquire(sc.ctx, 0)
	if err != nil {
		return false, false, fmt.Errorf("fetch: acquire remote-read slot: %w", err)
	}
	defer release()

	sc.logger.Log(sc.ctx, models.StageFetch, "fetching problem %s via %s", originID, a.Name())
	var data *models.ProblemData
	err = sc.runner.cfg.Registry.CallRemote(a.Name(), func() error {
		var fetchErr error
		data, fetchErr = fetcher.FetchProblem(sc.ctx, originID)
		return fetchErr
	})
	if err != nil {
		if isProblemNotExist(err.Error()) {
			return false, true, fmt.Errorf("fetch: problem does not exist: %w", err)
		}
		return false, false, fmt.Errorf("fetch: %w", err)
	}
	data.Source = a.Name()

	if err := sc.workspace.Save(data); err != nil {
		return false, false, fmt.Errorf("fetch: persist problem data: %w", err)
	}
	if err := sc.workspace.SaveStatement(data); err != nil {
		sc.logger.Log(sc.ctx, models.StageFetch, "warning: render statement failed: %v", err)
	}
	if err := sc.workspace.SetProcessingStatus(models.ProcessingStatus{
		LastStage:        models.StageFetch,
		OKFetch:          true,
		CompletedFetchAt: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return false, false, fmt.Errorf("fetch: persist status: %w", err)
	}

	sc.logger.Log(sc.ctx, models.StageFetch, "fetch complete: %s", data.Title)
	logEvent(sc, models.EventTaskProgress, models.StageFetch, 100, "fetch complete")
	return true, false, nil
}
