package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/inkotake/ojoagent/internal/adapter"
	"github.com/inkotake/ojoagent/internal/models"
)

const (
	maxUploadAttempts   = 3
	uploadLinearBackoff = 5 * time.Second
)

// titleSearcher is the structural subset of hydrooj.Adapter's
// SearchExactTitle the upload stage's pre-check short-circuit needs.
// Defined here rather than imported from internal/adapter/hydrooj so the
// pipeline depends only on the generic adapter capability surface —
// any future "hydrooj-like" adapter that implements this method
// transparently gets the same short-circuit (spec §4.2.2 Upload line
// "hydrooj-like destination adapter").
type titleSearcher interface {
	SearchExactTitle(ctx context.Context, title string, auth models.AuthCacheEntry) (realID string, found bool, err error)
}

// runUpload implements the Upload stage (spec §4.2.2 Upload). When the
// destination judge already has an exact-title match, the pre-check
// short-circuit records the remote real_id and marks ok_gen, ok_upload
// and ok_solve, so the upload call and the Solve stage (through
// runSolve's OKSolve check) are skipped. The pre-check runs inside this
// stage, after Gen: a Gen stage enabled for the same run has already
// executed by then. Without a match it requires a
// validated testdata archive and retries the upload call with linear
// backoff.
func runUpload(sc *stageCtx, targetAdapterName string) (uploadedURL string, ok bool, err error) {
	a, found := sc.runner.cfg.Registry.GetAdapter(targetAdapterName)
	if !found {
		return "", false, fmt.Errorf("upload: unknown target adapter %q", targetAdapterName)
	}
	uploader, err := adapter.RequireCapability[adapter.UploadData](a, adapter.CapUploadData)
	if err != nil {
		return "", false, err
	}

	auth, err := sc.resolveAuth(targetAdapterName)
	if err != nil {
		return "", false, fmt.Errorf("upload: %w", err)
	}

	problem, ok, err := sc.workspace.Load()
	if err != nil {
		return "", false, fmt.Errorf("upload: load problem data: %w", err)
	}
	if ok {
		if searcher, isSearcher := a.(titleSearcher); isSearcher {
			ctxWithUser := adapter.WithUserID(sc.ctx, sc.req.Task.UserID)
			if realID, hit, serr := searcher.SearchExactTitle(ctxWithUser, problem.Title, auth); serr == nil && hit {
				sc.logger.Log(sc.ctx, models.StageUpload, "exact title match found on %s, skipping upload and solve", targetAdapterName)
				if err := sc.workspace.SetUploadRealID(targetAdapterName, realID); err != nil {
					return "", false, err
				}
				now := time.Now().UTC().Format(time.RFC3339)
				if err := sc.workspace.SetProcessingStatus(models.ProcessingStatus{
					LastStage: models.StageUpload, OKGen: true, OKUpload: true, OKSolve: true,
					CompletedUploadAt: now, CompletedSolveAt: now,
				}); err != nil {
					return "", false, err
				}
				logEvent(sc, models.EventTaskProgress, models.StageUpload, 100, "upload short-circuited: exact title match, upload/solve skipped")
				return realID, true, nil
			}
		}
	}

	status, err := sc.workspace.GetProcessingStatus()
	if err != nil {
		return "", false, err
	}
	if !status.OKGen && !status.ValidationPassed {
		return "", false, fmt.Errorf("upload: gen stage has not produced validated testdata yet")
	}

	archivePath, err := sc.workspace.ZipTestcases(sc.canonicalID)
	if err != nil {
		return "", false, fmt.Errorf("upload: %w", err)
	}

	existingRealID, err := sc.workspace.GetUploadRealID(targetAdapterName)
	if err != nil {
		return "", false, err
	}
	skipUpdate := existingRealID == ""

	ctxWithUser := adapter.WithUserID(sc.ctx, sc.req.Task.UserID)

	var lastErr error
	for attempt := 1; attempt <= maxUploadAttempts; attempt++ {
		if sc.cancelled() {
			return "", false, nil
		}

		release, err := sc.runner.cfg.Semaphores.RemoteWrite.Acquire(sc.ctx, 0)
		if err != nil {
			return "", false, fmt.Errorf("upload: acquire remote-write slot: %w", err)
		}
		var result adapter.UploadResult
		err = sc.runner.cfg.Registry.CallRemote(a.Name(), func() error {
			var uploadErr error
			result, uploadErr = uploader.UploadTestcase(ctxWithUser, sc.canonicalID, archivePath, auth, skipUpdate)
			return uploadErr
		})
		release()

		if err == nil && result.Status == "success" {
			if err := sc.workspace.SetUploadRealID(targetAdapterName, result.RealID); err != nil {
				return "", false, err
			}
			if err := sc.workspace.SetProcessingStatus(models.ProcessingStatus{
				LastStage: models.StageUpload, OKUpload: true,
				CompletedUploadAt: time.Now().UTC().Format(time.RFC3339),
			}); err != nil {
				return "", false, err
			}
			sc.logger.Log(sc.ctx, models.StageUpload, "upload complete: real_id=%s", result.RealID)
			logEvent(sc, models.EventTaskProgress, models.StageUpload, 100, "upload complete")
			return result.RealID, true, nil
		}

		if err == nil {
			err = fmt.Errorf("upload returned status %q: %s", result.Status, result.Message)
		}
		lastErr = err
		sc.logger.Log(sc.ctx, models.StageUpload, "upload attempt %d failed: %v", attempt, err)
		if attempt < maxUploadAttempts {
			jitteredWait(sc, time.Duration(attempt)*uploadLinearBackoff, 0)
		}
	}

	return "", false, fmt.Errorf("upload: exhausted %d attempts: %w", maxUploadAttempts, lastErr)
}
