package artifact

import "github.com/inkotake/ojoagent/internal/models"

// GetProcessingStatus reads processing_status.json, returning a zero-value
// ProcessingStatus if the file doesn't exist yet.
func (m *Manager) GetProcessingStatus() (models.ProcessingStatus, error) {
	var status models.ProcessingStatus
	if _, err := readJSON(m.path(statusFile), &status); err != nil {
		return models.ProcessingStatus{}, err
	}
	return status, nil
}

// SetProcessingStatus merges partial into the existing status (only
// non-zero fields in partial are applied) and writes the result
// atomically. Boolean "ok_*" fields only ever move false->true through
// this merge; this package offers no operation that clears one.
func (m *Manager) SetProcessingStatus(partial models.ProcessingStatus) error {
	current, err := m.GetProcessingStatus()
	if err != nil {
		return err
	}
	merged := mergeStatus(current, partial)
	return writeJSON(m.path(statusFile), merged)
}

func mergeStatus(base, partial models.ProcessingStatus) models.ProcessingStatus {
	if partial.LastStage != "" {
		base.LastStage = partial.LastStage
	}
	if partial.OKFetch {
		base.OKFetch = true
	}
	if partial.OKGen {
		base.OKGen = true
	}
	if partial.OKUpload {
		base.OKUpload = true
	}
	if partial.OKSolve {
		base.OKSolve = true
	}
	if partial.ValidationPassed {
		base.ValidationPassed = true
	}
	if partial.UploadRealID != nil {
		if base.UploadRealID == nil {
			base.UploadRealID = make(map[string]string, len(partial.UploadRealID))
		}
		for adapter, id := range partial.UploadRealID {
			base.UploadRealID[adapter] = id
		}
	}
	if partial.CompletedFetchAt != "" {
		base.CompletedFetchAt = partial.CompletedFetchAt
	}
	if partial.CompletedGenAt != "" {
		base.CompletedGenAt = partial.CompletedGenAt
	}
	if partial.CompletedUploadAt != "" {
		base.CompletedUploadAt = partial.CompletedUploadAt
	}
	if partial.CompletedSolveAt != "" {
		base.CompletedSolveAt = partial.CompletedSolveAt
	}
	return base
}

// IsCompleted reports whether the artifact set has a confirmed-accepted
// solve (spec §4.5: IsCompleted(dir) == status.ok_solve == true).
func (m *Manager) IsCompleted() (bool, error) {
	status, err := m.GetProcessingStatus()
	if err != nil {
		return false, err
	}
	return status.IsACConfirmed(), nil
}

// SetUploadRealID records the remote problem id for one destination
// adapter, merged alongside any other adapter's previously recorded id.
func (m *Manager) SetUploadRealID(adapterName, realID string) error {
	return m.SetProcessingStatus(models.ProcessingStatus{
		UploadRealID: map[string]string{adapterName: realID},
	})
}

// GetUploadRealID returns the remote problem id for adapterName, or ""
// if it was never recorded.
func (m *Manager) GetUploadRealID(adapterName string) (string, error) {
	status, err := m.GetProcessingStatus()
	if err != nil {
		return "", err
	}
	return status.UploadRealID[adapterName], nil
}

// SetValidationResult is a thin alias over SetProcessingStatus for callers
// that only touch the validation_passed field, matching spec §4.5's
// distinct operation name.
func (m *Manager) SetValidationResult(passed bool) error {
	return m.SetProcessingStatus(models.ProcessingStatus{ValidationPassed: passed})
}
