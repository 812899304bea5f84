package artifact

import "os"

// Delete removes the workspace directory and everything under it, unless
// the artifact set is AC-confirmed (spec §4.1 DeleteTask: "schedules
// background artifact deletion ... which skips deletion when the
// artifact set is AC-confirmed"). Returns skipped=true when the
// AC-confirmed guard held and nothing was removed.
func (m *Manager) Delete() (skipped bool, err error) {
	completed, err := m.IsCompleted()
	if err != nil {
		return false, err
	}
	if completed {
		return true, nil
	}
	if err := os.RemoveAll(m.dir); err != nil {
		return false, err
	}
	return false, nil
}
