package artifact

import (
	"os"

	"github.com/inkotake/ojoagent/internal/models"
)

// Load reads problem_data.json, returning (nil, false, nil) if it doesn't
// exist yet.
func (m *Manager) Load() (*models.ProblemData, bool, error) {
	var data models.ProblemData
	ok, err := readJSON(m.path(problemDataFile), &data)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &data, true, nil
}

// Save persists the normalized problem data atomically.
func (m *Manager) Save(data *models.ProblemData) error {
	return writeJSON(m.path(problemDataFile), data)
}

// HasStatement reports whether problem_data.json exists, independent of
// whether the artifact set is AC-confirmed (SPEC_FULL §12: the two reuse
// predicates are distinct — HasStatement gates "don't re-crawl the
// statement", IsACConfirmed gates "don't re-solve at all").
func (m *Manager) HasStatement() bool {
	_, err := os.Stat(m.path(problemDataFile))
	return err == nil
}
