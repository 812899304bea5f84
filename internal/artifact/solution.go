package artifact

import (
	"fmt"
	"os"
	"strings"
)

// minNontrivialSolutionBytes is the threshold below which a solution.cpp
// is treated as a stub rather than a real reference solution (spec §4.2.2
// Solve step 3: "if solution.cpp exists and is non-trivial, reuse it").
const minNontrivialSolutionBytes = 20

// LoadSolution reads solution.cpp, reporting whether it exists.
func (m *Manager) LoadSolution() (string, bool, error) {
	data, err := os.ReadFile(m.path(solutionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read solution.cpp: %w", err)
	}
	return string(data), true, nil
}

// SaveSolution atomically writes solution.cpp.
func (m *Manager) SaveSolution(code string) error {
	return writeAtomic(m.path(solutionFile), []byte(code))
}

// HasNontrivialSolution reports whether solution.cpp exists and looks like
// a real reference solution rather than an empty or near-empty stub.
func (m *Manager) HasNontrivialSolution() bool {
	code, ok, err := m.LoadSolution()
	if err != nil || !ok {
		return false
	}
	return len(strings.TrimSpace(code)) >= minNontrivialSolutionBytes
}
