package models

// Sample is one input/output example pair from a problem statement.
type Sample struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// ProblemData is the normalized shape every fetch adapter converts its raw
// judge-specific format into (spec §4.3).
type ProblemData struct {
	ID            string   `json:"id"`
	Source        string   `json:"source"` // adapter name the data came from
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	InputFormat   string   `json:"input_format"`
	OutputFormat  string   `json:"output_format"`
	Samples       []Sample `json:"samples"`
	TimeLimitMS   int      `json:"time_limit_ms,omitempty"`
	MemoryLimitMB int      `json:"memory_limit_mb,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Hints         string   `json:"hints,omitempty"`
	Author        string   `json:"author,omitempty"`
	URL           string   `json:"url,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// ProcessingStatus is the on-disk `processing_status.json` record (spec §3.1).
type ProcessingStatus struct {
	LastStage         Stage             `json:"last_stage"`
	OKFetch           bool              `json:"ok_fetch"`
	OKGen             bool              `json:"ok_gen"`
	OKUpload          bool              `json:"ok_upload"`
	OKSolve           bool              `json:"ok_solve"`
	ValidationPassed  bool              `json:"validation_passed"`
	UploadRealID      map[string]string `json:"upload_real_id,omitempty"` // adapter name -> real_id
	CompletedFetchAt  string            `json:"completed_fetch_at,omitempty"`
	CompletedGenAt    string            `json:"completed_gen_at,omitempty"`
	CompletedUploadAt string            `json:"completed_upload_at,omitempty"`
	CompletedSolveAt  string            `json:"completed_solve_at,omitempty"`
}

// IsACConfirmed reports whether this artifact set has a confirmed-accepted
// solve, which grants reuse privileges and prevents background GC (spec
// Glossary "AC-confirmed").
func (p ProcessingStatus) IsACConfirmed() bool {
	return p.OKSolve
}

// RetryAttempt is one failed-attempt summary fed back into the next LLM
// prompt (spec §4.2.4 retry-context protocol).
type RetryAttempt struct {
	Attempt     int     `json:"attempt"`
	Verdict     string  `json:"verdict,omitempty"` // e.g. "Wrong Answer", compile-error message
	Snippet     string  `json:"snippet,omitempty"` // first MaxRetrySnippetChars of the failing code
	Temperature float64 `json:"temperature"`
}

// MaxRetryContextEntries caps how many retry attempts are rendered into the
// next prompt (spec §4.2.4, confirmed exact by original_source/solver.py).
const MaxRetryContextEntries = 2

// MaxRetrySnippetChars caps the truncated code snippet carried in a retry entry.
const MaxRetrySnippetChars = 500
