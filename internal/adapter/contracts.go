package adapter

import (
	"context"

	"github.com/inkotake/ojoagent/internal/models"
)

// Adapter is the base contract every judge adapter implements (spec §4.3).
// Capability-specific operations live on the optional interfaces below;
// the registry type-asserts an Adapter to those interfaces to discover
// what it actually supports.
type Adapter interface {
	Name() string
	DisplayName() string
	Priority() int
	Capabilities() []Capability

	// Initialize is idempotent. ctx carries no user id: adapters are
	// process-global singletons, never user-scoped at this layer.
	Initialize(ic InitContext) bool
	HealthCheck() HealthStatus
	Shutdown()
}

// HasCapability reports whether a declares cap, without the caller needing
// to range over Capabilities() itself.
func HasCapability(a Adapter, cap Capability) bool {
	for _, c := range a.Capabilities() {
		if c == cap {
			return true
		}
	}
	return false
}

// FetchProblem is the capability for pulling a normalized problem
// statement from a judge (spec §4.3 table).
type FetchProblem interface {
	SupportsURL(url string) bool
	ParseProblemID(input string) string
	FetchProblem(ctx context.Context, id string) (*models.ProblemData, error)
}

// BatchFetch lets an adapter fetch many problems more efficiently than N
// sequential FetchProblem calls (e.g. one contest-wide API call).
type BatchFetch interface {
	BatchFetchProblems(ctx context.Context, ids []string) (map[string]*models.ProblemData, error)
}

// UploadResult is the outcome of UploadTestcase.
type UploadResult struct {
	Status  string // "success" | "error"
	RealID  string // backend-assigned problem id, if the judge created one
	Message string
}

// UploadData is the capability for pushing testdata to a judge (spec §4.3).
type UploadData interface {
	UploadTestcase(ctx context.Context, problemID, archivePath string, auth models.AuthCacheEntry, skipUpdate bool) (UploadResult, error)
	SupportsFormat(kind string) bool
}

// SubmissionResult is returned immediately after a submit call.
type SubmissionResult struct {
	Status       string // "submitted" | "error"
	SubmissionID string
	RecordURL    string
	Message      string
}

// SubmissionStatus is returned by polling GetSubmissionStatus.
type SubmissionStatus struct {
	Status     string // judge-native verdict string, e.g. "Accepted", "Wrong Answer"
	Score      *int
	IsAccepted bool
	Raw        map[string]any
}

// SubmitSolution is the capability for submitting code and polling its
// verdict (spec §4.3).
type SubmitSolution interface {
	SubmitSolution(ctx context.Context, problemID, code, languageKey string, auth models.AuthCacheEntry) (SubmissionResult, error)
	GetSubmissionStatus(ctx context.Context, submissionID string, auth models.AuthCacheEntry) (SubmissionStatus, error)
	SupportedLanguages() []string
	GetDefaultLanguage(hint string) string
}

// JudgeStatus is the capability for checking judge-wide reachability
// independent of any one submission (used by HealthCheck callers that
// want a live remote probe rather than the cached in-process state).
type JudgeStatus interface {
	CheckJudgeReachable(ctx context.Context) error
}

// TrainingResult is the outcome of a training-list mutation.
type TrainingResult struct {
	TrainingID string
	Message    string
}

// ManageTraining is the capability for grouping problems into a
// judge-native training list / problem set (spec §4.3).
type ManageTraining interface {
	CreateTraining(ctx context.Context, name string, auth models.AuthCacheEntry) (TrainingResult, error)
	AddProblems(ctx context.Context, trainingID string, problemIDs []string, auth models.AuthCacheEntry) error
	GetTraining(ctx context.Context, trainingID string, auth models.AuthCacheEntry) (TrainingResult, error)
}

// SolutionData is an official reference solution an adapter can provide.
type SolutionData struct {
	Code     string
	Language string
}

// ProvideSolution is the capability for adapters that can surface an
// official editorial solution, letting the Gen stage's Solution Searcher
// skip LLM generation entirely (spec §4.3, §4.2.2 Gen step 1).
type ProvideSolution interface {
	HasOfficialSolution(ctx context.Context, id string) (bool, error)
	FetchSolution(ctx context.Context, id string) (*SolutionData, error)
}
