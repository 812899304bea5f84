// Package hydrooj implements the HydroOJ-family judge adapter: cookie
// authenticated testdata upload (create-or-update), exact-title search
// used by the Pipeline Runner's upload short-circuit (spec §4.2.2 line
// 141), and solution submission + polling.
package hydrooj

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/inkotake/ojoagent/internal/adapter"
	"github.com/inkotake/ojoagent/internal/models"
)

// Name is this adapter's registry key.
const Name = "hydrooj"

// deleteBatchSize caps how many testdata filenames are deleted per
// request when replacing an existing problem's data (spec §4.2.2 Upload:
// "in batches of ≤ 20").
const deleteBatchSize = 20

var domainURLPattern = regexp.MustCompile(`/d/([^/]+)/?$`)

// Config is this adapter's per-user configuration, read fresh on every
// call rather than cached on the adapter instance (spec §4.3).
type Config struct {
	BaseURL string
	Domain  string
}

// ConfigProvider resolves the caller's HydroOJ configuration for a user,
// looked up by context.user_id on every call (spec §4.3).
type ConfigProvider interface {
	HydroOJConfig(ctx context.Context, userID int64) (Config, error)
}

// Adapter is the HydroOJ judge adapter.
type Adapter struct {
	httpClient  *http.Client
	configs     ConfigProvider
	initialized bool
}

// New builds a HydroOJ Adapter. httpClient defaults to a 30s-timeout
// client if nil.
func New(configs ConfigProvider, httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Adapter{configs: configs, httpClient: httpClient}
}

func (a *Adapter) Name() string        { return Name }
func (a *Adapter) DisplayName() string { return "HydroOJ" }
func (a *Adapter) Priority() int       { return adapter.DefaultPriority }

func (a *Adapter) Capabilities() []adapter.Capability {
	return []adapter.Capability{adapter.CapUploadData, adapter.CapSubmitSolution}
}

func (a *Adapter) Initialize(adapter.InitContext) bool {
	a.initialized = true
	return true
}

func (a *Adapter) HealthCheck() adapter.HealthStatus {
	status := adapter.HealthUninitialized
	if a.initialized {
		status = adapter.HealthReady
	}
	return adapter.HealthStatus{Healthy: a.initialized, Status: status, Message: "HydroOJ adapter (config loaded per call)"}
}

func (a *Adapter) Shutdown() {}

func (a *Adapter) SupportsFormat(kind string) bool { return kind == "zip" }

func (a *Adapter) cleanBaseURL(raw string) string {
	cleaned := strings.TrimRight(strings.TrimSpace(raw), "/")
	cleaned = domainURLPattern.ReplaceAllString(cleaned, "")
	return strings.TrimRight(cleaned, "/")
}

func (a *Adapter) config(ctx context.Context) (Config, error) {
	userID, ok := adapter.UserIDFromContext(ctx)
	if !ok {
		return Config{}, fmt.Errorf("hydrooj: missing user id in context")
	}
	cfg, err := a.configs.HydroOJConfig(ctx, userID)
	if err != nil {
		return Config{}, fmt.Errorf("hydrooj: load config for user %d: %w", userID, err)
	}
	cfg.BaseURL = a.cleanBaseURL(cfg.BaseURL)
	if cfg.BaseURL == "" || cfg.Domain == "" {
		return Config{}, fmt.Errorf("hydrooj: incomplete configuration (base_url/domain)")
	}
	return cfg, nil
}

// SearchExactTitle looks up a problem by exact title match, used by the
// Pipeline Runner's upload pre-check short-circuit (spec §4.2.2 line 141,
// S3).
func (a *Adapter) SearchExactTitle(ctx context.Context, title string, auth models.AuthCacheEntry) (realID string, found bool, err error) {
	cfg, err := a.config(ctx)
	if err != nil {
		return "", false, err
	}

	url := fmt.Sprintf("%s/d/%s/judge/search?title=%s", cfg.BaseURL, cfg.Domain, urlQueryEscape(title))
	var out struct {
		Results []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"results"`
	}
	if err := a.doJSON(ctx, http.MethodGet, url, auth, nil, &out); err != nil {
		return "", false, fmt.Errorf("hydrooj: search title: %w", err)
	}
	for _, r := range out.Results {
		if r.Title == title {
			return r.ID, true, nil
		}
	}
	return "", false, nil
}

// UploadTestcase implements adapter.UploadData (spec §4.3, §4.2.2 Upload).
func (a *Adapter) UploadTestcase(ctx context.Context, problemID, archivePath string, auth models.AuthCacheEntry, skipUpdate bool) (adapter.UploadResult, error) {
	cfg, err := a.config(ctx)
	if err != nil {
		return adapter.UploadResult{}, err
	}

	existingRealID, isUpdate, err := a.resolveExisting(ctx, problemID, auth)
	if err != nil {
		return adapter.UploadResult{}, err
	}

	if isUpdate && !skipUpdate {
		if err := a.deleteExistingTestdata(ctx, cfg, existingRealID, auth); err != nil {
			return adapter.UploadResult{}, fmt.Errorf("hydrooj: clear existing testdata: %w", err)
		}
	}

	raw, err := os.ReadFile(archivePath)
	if err != nil {
		return adapter.UploadResult{}, fmt.Errorf("hydrooj: read archive: %w", err)
	}

	url := fmt.Sprintf("%s/d/%s/judge/problem/upload", cfg.BaseURL, cfg.Domain)
	if isUpdate {
		url = fmt.Sprintf("%s/d/%s/judge/problem/%s/upload", cfg.BaseURL, cfg.Domain, existingRealID)
	}

	body, contentType, err := buildMultipartUpload(filepath.Base(archivePath), raw)
	if err != nil {
		return adapter.UploadResult{}, fmt.Errorf("hydrooj: build upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return adapter.UploadResult{}, fmt.Errorf("hydrooj: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	applyAuth(req, auth)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return adapter.UploadResult{}, fmt.Errorf("hydrooj: upload request: %w", err)
	}
	defer resp.Body.Close()

	var parsed map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return adapter.UploadResult{}, fmt.Errorf("hydrooj: decode upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return adapter.UploadResult{}, fmt.Errorf("hydrooj: upload returned HTTP %d: %v", resp.StatusCode, parsed["error"])
	}

	realID, err := adapter.ExtractRealID(parsed)
	if err != nil {
		return adapter.UploadResult{}, fmt.Errorf("hydrooj: extract real_id: %w", err)
	}
	if realID == "" {
		realID = existingRealID
	}
	if realID == "" {
		return adapter.UploadResult{}, fmt.Errorf("hydrooj: upload succeeded but no real_id was returned")
	}

	return adapter.UploadResult{Status: "success", RealID: realID, Message: fmt.Sprintf("uploaded to %s", realID)}, nil
}

// resolveExisting always reports create mode with no existing real_id:
// this adapter keeps no problemID→real_id mapping of its own (the
// mapping lives in processing_status.json, owned by internal/artifact),
// and nothing passes one in. UploadTestcase therefore never takes its
// update branch (deleteExistingTestdata plus the per-problem upload URL);
// every upload goes to the create endpoint.
func (a *Adapter) resolveExisting(ctx context.Context, problemID string, auth models.AuthCacheEntry) (realID string, isUpdate bool, err error) {
	return "", false, nil
}

func (a *Adapter) deleteExistingTestdata(ctx context.Context, cfg Config, realID string, auth models.AuthCacheEntry) error {
	names, err := a.listTestdataFiles(ctx, cfg, realID, auth)
	if err != nil {
		return err
	}

	for len(names) > 0 {
		batch := names
		if len(batch) > deleteBatchSize {
			batch = batch[:deleteBatchSize]
		}
		names = names[len(batch):]

		url := fmt.Sprintf("%s/d/%s/judge/problem/%s/testdata/delete", cfg.BaseURL, cfg.Domain, realID)
		if err := a.doJSON(ctx, http.MethodPost, url, auth, map[string]any{"files": batch}, nil); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) listTestdataFiles(ctx context.Context, cfg Config, realID string, auth models.AuthCacheEntry) ([]string, error) {
	url := fmt.Sprintf("%s/d/%s/judge/problem/%s/testdata", cfg.BaseURL, cfg.Domain, realID)
	var out struct {
		Files []string `json:"files"`
	}
	if err := a.doJSON(ctx, http.MethodGet, url, auth, nil, &out); err != nil {
		return nil, fmt.Errorf("hydrooj: list existing testdata: %w", err)
	}
	return out.Files, nil
}

// SubmitSolution implements adapter.SubmitSolution.
func (a *Adapter) SubmitSolution(ctx context.Context, problemID, code, languageKey string, auth models.AuthCacheEntry) (adapter.SubmissionResult, error) {
	cfg, err := a.config(ctx)
	if err != nil {
		return adapter.SubmissionResult{}, err
	}

	url := fmt.Sprintf("%s/d/%s/judge/problem/%s/submit", cfg.BaseURL, cfg.Domain, problemID)
	var out struct {
		SubmissionID string `json:"submission_id"`
		RecordURL    string `json:"record_url"`
	}
	if err := a.doJSON(ctx, http.MethodPost, url, auth, map[string]any{"lang": languageKey, "code": code}, &out); err != nil {
		return adapter.SubmissionResult{}, fmt.Errorf("hydrooj: submit: %w", err)
	}
	return adapter.SubmissionResult{Status: "submitted", SubmissionID: out.SubmissionID, RecordURL: out.RecordURL}, nil
}

// GetSubmissionStatus implements adapter.SubmitSolution.
func (a *Adapter) GetSubmissionStatus(ctx context.Context, submissionID string, auth models.AuthCacheEntry) (adapter.SubmissionStatus, error) {
	cfg, err := a.config(ctx)
	if err != nil {
		return adapter.SubmissionStatus{}, err
	}

	url := fmt.Sprintf("%s/d/%s/judge/submission/%s", cfg.BaseURL, cfg.Domain, submissionID)
	var raw map[string]any
	if err := a.doJSON(ctx, http.MethodGet, url, auth, nil, &raw); err != nil {
		return adapter.SubmissionStatus{}, fmt.Errorf("hydrooj: poll submission: %w", err)
	}

	status, _ := raw["status"].(string)
	return adapter.SubmissionStatus{
		Status:     status,
		IsAccepted: status == "Accepted",
		Raw:        raw,
	}, nil
}

func (a *Adapter) SupportedLanguages() []string {
	return []string{"cpp", "cpp14", "cpp17", "cpp20", "python3"}
}

func (a *Adapter) GetDefaultLanguage(hint string) string {
	if hint != "" {
		return hint
	}
	return "cpp17"
}

func (a *Adapter) doJSON(ctx context.Context, method, url string, auth models.AuthCacheEntry, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	applyAuth(req, auth)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func applyAuth(req *http.Request, auth models.AuthCacheEntry) {
	if auth.Token != "" {
		req.Header.Set("Cookie", auth.Token)
	}
}

func buildMultipartUpload(filename string, data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func urlQueryEscape(s string) string {
	return strings.NewReplacer(" ", "%20", "&", "%26", "#", "%23").Replace(s)
}
