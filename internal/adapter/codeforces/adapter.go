// Package codeforces implements the Codeforces judge adapter: a
// statement scrape against the public problemset pages. No
// authentication is required for FetchProblem.
package codeforces

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/inkotake/ojoagent/internal/adapter"
	"github.com/inkotake/ojoagent/internal/adapter/htmlutil"
	"github.com/inkotake/ojoagent/internal/models"
)

// Name is this adapter's registry key.
const Name = "codeforces"

var (
	urlIDPattern  = regexp.MustCompile(`/(?:problem|contest)/(\d+)/(?:problem/)?([A-Z]\d?)`)
	bareIDPattern = regexp.MustCompile(`^\d+[A-Z]\d?$`)
	idSplitPattern = regexp.MustCompile(`^(\d+)([A-Z]\d?)$`)
	timeLimitPattern   = regexp.MustCompile(`(?i)([\d.]+)\s*second`)
	memoryLimitPattern = regexp.MustCompile(`(?i)([\d.]+)\s*(megabytes?|gigabytes?|MB|GB)`)
)

// Adapter fetches problem statements from codeforces.com.
type Adapter struct {
	httpClient  *http.Client
	initialized bool
}

// New builds a Codeforces Adapter.
func New(httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Adapter{httpClient: httpClient}
}

func (a *Adapter) Name() string        { return Name }
func (a *Adapter) DisplayName() string { return "Codeforces" }
func (a *Adapter) Priority() int       { return adapter.DefaultPriority }

func (a *Adapter) Capabilities() []adapter.Capability {
	return []adapter.Capability{adapter.CapFetchProblem}
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
	return adapter.HealthStatus{Healthy: a.initialized, Status: status, Message: "Codeforces scrape adapter"}
}

func (a *Adapter) Shutdown() {}

func (a *Adapter) SupportsURL(url string) bool {
	return strings.Contains(strings.ToLower(url), "codeforces.com")
}

func (a *Adapter) ParseProblemID(input string) string {
	input = strings.TrimSpace(input)
	if strings.Contains(input, "http") {
		if m := urlIDPattern.FindStringSubmatch(input); m != nil {
			return m[1] + m[2]
		}
		return ""
	}
	if bareIDPattern.MatchString(input) {
		return input
	}
	return ""
}

func splitProblemID(id string) (contestID, letter string, err error) {
	m := idSplitPattern.FindStringSubmatch(id)
	if m == nil {
		return "", "", fmt.Errorf("codeforces: invalid problem id %q", id)
	}
	return m[1], m[2], nil
}

func (a *Adapter) FetchProblem(ctx context.Context, id string) (*models.ProblemData, error) {
	contestID, letter, err := splitProblemID(id)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("https://codeforces.com/problemset/problem/%s/%s", contestID, letter)
	body, finalURL, err := a.getWithContestFallback(ctx, url, contestID, letter)
	if err != nil {
		return nil, err
	}

	doc, err := htmlutil.Parse(string(body))
	if err != nil {
		return nil, fmt.Errorf("codeforces: parse problem page: %w", err)
	}
	return parseProblemPage(doc, id, finalURL, contestID), nil
}

func (a *Adapter) getWithContestFallback(ctx context.Context, url, contestID, letter string) ([]byte, string, error) {
	body, status, err := a.get(ctx, url)
	if err == nil && status == http.StatusOK {
		return body, url, nil
	}
	if status != http.StatusNotFound {
		if err != nil {
			return nil, "", fmt.Errorf("codeforces: fetch %s: %w", url, err)
		}
		return nil, "", fmt.Errorf("codeforces: %s returned HTTP %d", url, status)
	}

	altURL := fmt.Sprintf("https://codeforces.com/contest/%s/problem/%s", contestID, letter)
	body, status, err = a.get(ctx, altURL)
	if err != nil {
		return nil, "", fmt.Errorf("codeforces: fetch %s: %w", altURL, err)
	}
	if status != http.StatusOK {
		return nil, "", fmt.Errorf("codeforces: %s returned HTTP %d", altURL, status)
	}
	return body, altURL, nil
}

func (a *Adapter) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ojoagent/1.0)")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

var problemIDPrefixPattern = regexp.MustCompile(`^[A-Z]\d?\.\s*`)

func parseProblemPage(doc *html.Node, id, url, contestID string) *models.ProblemData {
	data := &models.ProblemData{
		ID:     id,
		Source: Name,
		URL:    url,
		Tags:   []string{},
		Extra:  map[string]any{"oj_type": Name, "contest_id": contestID},
	}

	statement := htmlutil.FindByClass(doc, "", "problem-statement")
	if statement == nil {
		return data
	}

	if title := htmlutil.FindByClass(statement, "", "title"); title != nil {
		data.Title = problemIDPrefixPattern.ReplaceAllString(htmlutil.TextContent(title), "")
	}

	pageText := htmlutil.TextContent(statement)
	if m := timeLimitPattern.FindStringSubmatch(pageText); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			data.TimeLimitMS = int(v * 1000)
		}
	}
	if m := memoryLimitPattern.FindStringSubmatch(pageText); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			if strings.HasPrefix(strings.ToLower(m[2]), "g") {
				data.MemoryLimitMB = int(v * 1024)
			} else {
				data.MemoryLimitMB = int(v)
			}
		}
	}

	parseSections(statement, data)
	data.Samples = extractSamples(statement)
	return data
}

// parseSections walks each direct child <div> of .problem-statement,
// attributing it to description/input/output by its .section-title,
// mirroring the original scraper's section-by-section pass.
func parseSections(statement *html.Node, data *models.ProblemData) {
	for c := statement.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "div" {
			continue
		}
		header := htmlutil.FindByClass(c, "", "section-title")
		if header == nil {
			continue
		}
		headerText := strings.ToLower(htmlutil.TextContent(header))
		content := strings.TrimSpace(strings.Replace(htmlutil.TextContent(c), htmlutil.TextContent(header), "", 1))

		switch {
		case strings.Contains(headerText, "input"):
			data.InputFormat = content
		case strings.Contains(headerText, "output"):
			data.OutputFormat = content
		case data.Description == "":
			data.Description = content
		}
	}
}

func extractSamples(statement *html.Node) []models.Sample {
	sampleTest := htmlutil.FindByClass(statement, "", "sample-test")
	if sampleTest == nil {
		return nil
	}
	inputBlock := htmlutil.FindByClass(sampleTest, "", "input")
	outputBlock := htmlutil.FindByClass(sampleTest, "", "output")
	if inputBlock == nil || outputBlock == nil {
		return nil
	}

	inputs := htmlutil.FindAllByTag(inputBlock, "pre")
	outputs := htmlutil.FindAllByTag(outputBlock, "pre")

	n := len(inputs)
	if len(outputs) < n {
		n = len(outputs)
	}
	samples := make([]models.Sample, 0, n)
	for i := 0; i < n; i++ {
		samples = append(samples, models.Sample{
			Input:  htmlutil.TextContent(inputs[i]),
			Output: htmlutil.TextContent(outputs[i]),
		})
	}
	return samples
}
