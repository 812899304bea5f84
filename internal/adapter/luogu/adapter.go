// Package luogu implements the Luogu (洛谷) judge adapter: a statement
// scrape grounded in the public problem page (no authentication or
// configuration required — spec §4.3's get_config_schema equivalent is
// simply empty for this adapter).
package luogu

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
const Name = "luogu"

var (
	urlIDPattern = regexp.MustCompile(`(?i)/problem/([PBUT]\d+)`)
	bareIDPattern = regexp.MustCompile(`(?i)^[PBUT]\d+$`)
	timeLimitPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(秒|s|ms)(?:[^A-Za-z]|$)`)
	memoryLimitPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(MB|KB|GB)`)
)

var sectionHeadings = map[string]string{
	"题目描述": "description",
	"问题描述": "description",
	"描述":   "description",
	"输入格式": "input",
	"输入":   "input",
	"输出格式": "output",
	"输出":   "output",
	"说明":   "hints",
	"提示":   "hints",
	"样例解释": "hints",
}

// Adapter fetches problem statements from luogu.com.cn.
type Adapter struct {
	httpClient  *http.Client
	initialized bool
}

// New builds a Luogu Adapter. httpClient defaults to a new client with a
// 30s timeout if nil (spec §4.3 Luogu grounding: 30s request timeout).
func New(httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Adapter{httpClient: httpClient}
}

func (a *Adapter) Name() string        { return Name }
func (a *Adapter) DisplayName() string { return "Luogu" }
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
	return adapter.HealthStatus{Healthy: a.initialized, Status: status, Message: "Luogu scrape adapter"}
}

func (a *Adapter) Shutdown() {}

func (a *Adapter) SupportsURL(url string) bool {
	return strings.Contains(strings.ToLower(url), "luogu.com")
}

func (a *Adapter) ParseProblemID(input string) string {
	input = strings.TrimSpace(input)
	if m := urlIDPattern.FindStringSubmatch(input); m != nil {
		return strings.ToUpper(m[1])
	}
	if bareIDPattern.MatchString(input) {
		return strings.ToUpper(input)
	}
	return ""
}

func (a *Adapter) FetchProblem(ctx context.Context, id string) (*models.ProblemData, error) {
	url := fmt.Sprintf("https://www.luogu.com.cn/problem/%s", id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("luogu: build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ojoagent/1.0)")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("luogu: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("luogu: %s returned HTTP %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("luogu: read response body: %w", err)
	}

	doc, err := htmlutil.Parse(string(body))
	if err != nil {
		return nil, fmt.Errorf("luogu: parse problem page: %w", err)
	}
	return parseProblemPage(doc, id, url), nil
}

func parseProblemPage(doc *html.Node, id, url string) *models.ProblemData {
	data := &models.ProblemData{ID: id, Source: Name, URL: url}

	if h1 := htmlutil.FindFirst(doc, "h1"); h1 != nil {
		data.Title = htmlutil.TextContent(h1)
	}

	pageText := htmlutil.TextContent(doc)
	data.TimeLimitMS = parseTimeLimitMS(pageText)
	data.MemoryLimitMB = parseMemoryLimitMB(pageText)

	var hints []string
	for _, h2 := range htmlutil.FindAllByTag(doc, "h2") {
		heading := htmlutil.TextContent(h2)
		section, recognized := matchSection(heading)
		if !recognized {
			continue
		}
		content := collectSectionBody(h2)
		switch section {
		case "description":
			data.Description = content
		case "input":
			data.InputFormat = content
		case "output":
			data.OutputFormat = content
		case "hints":
			if content != "" {
				hints = append(hints, content)
			}
		}
	}
	if len(hints) > 0 {
		data.Hints = strings.Join(hints, "\n\n")
	}

	data.Samples = extractSamples(doc)
	return data
}

func matchSection(heading string) (string, bool) {
	for needle, section := range sectionHeadings {
		if strings.Contains(heading, needle) {
			return section, true
		}
	}
	return "", false
}

// collectSectionBody gathers text from h2's following siblings up to the
// next h2, mirroring the original implementation's per-section scrape.
func collectSectionBody(h2 *html.Node) string {
	return htmlutil.SiblingsUntil(htmlutil.NextSiblingElement(h2), "h2")
}

// extractSamples pairs up <pre>/<code> blocks under 500 characters, the
// fallback strategy the original scraper also falls back to when no
// explicitly-labeled sample section is found.
func extractSamples(doc *html.Node) []models.Sample {
	var blocks []string
	var lastText string
	for _, tag := range []string{"pre", "code"} {
		for _, node := range htmlutil.FindAllByTag(doc, tag) {
			// A <code> nested inside a <pre> repeats the text the <pre>
			// already contributed; skip it rather than counting it twice.
			if tag == "code" && node.Parent != nil && node.Parent.Type == html.ElementNode && node.Parent.Data == "pre" {
				continue
			}
			text := htmlutil.TextContent(node)
			if text == "" || len(text) >= 500 || text == lastText {
				continue
			}
			blocks = append(blocks, text)
			lastText = text
		}
	}

	var samples []models.Sample
	for i := 0; i+1 < len(blocks); i += 2 {
		samples = append(samples, models.Sample{Input: blocks[i], Output: blocks[i+1]})
	}
	return samples
}

func parseTimeLimitMS(text string) int {
	m := timeLimitPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	if strings.EqualFold(m[2], "ms") {
		return int(value)
	}
	return int(value * 1000)
}

func parseMemoryLimitMB(text string) int {
	m := memoryLimitPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	switch strings.ToUpper(m[2]) {
	case "KB":
		return int(value / 1024)
	case "GB":
		return int(value * 1024)
	default:
		return int(value)
	}
}
