package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkotake/ojoagent/internal/models"
)

func sampleProblem() *models.ProblemData {
	return &models.ProblemData{
		Title:       "Two Sum",
		Description: "Find two indices that sum to target.",
		InputFormat: "n and an array",
		Samples:     []models.Sample{{Input: "4\n1 2 3 4", Output: "0 1"}},
	}
}

func TestBuildGenPrompt_IncludesStatementAndSamples(t *testing.T) {
	p := BuildGenPrompt(sampleProblem(), nil)
	assert.Contains(t, p, "Two Sum")
	assert.Contains(t, p, "Sample 1")
	assert.Contains(t, p, "generator")
}

func TestBuildSolvePrompt_IncludesReferenceSolutions(t *testing.T) {
	p := BuildSolvePrompt(sampleProblem(), nil, "known approach: two-pointer")
	assert.Contains(t, p, "two-pointer")
}

func TestWriteRetryHistory_CapsAtTwoMostRecent(t *testing.T) {
	retries := []models.RetryAttempt{
		{Attempt: 1, Verdict: "Wrong Answer", Temperature: 0.7},
		{Attempt: 2, Verdict: "TLE", Temperature: 0.55},
		{Attempt: 3, Verdict: "Compile Error", Temperature: 0.35},
	}
	p := BuildSolvePrompt(sampleProblem(), retries, "")
	assert.NotContains(t, p, "Attempt 1")
	assert.Contains(t, p, "Attempt 2")
	assert.Contains(t, p, "Attempt 3")
}

func TestExtractCode_PrefersContentOverReasoning(t *testing.T) {
	content := "```cpp\nint main(){return 0;}\n```"
	code, ok := ExtractCode(content, "```cpp\nint main(){return 1;}\n```")
	require.True(t, ok)
	assert.Equal(t, "int main(){return 0;}", code)
}

func TestExtractCode_FallsBackToReasoning(t *testing.T) {
	code, ok := ExtractCode("", "some thoughts\n```cpp\nint main(){}\n```")
	require.True(t, ok)
	assert.Equal(t, "int main(){}", code)
}

func TestExtractGeneratorAndSolution_SplitsTwoBlocks(t *testing.T) {
	content := "```cpp\n// generator\nint main(){}\n```\n```cpp\n// solution\nint main(){return 1;}\n```"
	gen, sol := ExtractGeneratorAndSolution(content, "")
	assert.Contains(t, gen, "generator")
	assert.Contains(t, sol, "solution")
}

func TestExtractLastCpp_PrefersLastBlockOverFirst(t *testing.T) {
	content := "```cpp\nint main(){return 0;}\n```\nlet me reconsider...\n```cpp\nint main(){return 1;}\n```"
	code, ok := ExtractLastCpp(content, "")
	require.True(t, ok)
	assert.Equal(t, "int main(){return 1;}", code)
}

func TestExtractLastCpp_FallsBackToReasoning(t *testing.T) {
	code, ok := ExtractLastCpp("", "first try\n```cpp\nint main(){return 0;}\n```\nfixed:\n```cpp\nint main(){return 1;}\n```")
	require.True(t, ok)
	assert.Equal(t, "int main(){return 1;}", code)
}

func TestExtractLastCpp_NoBlockFound(t *testing.T) {
	_, ok := ExtractLastCpp("no code here", "nor here")
	assert.False(t, ok)
}

func TestDetectLanguage_DefaultsToCpp(t *testing.T) {
	assert.Equal(t, "cpp", DetectLanguage("no fenced block here"))
	assert.Equal(t, "python", DetectLanguage("```python\nprint(1)\n```"))
}

func TestSanitizeCppCode_StripsStrayFences(t *testing.T) {
	code := SanitizeCppCode("```cpp\nint main(){}\n```")
	assert.Equal(t, "int main(){}", code)
}

func TestTruncateSnippet_CapsAtMaxChars(t *testing.T) {
	code := strings.Repeat("x", models.MaxRetrySnippetChars+50)
	truncated := TruncateSnippet(code)
	assert.Len(t, truncated, models.MaxRetrySnippetChars)
}

func TestRepairStructuredJSON_FixesTrailingComma(t *testing.T) {
	repaired, err := RepairStructuredJSON(`{"a": 1, "b": 2,}`)
	require.NoError(t, err)
	assert.Contains(t, repaired, `"a"`)
}
