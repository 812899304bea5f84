// Package prompt is the Prompt/Response Layer (C10): it assembles the
// gen-stage and solve-stage prompts from normalized problem data and
// retry history, detects a generated code block's source language, and
// extracts/sanitizes code out of an LLM's streamed response (spec §4.2.2,
// §4.2.4; SPEC_FULL §12 "Generator language detection").
//
// Grounded on _examples/original_source/src/services/solver.py's
// build_prompt_for_solution and _generate_solution, and
// services/generator.py's _detect_language (not carried verbatim — this
// repo never executes Python generators, but the same fenced-language-tag
// inspection decides which toolchain step a generated snippet needs).
package prompt

import (
	"fmt"
	"strings"

	"github.com/inkotake/ojoagent/internal/models"
)

// GenSystemPrompt is the fixed system prompt for the Gen stage (spec
// §4.2.2 Gen step 3 "Prompt Provider instruction").
const GenSystemPrompt = `You are a competitive-programming test data generator author. ` +
	`Given a problem statement, write a single self-contained C++17 program that reads no ` +
	`input and prints one random valid test case to stdout on each run, respecting every ` +
	`constraint in the statement. If a reference solution is requested, also emit a second ` +
	`fenced C++ block containing a correct, reasonably efficient solution.cpp. Reply with ` +
	`fenced code blocks only, one per file.`

// SolveSystemPrompt is the fixed system prompt for the Solve stage (spec
// §4.2.2 Solve step 2).
const SolveSystemPrompt = `You are a competitive-programming contestant. Given a problem ` +
	`statement, write a single self-contained, correct, and reasonably efficient C++17 ` +
	`solution that reads from stdin and writes to stdout. Reply with exactly one fenced C++ ` +
	`code block containing the full program.`

// BuildGenPrompt assembles the Gen stage's user prompt: statement,
// samples, retry history (if any), then the fixed task instruction.
func BuildGenPrompt(problem *models.ProblemData, retries []models.RetryAttempt) string {
	var b strings.Builder
	writeStatement(&b, problem)
	writeRetryHistory(&b, retries)
	b.WriteString("\n## Task\n")
	b.WriteString("Write a C++17 test-data generator for this problem. It must take no input ")
	b.WriteString("and print exactly one valid random test case to stdout per run. Also include a ")
	b.WriteString("correct reference solution (solution.cpp) in a second fenced code block.\n")
	return b.String()
}

// BuildSolvePrompt assembles the Solve stage's user prompt: statement,
// samples, retry history, optional reference-solution excerpts the
// Solution Searcher hook surfaced, then the fixed task instruction (spec
// §4.2.2 Solve step 2, grounded on solver.py's build_prompt_for_solution).
func BuildSolvePrompt(problem *models.ProblemData, retries []models.RetryAttempt, referenceSolutions string) string {
	var b strings.Builder
	writeStatement(&b, problem)
	writeRetryHistory(&b, retries)
	if referenceSolutions != "" {
		b.WriteString("\n## Reference material\n")
		b.WriteString(referenceSolutions)
		b.WriteString("\n")
	}
	b.WriteString("\n## Task\n")
	b.WriteString("Write a correct, efficient C++17 solution for this problem.\n")
	return b.String()
}

func writeStatement(b *strings.Builder, problem *models.ProblemData) {
	fmt.Fprintf(b, "# %s\n\n", problem.Title)
	if problem.Description != "" {
		b.WriteString("## Description\n")
		b.WriteString(problem.Description)
		b.WriteString("\n\n")
	}
	if problem.InputFormat != "" {
		b.WriteString("## Input\n")
		b.WriteString(problem.InputFormat)
		b.WriteString("\n\n")
	}
	if problem.OutputFormat != "" {
		b.WriteString("## Output\n")
		b.WriteString(problem.OutputFormat)
		b.WriteString("\n\n")
	}
	for i, sample := range problem.Samples {
		fmt.Fprintf(b, "### Sample %d\nInput:\n```\n%s\n```\nOutput:\n```\n%s\n```\n\n",
			i+1, sample.Input, sample.Output)
	}
	if problem.Hints != "" {
		b.WriteString("## Hints\n")
		b.WriteString(problem.Hints)
		b.WriteString("\n\n")
	}
}

// writeRetryHistory renders the capped retry-context protocol (spec
// §4.2.4): at most models.MaxRetryContextEntries entries, each with its
// verdict/error, a truncated code snippet, and the temperature used.
func writeRetryHistory(b *strings.Builder, retries []models.RetryAttempt) {
	if len(retries) == 0 {
		return
	}
	start := 0
	if len(retries) > models.MaxRetryContextEntries {
		start = len(retries) - models.MaxRetryContextEntries
	}
	b.WriteString("\n## Previous attempts\n")
	for _, r := range retries[start:] {
		fmt.Fprintf(b, "### Attempt %d (temperature=%.2f)\n", r.Attempt, r.Temperature)
		if r.Verdict != "" {
			fmt.Fprintf(b, "Result: %s\n", r.Verdict)
		}
		if r.Snippet != "" {
			fmt.Fprintf(b, "Code:\n```cpp\n%s\n```\n", r.Snippet)
		}
	}
}

// TruncateSnippet trims code to models.MaxRetrySnippetChars for the next
// retry entry (spec §4.2.4).
func TruncateSnippet(code string) string {
	if len(code) <= models.MaxRetrySnippetChars {
		return code
	}
	return code[:models.MaxRetrySnippetChars]
}
