package prompt

import (
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var fencedBlockPattern = regexp.MustCompile("(?s)```([a-zA-Z0-9+]*)\\s*\\n(.*?)```")

type codeBlock struct {
	lang string
	code string
}

func fencedBlocks(text string) []codeBlock {
	matches := fencedBlockPattern.FindAllStringSubmatch(text, -1)
	blocks := make([]codeBlock, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, codeBlock{lang: strings.ToLower(strings.TrimSpace(m[1])), code: strings.TrimSpace(m[2])})
	}
	return blocks
}

// cppTags are the fenced-block language tags this repo treats as C++.
var cppTags = map[string]bool{"cpp": true, "c++": true, "cxx": true, "": true}

// ExtractCode pulls the first C++ fenced code block out of content,
// falling back to reasoning if content has none (spec §4.6 "content
// recovery", reused here for the gen/solve stages' own extraction rather
// than llmstream's, since this extraction also needs to tell a generator
// block apart from a solution block).
func ExtractCode(content, reasoning string) (code string, ok bool) {
	if code, ok := extractFirstCpp(content); ok {
		return code, true
	}
	return extractFirstCpp(reasoning)
}

func extractFirstCpp(text string) (string, bool) {
	for _, b := range fencedBlocks(text) {
		if cppTags[b.lang] && b.code != "" {
			return b.code, true
		}
	}
	return "", false
}

// ExtractLastCpp pulls the last C++ fenced code block out of content,
// falling back to reasoning if content has none a C++ block. Used for the
// Gen stage's single re-extraction recovery attempt (spec §4.2.2 Gen step
// 5) when the first-extracted block fails its compile-check: a model that
// second-guesses itself mid-response often repeats a corrected block
// later in the same completion.
func ExtractLastCpp(content, reasoning string) (string, bool) {
	if code, ok := extractLastCpp(content); ok {
		return code, true
	}
	return extractLastCpp(reasoning)
}

func extractLastCpp(text string) (string, bool) {
	blocks := fencedBlocks(text)
	for i := len(blocks) - 1; i >= 0; i-- {
		if cppTags[blocks[i].lang] && blocks[i].code != "" {
			return blocks[i].code, true
		}
	}
	return "", false
}

// ExtractGeneratorAndSolution pulls the Gen stage's two expected fenced
// blocks — generator first, reference solution second — out of content
// (spec §4.2.2 Gen step 4: "LLM emits a generator and, optionally, a
// solution.cpp"). Either return value may be empty if content only
// produced one block.
func ExtractGeneratorAndSolution(content, reasoning string) (generator, solution string) {
	blocks := fencedBlocks(content)
	if len(blocks) == 0 {
		blocks = fencedBlocks(reasoning)
	}
	var cppBlocks []string
	for _, b := range blocks {
		if cppTags[b.lang] && b.code != "" {
			cppBlocks = append(cppBlocks, b.code)
		}
	}
	if len(cppBlocks) > 0 {
		generator = cppBlocks[0]
	}
	if len(cppBlocks) > 1 {
		solution = cppBlocks[1]
	}
	return generator, solution
}

// DetectLanguage inspects the fenced block's language tag to decide which
// isolate the generator needs (SPEC_FULL §12, grounded on
// services/generator.py's _detect_language). Untagged blocks default to
// "cpp" since that's the only generator language this repo's Toolchain
// actually compiles and runs.
func DetectLanguage(text string) string {
	blocks := fencedBlocks(text)
	if len(blocks) == 0 {
		return "cpp"
	}
	switch blocks[0].lang {
	case "python", "py":
		return "python"
	case "cpp", "c++", "cxx", "":
		return "cpp"
	default:
		return blocks[0].lang
	}
}

// SanitizeCppCode strips any stray fence markers or leading/trailing
// whitespace an extraction left behind (spec §4.2.2 Gen step 4, grounded
// on solver.py's sanitize_cpp_code).
func SanitizeCppCode(code string) string {
	code = strings.TrimSpace(code)
	code = strings.TrimPrefix(code, "```cpp")
	code = strings.TrimPrefix(code, "```c++")
	code = strings.TrimPrefix(code, "```")
	code = strings.TrimSuffix(code, "```")
	return strings.TrimSpace(code)
}

// RepairStructuredJSON repairs and parses near-miss JSON an LLM emits when
// asked for structured output (e.g. the Solution Searcher's summary-LLM
// response), before handing it to encoding/json (spec SPEC_FULL §11: "the
// only structured responses this repo asks an LLM for are the Solution
// Searcher's summarized-result payloads").
func RepairStructuredJSON(raw string) (string, error) {
	return jsonrepair.JSONRepair(raw)
}
