package llmstream

import "regexp"

// fencedCodeBlockPattern matches a ``` ... ``` fenced block, with an
// optional language tag on the opening fence.
var fencedCodeBlockPattern = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\\n(.*?)```")

// recoverContentFromReasoning implements spec §4.6's "Content recovery":
// if content came back empty but reasoning didn't, extract the last
// fenced code block from reasoning. Reasoning models occasionally emit
// code only inside their thought stream. Returns ("", false) if no
// fenced block is present.
func recoverContentFromReasoning(reasoning string) (string, bool) {
	matches := fencedCodeBlockPattern.FindAllStringSubmatch(reasoning, -1)
	if len(matches) == 0 {
		return "", false
	}
	last := matches[len(matches)-1][1]
	if last == "" {
		return "", false
	}
	return last, true
}
