package pipeline

import "strings"

// These classifiers inspect judge/LLM error text to pick the Solve
// stage's backoff bucket (spec §4.2.2 Solve step 9, grounded on
// solver.py's status-code checks and shsoj/status_codes.py). Judge error
// text is free-form across adapters, so substring matching against both
// the adapter's native phrasing and its common English equivalent is the
// original's own approach, not a shortcut this port invents.
func isRateLimited(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(msg, "频率") || strings.Contains(lower, "rate limit") || strings.Contains(lower, "403")
}

func isProblemNotExist(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist") || strings.Contains(msg, "不存在") || strings.Contains(lower, "404")
}

func isAuthExpired(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(msg, "登录状态已失效") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "401")
}

func isCompileErrorMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "compile error") || strings.Contains(msg, "编译错误")
}
