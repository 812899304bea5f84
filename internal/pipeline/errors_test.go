package pipeline

import "testing"

func TestIsRateLimited(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"请求频率过快，请稍后再试", true},
		{"rate limit exceeded, try again later", true},
		{"HTTP 403 forbidden", true},
		{"Wrong Answer on test 3", false},
	}
	for _, c := range cases {
		if got := isRateLimited(c.msg); got != c.want {
			t.Errorf("isRateLimited(%q) = %v, want %v", c.msg, got, c.want)
		}
	}
}

func TestIsProblemNotExist(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"题目不存在", true},
		{"problem does not exist", true},
		{"404 not found", true},
		{"Time Limit Exceeded", false},
	}
	for _, c := range cases {
		if got := isProblemNotExist(c.msg); got != c.want {
			t.Errorf("isProblemNotExist(%q) = %v, want %v", c.msg, got, c.want)
		}
	}
}

func TestIsAuthExpired(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"登录状态已失效，请重新登录", true},
		{"401 unauthorized", true},
		{"Accepted", false},
	}
	for _, c := range cases {
		if got := isAuthExpired(c.msg); got != c.want {
			t.Errorf("isAuthExpired(%q) = %v, want %v", c.msg, got, c.want)
		}
	}
}

func TestIsCompileErrorMessage(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"编译错误: expected ';'", true},
		{"Compile Error", true},
		{"Wrong Answer", false},
	}
	for _, c := range cases {
		if got := isCompileErrorMessage(c.msg); got != c.want {
			t.Errorf("isCompileErrorMessage(%q) = %v, want %v", c.msg, got, c.want)
		}
	}
}
