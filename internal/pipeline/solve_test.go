package pipeline

import (
	"testing"

	"github.com/inkotake/ojoagent/internal/adapter"
)

func TestIsTerminalVerdict(t *testing.T) {
	cases := []struct {
		status string
		want   bool
	}{
		{"Judging", false},
		{"Pending", false},
		{"Compiling", false},
		{"Accepted", true},
		{"Wrong Answer", true},
		{"Compile Error", true},
		{"Time Limit Exceeded", true},
	}
	for _, c := range cases {
		got := isTerminalVerdict(adapter.SubmissionStatus{Status: c.status})
		if got != c.want {
			t.Errorf("isTerminalVerdict(%q) = %v, want %v", c.status, got, c.want)
		}
	}
}
