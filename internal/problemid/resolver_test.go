package problemid

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	name       string
	urlPrefix  string
	parsedFrom map[string]string
}

func (a stubAdapter) Name() string { return a.name }

func (a stubAdapter) SupportsURL(url string) bool {
	return a.urlPrefix != "" && len(url) >= len(a.urlPrefix) && url[:len(a.urlPrefix)] == a.urlPrefix
}

func (a stubAdapter) ParseProblemID(input string) string {
	return a.parsedFrom[input]
}

type stubRegistry struct {
	adapters map[string]stubAdapter
}

func (r stubRegistry) GetAdapter(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

func (r stubRegistry) FindAdapterByURL(url string) (Adapter, bool) {
	for _, a := range r.adapters {
		if a.SupportsURL(url) {
			return a, true
		}
	}
	return nil, false
}

func newRegistry() stubRegistry {
	return stubRegistry{adapters: map[string]stubAdapter{
		"codeforces": {
			name:      "codeforces",
			urlPrefix: "https://codeforces.com/",
			parsedFrom: map[string]string{
				"https://codeforces.com/problemset/problem/1899/A": "1899A",
				"1899A": "1899A",
			},
		},
		"luogu": {
			name:      "luogu",
			urlPrefix: "https://www.luogu.com.cn/",
			parsedFrom: map[string]string{
				"https://www.luogu.com.cn/problem/P1000": "P1000",
			},
		},
	}}
}

func TestCanonicalize_FromURL(t *testing.T) {
	r := New(newRegistry())
	id, err := r.Canonicalize(context.Background(), "", "https://codeforces.com/problemset/problem/1899/A")
	require.NoError(t, err)
	assert.Equal(t, "codeforces_1899A", id)
}

func TestCanonicalize_FromBareIDWithAdapterHint(t *testing.T) {
	r := New(newRegistry())
	id, err := r.Canonicalize(context.Background(), "codeforces", "1899A")
	require.NoError(t, err)
	assert.Equal(t, "codeforces_1899A", id)
}

func TestCanonicalize_IsIdempotent(t *testing.T) {
	r := New(newRegistry())
	once, err := r.Canonicalize(context.Background(), "", "https://www.luogu.com.cn/problem/P1000")
	require.NoError(t, err)

	twice, err := r.Canonicalize(context.Background(), "", once)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestCanonicalize_UnknownAdapterHint(t *testing.T) {
	r := New(newRegistry())
	_, err := r.Canonicalize(context.Background(), "vjudge", "1899A")
	assert.ErrorIs(t, err, ErrAdapterNotFound)
}

func TestCanonicalize_NoMatchingAdapter(t *testing.T) {
	r := New(newRegistry())
	_, err := r.Canonicalize(context.Background(), "", "https://unknownjudge.example/problem/1")
	assert.ErrorIs(t, err, ErrUnresolvable)
}

func TestCanonicalize_EmptyInput(t *testing.T) {
	r := New(newRegistry())
	_, err := r.Canonicalize(context.Background(), "", "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestNewManualID_UsesAdapterPrefixAndTimestamp(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	id := NewManualID(now)
	assert.Equal(t, "manual_1785499200000", id)
}

func TestWorkspaceDir_DelegatesToArtifact(t *testing.T) {
	dir := WorkspaceDir("/workspace", 7, "codeforces_1899A")
	assert.Contains(t, dir, "user_7")
	assert.Contains(t, dir, "problem_codeforces_1899A")
}
