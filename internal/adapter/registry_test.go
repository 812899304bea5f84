package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkotake/ojoagent/internal/models"
)

type stubFetchAdapter struct {
	name     string
	priority int
	caps     []Capability
	urls     func(string) bool
}

func (s *stubFetchAdapter) Name() string             { return s.name }
func (s *stubFetchAdapter) DisplayName() string       { return s.name }
func (s *stubFetchAdapter) Priority() int             { return s.priority }
func (s *stubFetchAdapter) Capabilities() []Capability { return s.caps }
func (s *stubFetchAdapter) Initialize(InitContext) bool { return true }
func (s *stubFetchAdapter) HealthCheck() HealthStatus {
	return HealthStatus{Healthy: true, Status: HealthReady}
}
func (s *stubFetchAdapter) Shutdown() {}

func (s *stubFetchAdapter) SupportsURL(url string) bool { return s.urls(url) }
func (s *stubFetchAdapter) ParseProblemID(input string) string { return input }
func (s *stubFetchAdapter) FetchProblem(ctx context.Context, id string) (*models.ProblemData, error) {
	return nil, nil
}

func TestRegistry_GetAdapter(t *testing.T) {
	r := New()
	a := &stubFetchAdapter{name: "luogu", priority: DefaultPriority, caps: []Capability{CapFetchProblem}, urls: func(string) bool { return false }}
	r.Register(a)

	got, ok := r.GetAdapter("luogu")
	require.True(t, ok)
	assert.Equal(t, "luogu", got.Name())

	_, ok = r.GetAdapter("missing")
	assert.False(t, ok)
}

func TestRegistry_FindAdapterByURL_BreaksTiesByPriority(t *testing.T) {
	r := New()
	low := &stubFetchAdapter{name: "low", priority: 40, caps: []Capability{CapFetchProblem}, urls: func(string) bool { return true }}
	high := &stubFetchAdapter{name: "high", priority: 90, caps: []Capability{CapFetchProblem}, urls: func(string) bool { return true }}
	r.Register(low)
	r.Register(high)

	got, ok := r.FindAdapterByURL("https://example.com/problem/1")
	require.True(t, ok)
	assert.Equal(t, "high", got.Name())
}

func TestRegistry_FindAdapterByCapability_FiltersByURLWhenGiven(t *testing.T) {
	r := New()
	a := &stubFetchAdapter{name: "a", priority: DefaultPriority, caps: []Capability{CapFetchProblem}, urls: func(u string) bool { return u == "https://a.example/x" }}
	b := &stubFetchAdapter{name: "b", priority: DefaultPriority, caps: []Capability{CapFetchProblem}, urls: func(u string) bool { return false }}
	r.Register(a)
	r.Register(b)

	got, ok := r.FindAdapterByCapability(CapFetchProblem, "https://a.example/x")
	require.True(t, ok)
	assert.Equal(t, "a", got.Name())

	_, ok = r.FindAdapterByCapability(CapFetchProblem, "https://b.example/x")
	assert.False(t, ok)
}

func TestRegistry_InitializeAll_CollectsFailures(t *testing.T) {
	r := New()
	r.Register(&failingInitAdapter{name: "broken"})
	r.Register(&stubFetchAdapter{name: "ok", priority: DefaultPriority, caps: nil, urls: func(string) bool { return false }})

	failed := r.InitializeAll(context.Background())
	assert.Equal(t, []string{"broken"}, failed)

	// a failed adapter stays registered, per spec §4.3.
	_, ok := r.GetAdapter("broken")
	assert.True(t, ok)
}

type failingInitAdapter struct{ name string }

func (f *failingInitAdapter) Name() string              { return f.name }
func (f *failingInitAdapter) DisplayName() string        { return f.name }
func (f *failingInitAdapter) Priority() int              { return DefaultPriority }
func (f *failingInitAdapter) Capabilities() []Capability { return nil }
func (f *failingInitAdapter) Initialize(InitContext) bool { return false }
func (f *failingInitAdapter) HealthCheck() HealthStatus {
	return HealthStatus{Healthy: false, Status: HealthUninitialized}
}
func (f *failingInitAdapter) Shutdown() {}

func TestRequireCapability_MissingCapabilityErrors(t *testing.T) {
	a := &stubFetchAdapter{name: "nocaps", priority: DefaultPriority, caps: nil, urls: func(string) bool { return false }}
	_, err := RequireCapability[*stubFetchAdapter](a, CapFetchProblem)
	assert.Error(t, err)
}

func TestRegistry_CallRemote_PropagatesError(t *testing.T) {
	r := New()
	wantErr := assert.AnError
	err := r.CallRemote("codeforces", func() error { return wantErr })
	assert.ErrorIs(t, err, wantErr)
}

func TestRegistry_HealthCheckAll_OverlaysOpenBreaker(t *testing.T) {
	r := New()
	a := &stubFetchAdapter{name: "flaky", priority: DefaultPriority, caps: []Capability{CapFetchProblem}, urls: func(string) bool { return false }}
	r.Register(a)

	for i := 0; i < 3; i++ {
		_ = r.CallRemote("flaky", func() error { return assert.AnError })
	}

	health := r.HealthCheckAll()["flaky"]
	assert.False(t, health.Healthy)
	assert.Equal(t, HealthUnhealthy, health.Status)
}
