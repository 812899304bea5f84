package adapter

import "github.com/inkotake/ojoagent/internal/problemid"

// ProblemIDRegistry adapts a Registry to problemid.Registry: the Problem-ID
// Resolver (C4) only ever needs an adapter's FetchProblem-capability
// methods (SupportsURL/ParseProblemID) plus its name, so lookups that hit
// an adapter with no FetchProblem capability report "not found" rather
// than panicking on a failed assertion.
type ProblemIDRegistry struct {
	*Registry
}

func (r ProblemIDRegistry) GetAdapter(name string) (problemid.Adapter, bool) {
	a, ok := r.Registry.GetAdapter(name)
	if !ok {
		return nil, false
	}
	pa, ok := a.(problemid.Adapter)
	return pa, ok
}

func (r ProblemIDRegistry) FindAdapterByURL(url string) (problemid.Adapter, bool) {
	a, ok := r.Registry.FindAdapterByURL(url)
	if !ok {
		return nil, false
	}
	pa, ok := a.(problemid.Adapter)
	return pa, ok
}
