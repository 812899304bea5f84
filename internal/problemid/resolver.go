// Package problemid is the Problem-ID Resolver (C4): it maps heterogeneous
// user input — URLs, bare numeric/alphanumeric origin ids, or a manual-paste
// marker — onto the canonical `<adapter_name>_<origin_id>` key every other
// component addresses a problem by, and derives the on-disk workspace path
// from it.
package problemid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/inkotake/ojoagent/internal/artifact"
)

var (
	// ErrEmptyInput is returned when Canonicalize is given a blank string.
	ErrEmptyInput = errors.New("problemid: empty input")

	// ErrUnresolvable is returned when no adapter can parse the input into
	// an origin id.
	ErrUnresolvable = errors.New("problemid: could not resolve to a canonical id")

	// ErrAdapterNotFound is returned when adapterHint names an adapter the
	// registry doesn't know.
	ErrAdapterNotFound = errors.New("problemid: adapter not found")
)

// ManualAdapterName is the pseudo-adapter for manually pasted problem
// statements (spec glossary: "manual_<timestamp>").
const ManualAdapterName = "manual"

// Adapter is the subset of an adapter's FetchProblem capability the
// resolver needs. internal/adapter.Adapter implements it structurally;
// this package never imports internal/adapter, so there is no cycle.
type Adapter interface {
	Name() string
	SupportsURL(url string) bool
	ParseProblemID(input string) string
}

// Registry is the subset of the Adapter Registry (C5) the resolver needs.
type Registry interface {
	GetAdapter(name string) (Adapter, bool)
	FindAdapterByURL(url string) (Adapter, bool)
}

// Resolver canonicalizes problem input against a Registry.
type Resolver struct {
	registry Registry
}

// New builds a Resolver backed by registry.
func New(registry Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Canonicalize resolves raw user input to "<adapter_name>_<origin_id>".
// adapterHint is the already-decided adapter (task-level override > user
// preference, spec §4.2.2 Fetch); pass "" to auto-detect by URL.
//
// If raw is already canonical for a known adapter, it is returned
// unchanged — this is what makes Canonicalize(Canonicalize(x)) == Canonicalize(x)
// (spec §8.2) hold without the caller needing to track whether a value has
// already been through this function.
func (r *Resolver) Canonicalize(ctx context.Context, adapterHint, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyInput
	}

	if owner, origin, ok := r.splitCanonical(raw); ok {
		return owner + "_" + origin, nil
	}

	adapter, err := r.resolveAdapter(adapterHint, raw)
	if err != nil {
		return "", err
	}

	originID := adapter.ParseProblemID(raw)
	if originID == "" {
		return "", fmt.Errorf("%w: adapter %q could not parse %q", ErrUnresolvable, adapter.Name(), raw)
	}
	return adapter.Name() + "_" + originID, nil
}

// splitCanonical reports whether raw is already "<knownAdapter>_<rest>".
func (r *Resolver) splitCanonical(raw string) (owner, origin string, ok bool) {
	prefix, rest, found := strings.Cut(raw, "_")
	if !found || rest == "" {
		return "", "", false
	}
	if _, exists := r.registry.GetAdapter(prefix); !exists {
		return "", "", false
	}
	return prefix, rest, true
}

func (r *Resolver) resolveAdapter(adapterHint, raw string) (Adapter, error) {
	if adapterHint != "" {
		adapter, ok := r.registry.GetAdapter(adapterHint)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrAdapterNotFound, adapterHint)
		}
		return adapter, nil
	}

	if adapter, ok := r.registry.FindAdapterByURL(raw); ok {
		return adapter, nil
	}
	return nil, fmt.Errorf("%w: no adapter hint and %q does not match any adapter's URL pattern", ErrUnresolvable, raw)
}

// NewManualID builds a canonical id for a manually pasted problem
// statement: "manual_<unix milli timestamp>". Callers pass the current
// time rather than this package reaching for the clock itself, matching
// how the rest of this repository threads time through for reproducible
// tests.
func NewManualID(now time.Time) string {
	return fmt.Sprintf("%s_%d", ManualAdapterName, now.UnixMilli())
}

// WorkspaceDir derives the on-disk workspace path for a canonical problem
// id, delegating to internal/artifact so the layout is defined in exactly
// one place (spec §4.5).
func WorkspaceDir(root string, userID int64, canonicalID string) string {
	return artifact.Dir(root, userID, canonicalID)
}
