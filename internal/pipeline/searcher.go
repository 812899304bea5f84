package pipeline

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SolutionSearcher is the optional Solution Searcher hook (spec §4.2.3):
// an opaque prompt-enrichment step that, given a problem's title and
// description, returns reference-solution text to fold into the Gen/
// Solve prompts. The runner never inspects what backs it — web search,
// a vector store, a curated editorial index — it only calls Search and
// treats a non-nil error as "skip enrichment, don't fail the stage"
// (spec §4.2.3: searcher failures are logged, never fatal).
type SolutionSearcher interface {
	Search(ctx context.Context, canonicalID, title, description string) (string, error)
}

// DefaultSearcherCacheSize bounds the caching wrapper's per-process
// result cache (SPEC_FULL §12 "Solution Searcher result caching": the
// original caches a fetched reference solution per canonical problem ID
// for the process lifetime, LRU-capped).
const DefaultSearcherCacheSize = 256

// cachingSearcher wraps a SolutionSearcher with a per-canonical-id LRU
// cache so repeated gen/solve attempts on the same problem don't re-run
// the (typically expensive) search every retry.
type cachingSearcher struct {
	inner SolutionSearcher
	cache *lru.Cache[string, string]
}

// NewCachingSearcher wraps inner with an LRU result cache bounded at
// size (use DefaultSearcherCacheSize when 0).
func NewCachingSearcher(inner SolutionSearcher, size int) SolutionSearcher {
	if inner == nil {
		return nil
	}
	if size <= 0 {
		size = DefaultSearcherCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		panic(err)
	}
	return &cachingSearcher{inner: inner, cache: cache}
}

func (s *cachingSearcher) Search(ctx context.Context, canonicalID, title, description string) (string, error) {
	if cached, ok := s.cache.Get(canonicalID); ok {
		return cached, nil
	}
	result, err := s.inner.Search(ctx, canonicalID, title, description)
	if err != nil {
		return "", err
	}
	s.cache.Add(canonicalID, result)
	return result, nil
}
