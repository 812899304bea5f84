package adapter

import (
	"fmt"

	"github.com/itchyny/gojq"
)

// realIDQueries is the priority-ordered extraction chain from spec §4.2.3
// Upload: a top-level "real_id" field wins, then a nested "response.real_id",
// and the caller falls back to URL-parsing the adapter's own response only
// if both come back empty.
var realIDQueries = []string{".real_id", ".response.real_id"}

// ExtractRealID walks raw (an unmarshalled JSON response, e.g.
// map[string]any) through the priority chain and returns the first
// non-empty string hit. An empty return with no error means "try the
// adapter URL-parse fallback", per spec.
func ExtractRealID(raw any) (string, error) {
	for _, src := range realIDQueries {
		query, err := gojq.Parse(src)
		if err != nil {
			return "", fmt.Errorf("parse real_id query %q: %w", src, err)
		}
		iter := query.Run(raw)
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				if err != nil {
					break
				}
				continue
			}
			if s, ok := v.(string); ok && s != "" {
				return s, nil
			}
		}
	}
	return "", nil
}
