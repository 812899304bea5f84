package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRealID_TopLevelWins(t *testing.T) {
	id, err := ExtractRealID(map[string]any{"real_id": "P1001", "response": map[string]any{"real_id": "P9999"}})
	require.NoError(t, err)
	assert.Equal(t, "P1001", id)
}

func TestExtractRealID_FallsBackToNested(t *testing.T) {
	id, err := ExtractRealID(map[string]any{"response": map[string]any{"real_id": "P9999"}})
	require.NoError(t, err)
	assert.Equal(t, "P9999", id)
}

func TestExtractRealID_EmptyWhenNeitherPresent(t *testing.T) {
	id, err := ExtractRealID(map[string]any{"status": "success"})
	require.NoError(t, err)
	assert.Equal(t, "", id)
}
