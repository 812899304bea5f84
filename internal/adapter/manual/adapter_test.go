package manual

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkotake/ojoagent/internal/adapter"
)

func TestParseProblemID_RequiresManualScheme(t *testing.T) {
	a := New(t.TempDir())
	assert.Equal(t, "abc", a.ParseProblemID("manual://abc"))
	assert.Equal(t, "", a.ParseProblemID("https://example.com/abc"))
	assert.Equal(t, "", a.ParseProblemID("manual://"))
}

func TestSupportsURL(t *testing.T) {
	a := New(t.TempDir())
	assert.True(t, a.SupportsURL("manual://manual_temp_1"))
	assert.False(t, a.SupportsURL("https://codeforces.com/"))
}

func TestFetchProblem_PlainTextPaste(t *testing.T) {
	a := New(t.TempDir())
	ctx := adapter.WithUserID(context.Background(), 1)

	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	tempID, err := a.StageRawPaste(1, "Two Sum\nGiven an array, find two numbers that sum to target.", now)
	require.NoError(t, err)

	data, err := a.FetchProblem(ctx, tempID)
	require.NoError(t, err)
	assert.Equal(t, "Two Sum", data.Title)
	assert.Contains(t, data.Description, "find two numbers")
	assert.Equal(t, "manual", data.Source)

	// Second fetch reads the saved, already-formatted copy — no staged
	// file remains to format again.
	data2, err := a.FetchProblem(ctx, tempID)
	require.NoError(t, err)
	assert.Equal(t, data.Title, data2.Title)
}

func TestFetchProblem_HTMLPaste(t *testing.T) {
	a := New(t.TempDir())
	ctx := adapter.WithUserID(context.Background(), 2)

	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	html := `<html><head><title>ignored</title></head><body><article><h1>Array Sum</h1><p>Compute the sum of an array of up to one hundred integers and print the result on a single line.</p></article></body></html>`
	tempID, err := a.StageRawPaste(2, html, now)
	require.NoError(t, err)

	data, err := a.FetchProblem(ctx, tempID)
	require.NoError(t, err)
	assert.Contains(t, data.Description, "sum of an array")
}

func TestFetchProblem_MissingSavedStatement(t *testing.T) {
	a := New(t.TempDir())
	ctx := adapter.WithUserID(context.Background(), 1)
	_, err := a.FetchProblem(ctx, "does_not_exist")
	assert.Error(t, err)
}

func TestFetchProblem_RequiresUserIDInContext(t *testing.T) {
	a := New(t.TempDir())
	_, err := a.FetchProblem(context.Background(), "temp_1")
	assert.Error(t, err)
}
