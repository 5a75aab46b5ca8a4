package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

func TestFetchBatchListsStagedTenders(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"tender_NzA5MjgzMjA=.html": "<h1>b</h1>",
		"tender_NzA0NDQ5NDY=.html": "<h1>a</h1>",
		"notes.txt":                "ignored",
		"tender_.html":             "no id",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "tender_dir.html"), 0o755))

	a := NewAdapter(dir)
	items, next, err := a.FetchBatch(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, next)
	require.Len(t, items, 2)
	assert.Equal(t, "NzA0NDQ5NDY=", items[0].ID)
	assert.Equal(t, "NzA5MjgzMjA=", items[1].ID)
	assert.Equal(t, filepath.Join(dir, "tender_NzA0NDQ5NDY=.html"), items[0].LocalPath)

	total, err := a.GetTotalCount()
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestFetchReadsStagedPage(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"tender_T-001.html": "<h1>辦公設備採購案</h1>"})

	doc, err := NewAdapter(dir).Fetch(context.Background(), "T-001")
	require.NoError(t, err)
	assert.Equal(t, "T-001", doc.ID)
	assert.Equal(t, "<h1>辦公設備採購案</h1>", string(doc.Body))

	_, err = NewAdapter(dir).Fetch(context.Background(), "T-404")
	assert.Error(t, err)
}

func TestFetchBatchMissingDir(t *testing.T) {
	_, _, err := NewAdapter(filepath.Join(t.TempDir(), "nope")).FetchBatch(context.Background(), "", 10)
	assert.Error(t, err)
}
