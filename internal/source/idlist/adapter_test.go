package idlist

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/tenderkg/internal/source"
)

func TestParseIDs(t *testing.T) {
	ids, err := ParseIDs(strings.NewReader("# tenders\nNzA5MjgzMjA=\n\n  NzA0NDQ5NDY=  \n#skip\nNzA5MjgzMjA=\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"NzA5MjgzMjA=", "NzA0NDQ5NDY=", "NzA5MjgzMjA="}, ids)
}

func TestFetchBatchPreservesOrderAndDuplicates(t *testing.T) {
	a := NewAdapter("cli", []string{"b", " ", "a", "b"})
	assert.Equal(t, 3, a.Len())

	var got []string
	cursor := ""
	for {
		items, next, err := a.FetchBatch(context.Background(), cursor, 2)
		require.NoError(t, err)
		for _, it := range items {
			got = append(got, it.ID)
		}
		if next == "" {
			break
		}
		cursor = next
	}
	assert.Equal(t, []string{"b", "a", "b"}, got)
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.txt")
	require.NoError(t, os.WriteFile(path, []byte("T-001\nT-002\n"), 0o644))

	a, err := FromFile(path)
	require.NoError(t, err)

	items, next, err := a.FetchBatch(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Equal(t, []source.TenderItem{{ID: "T-001"}, {ID: "T-002"}}, items)
	assert.Empty(t, next)
	assert.Equal(t, "idlist:"+path, a.GetSourceID())

	_, err = FromFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
