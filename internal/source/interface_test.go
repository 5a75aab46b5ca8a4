package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPage(t *testing.T) {
	items := []TenderItem{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	page, next, err := Page(items, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []TenderItem{{ID: "a"}, {ID: "b"}}, page)
	assert.Equal(t, "2", next)

	page, next, err = Page(items, next, 2)
	require.NoError(t, err)
	assert.Equal(t, []TenderItem{{ID: "c"}}, page)
	assert.Empty(t, next)

	page, next, err = Page(items, "5", 2)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Empty(t, next)

	page, _, err = Page(items, "", 0)
	require.NoError(t, err)
	assert.Len(t, page, 3)

	_, _, err = Page(items, "x", 2)
	assert.Error(t, err)
}
