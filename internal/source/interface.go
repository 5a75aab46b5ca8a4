package source

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"
)

// TenderItem is one tender identifier yielded by a source.
type TenderItem struct {
	ID        string // opaque tender case token, e.g. NzA5MjgzMjA=
	LocalPath string // set when the page is already on disk
}

// Source defines the interface for tender identifier sources.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	// Parameters: none.
	// Returns:
	//   - string: stable source identifier.
	GetSourceID() string

	// GetDisplayName returns a human-readable name for this source.
	// Parameters: none.
	// Returns:
	//   - string: display-friendly source name.
	GetDisplayName() string

	// FetchBatch fetches a batch of tender items starting from the given cursor.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - cursor: pagination cursor or empty for first page.
	//   - limit: maximum number of items to fetch.
	// Returns:
	//   - items: batch of tender items.
	//   - nextCursor: cursor for the next batch or empty if done.
	//   - err: non-nil if fetching fails.
	FetchBatch(ctx context.Context, cursor string, limit int) (items []TenderItem, nextCursor string, err error)

	// SupportsIncremental returns true if this source supports incremental updates.
	// Parameters: none.
	// Returns:
	//   - bool: true when incremental updates are supported.
	SupportsIncremental() bool
}

// Page slices items by an index cursor, the paging scheme shared by the
// in-memory sources.
// Parameters:
//   - items: full, ordered item list.
//   - cursor: start index as a string, empty for the first page.
//   - limit: page size; non-positive returns the remainder.
// Returns:
//   - []TenderItem: the page.
//   - string: next cursor or empty when exhausted.
//   - error: non-nil if the cursor is malformed.
func Page(items []TenderItem, cursor string, limit int) ([]TenderItem, string, error) {
	start := 0
	if cursor != "" {
		var err error
		start, err = strconv.Atoi(cursor)
		if err != nil || start < 0 {
			return nil, "", errors.Newf("invalid cursor %q", cursor)
		}
	}
	if start >= len(items) {
		return []TenderItem{}, "", nil
	}

	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	next := ""
	if end < len(items) {
		next = strconv.Itoa(end)
	}
	return items[start:end], next, nil
}
