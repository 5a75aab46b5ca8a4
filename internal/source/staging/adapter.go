// Package staging serves tender pages saved to disk as tender_<id>.html.
package staging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/timmy/tenderkg/internal/domain"
	"github.com/timmy/tenderkg/internal/source"
)

const (
	filePrefix = "tender_"
	fileSuffix = ".html"
)

// Adapter implements source.Source for a directory of saved pages and can
// stand in for the HTTP fetcher.
type Adapter struct {
	dir    string
	items  []source.TenderItem
	loaded bool
}

// NewAdapter creates a new staging adapter.
// Parameters:
//   - dir: directory holding tender_<id>.html files.
// Returns:
//   - *Adapter: initialized staging adapter.
func NewAdapter(dir string) *Adapter {
	return &Adapter{dir: dir}
}

// GetSourceID returns the unique identifier for this source.
// Parameters: none.
// Returns:
//   - string: source identifier with "staging:" prefix.
func (a *Adapter) GetSourceID() string {
	return "staging:" + filepath.Base(a.dir)
}

// GetDisplayName returns a human-readable name for this source.
// Parameters: none.
// Returns:
//   - string: display name for the staging source.
func (a *Adapter) GetDisplayName() string {
	return fmt.Sprintf("Staging (%s)", a.dir)
}

// SupportsIncremental returns true if this source supports incremental updates.
// Parameters: none.
// Returns:
//   - bool: false for staging sources.
func (a *Adapter) SupportsIncremental() bool {
	return false
}

// FetchBatch lists staged pages in identifier order.
// Parameters:
//   - ctx: context for cancellation and deadlines (unused for local reads).
//   - cursor: pagination cursor as an index string.
//   - limit: maximum number of items to fetch.
// Returns:
//   - []source.TenderItem: batch of tender items.
//   - string: next cursor or empty if no more items.
//   - error: non-nil if listing fails or the cursor is malformed.
func (a *Adapter) FetchBatch(_ context.Context, cursor string, limit int) ([]source.TenderItem, string, error) {
	if !a.loaded {
		if err := a.loadItems(); err != nil {
			return nil, "", errors.Wrap(err, "failed to load staged tenders")
		}
		a.loaded = true
	}
	return source.Page(a.items, cursor, limit)
}

// Fetch reads the staged page of id.
func (a *Adapter) Fetch(ctx context.Context, id string) (*domain.RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := a.path(id)
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read staged tender %s", id)
	}
	info, err := os.Stat(path)
	fetchedAt := time.Now()
	if err == nil {
		fetchedAt = info.ModTime()
	}
	return &domain.RawDocument{
		ID:         id,
		URL:        "file://" + path,
		Body:       body,
		StatusCode: 200,
		FetchedAt:  fetchedAt,
	}, nil
}

// GetTotalCount returns the total number of staged pages.
func (a *Adapter) GetTotalCount() (int, error) {
	if !a.loaded {
		if err := a.loadItems(); err != nil {
			return 0, err
		}
		a.loaded = true
	}
	return len(a.items), nil
}

func (a *Adapter) path(id string) string {
	return filepath.Join(a.dir, filePrefix+id+fileSuffix)
}

func (a *Adapter) loadItems() error {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return err
	}

	a.items = []source.TenderItem{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		if id == "" {
			continue
		}
		a.items = append(a.items, source.TenderItem{ID: id, LocalPath: filepath.Join(a.dir, name)})
	}

	sort.Slice(a.items, func(i, j int) bool {
		return a.items[i].ID < a.items[j].ID
	})
	return nil
}
