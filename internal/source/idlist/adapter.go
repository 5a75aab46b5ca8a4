// Package idlist serves tender identifiers from a fixed list.
package idlist

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/timmy/tenderkg/internal/source"
)

// Adapter implements source.Source over an ordered identifier list.
// Duplicates are kept; the orchestrator's local short-circuit handles them.
type Adapter struct {
	name  string
	items []source.TenderItem
}

// NewAdapter creates an adapter over ids. Blank entries are dropped.
// Parameters:
//   - name: label for logs and job records.
//   - ids: identifiers in processing order.
// Returns:
//   - *Adapter: initialized adapter.
func NewAdapter(name string, ids []string) *Adapter {
	a := &Adapter{name: name}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			a.items = append(a.items, source.TenderItem{ID: id})
		}
	}
	return a
}

// FromFile reads one identifier per line. Blank lines and lines starting
// with # are ignored.
func FromFile(path string) (*Adapter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open id list %s", path)
	}
	defer f.Close()

	ids, err := ParseIDs(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read id list %s", path)
	}
	return NewAdapter(path, ids), nil
}

// ParseIDs reads identifiers from r, one per line.
func ParseIDs(r io.Reader) ([]string, error) {
	var ids []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids, scanner.Err()
}

func (a *Adapter) GetSourceID() string {
	return "idlist:" + a.name
}

func (a *Adapter) GetDisplayName() string {
	return fmt.Sprintf("ID list (%s, %d ids)", a.name, len(a.items))
}

func (a *Adapter) SupportsIncremental() bool {
	return false
}

func (a *Adapter) FetchBatch(_ context.Context, cursor string, limit int) ([]source.TenderItem, string, error) {
	return source.Page(a.items, cursor, limit)
}

// Len returns the number of identifiers.
func (a *Adapter) Len() int {
	return len(a.items)
}
