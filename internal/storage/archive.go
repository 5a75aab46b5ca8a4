package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"path"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/timmy/tenderkg/internal/domain"
)

const htmlContentType = "text/html; charset=utf-8"

// Archive keeps the raw pages that were ingested so a run can be audited
// or replayed without hitting the portal again.
type Archive struct {
	store  ObjectStorage
	prefix string
}

func NewArchive(store ObjectStorage, prefix string) *Archive {
	return &Archive{store: store, prefix: strings.Trim(prefix, "/")}
}

// Key returns <prefix>/<md5(id)[:2]>/<id>.html. The hash shard spreads
// keys across listing pages.
func (a *Archive) Key(id string) string {
	sum := md5.Sum([]byte(id))
	shard := hex.EncodeToString(sum[:])[:2]
	return path.Join(a.prefix, shard, id+".html")
}

// Put uploads the page unless it is already archived.
// Returns the object key and whether an upload happened.
func (a *Archive) Put(ctx context.Context, doc *domain.RawDocument) (string, bool, error) {
	key := a.Key(doc.ID)

	exists, err := a.store.Exists(ctx, key)
	if err != nil {
		return key, false, errors.Wrapf(err, "check archive for %s", doc.ID)
	}
	if exists {
		return key, false, nil
	}

	if err := a.store.Put(ctx, key, doc.Body, htmlContentType); err != nil {
		return key, false, errors.Wrapf(err, "archive %s", doc.ID)
	}
	return key, true, nil
}

// Get returns the archived page of id.
func (a *Archive) Get(ctx context.Context, id string) ([]byte, error) {
	return a.store.Get(ctx, a.Key(id))
}

// URL returns the address of the archived page.
func (a *Archive) URL(id string) string {
	return a.store.URL(a.Key(id))
}
