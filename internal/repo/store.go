package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/abdusco/shortreg/internal"
)

// Store is the durable registry of short links. Implementations enforce slug
// uniqueness on Insert and make IncrementClicks atomic per slug, so callers
// never need their own locking.
type Store interface {
	Exists(ctx context.Context, slug string) (bool, error)
	// Insert persists a new link with zero clicks, stamping CreatedAt and
	// UpdatedAt. Returns internal.ErrSlugExists if the slug is in use.
	Insert(ctx context.Context, link internal.ShortLink) (*internal.ShortLink, error)
	Find(ctx context.Context, slug string) (*internal.ShortLink, error)
	// IncrementClicks adds one click, refreshes UpdatedAt and returns the
	// updated link, or internal.ErrLinkNotFound.
	IncrementClicks(ctx context.Context, slug string) (*internal.ShortLink, error)
	Delete(ctx context.Context, slug string) (bool, error)
	// ListAll returns every link, newest first.
	ListAll(ctx context.Context) ([]*internal.ShortLink, error)
}

var (
	_ Store = (*LinksRepo)(nil)
	_ Store = (*MemoryRepo)(nil)
	_ Store = (*RedisRepo)(nil)
)

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, internal.ErrStore, err)
}

func utcNow() time.Time {
	return time.Now().UTC()
}
