package repo

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/abdusco/shortreg/internal"
)

type memoryEntry struct {
	link *internal.ShortLink
	seq  uint64
}

// MemoryRepo keeps links in a map guarded by a mutex. Links never escape
// the map; callers always get copies.
type MemoryRepo struct {
	mu    sync.RWMutex
	links map[string]memoryEntry
	seq   uint64
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		links: make(map[string]memoryEntry),
		now:   utcNow,
	}
}

func (r *MemoryRepo) Exists(ctx context.Context, slug string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.links[slug]
	return ok, nil
}

func (r *MemoryRepo) Insert(ctx context.Context, link internal.ShortLink) (*internal.ShortLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.links[link.Slug]; ok {
		return nil, internal.ErrSlugExists
	}

	now := r.now()
	stored := &internal.ShortLink{
		Slug:      link.Slug,
		TargetURL: link.TargetURL,
		Clicks:    0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.seq++
	r.links[link.Slug] = memoryEntry{link: stored, seq: r.seq}

	return stored.Clone(), nil
}

func (r *MemoryRepo) Find(ctx context.Context, slug string) (*internal.ShortLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.links[slug]
	if !ok {
		return nil, internal.ErrLinkNotFound
	}
	return entry.link.Clone(), nil
}

func (r *MemoryRepo) IncrementClicks(ctx context.Context, slug string) (*internal.ShortLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.links[slug]
	if !ok {
		return nil, internal.ErrLinkNotFound
	}
	entry.link.Clicks++
	entry.link.UpdatedAt = r.now()

	return entry.link.Clone(), nil
}

func (r *MemoryRepo) Delete(ctx context.Context, slug string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.links[slug]; !ok {
		return false, nil
	}
	delete(r.links, slug)
	return true, nil
}

func (r *MemoryRepo) ListAll(ctx context.Context) ([]*internal.ShortLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	entries := make([]memoryEntry, 0, len(r.links))
	for _, entry := range r.links {
		entries = append(entries, memoryEntry{link: entry.link.Clone(), seq: entry.seq})
	}
	r.mu.RUnlock()

	slices.SortFunc(entries, func(a, b memoryEntry) int {
		if c := b.link.CreatedAt.Compare(a.link.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})

	links := make([]*internal.ShortLink, len(entries))
	for i, entry := range entries {
		links[i] = entry.link
	}
	return links, nil
}
