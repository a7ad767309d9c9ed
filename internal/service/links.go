package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/abdusco/shortreg/internal"
	"github.com/abdusco/shortreg/internal/repo"
	"github.com/abdusco/shortreg/internal/slug"
	"github.com/rs/zerolog/log"
)

const DefaultSlugAttempts = 5

type Generator interface {
	Generate() string
}

// LinkService owns slug policy on top of a repo.Store.
type LinkService struct {
	store     repo.Store
	generator Generator
	attempts  int
}

func NewLinkService(store repo.Store, generator Generator, attempts int) *LinkService {
	if attempts < 1 {
		attempts = DefaultSlugAttempts
	}
	return &LinkService{
		store:     store,
		generator: generator,
		attempts:  attempts,
	}
}

// Create stores a link to targetURL. With an empty customSlug a random slug
// is generated, retrying on collisions; a custom slug that is already in use
// fails with internal.ErrSlugTaken and is never retried.
func (s *LinkService) Create(ctx context.Context, targetURL, customSlug string) (*internal.ShortLink, error) {
	target, err := normalizeURL(targetURL)
	if err != nil {
		return nil, err
	}

	if customSlug != "" {
		return s.createCustom(ctx, target, customSlug)
	}
	return s.createGenerated(ctx, target)
}

func (s *LinkService) createCustom(ctx context.Context, target, customSlug string) (*internal.ShortLink, error) {
	if !slug.Valid(customSlug) {
		return nil, internal.ErrInvalidSlug
	}
	if slug.IsReserved(customSlug) {
		return nil, internal.ErrSlugTaken
	}

	link, err := s.store.Insert(ctx, internal.ShortLink{Slug: customSlug, TargetURL: target})
	if errors.Is(err, internal.ErrSlugExists) {
		return nil, internal.ErrSlugTaken
	}
	if err != nil {
		return nil, fmt.Errorf("creating link %q: %w", customSlug, err)
	}
	return link, nil
}

func (s *LinkService) createGenerated(ctx context.Context, target string) (*internal.ShortLink, error) {
	for attempt := 1; attempt <= s.attempts; attempt++ {
		candidate := s.generator.Generate()
		if slug.IsReserved(candidate) {
			log.Debug().Str("slug", candidate).Int("attempt", attempt).Msg("generated slug is reserved, retrying")
			continue
		}

		link, err := s.store.Insert(ctx, internal.ShortLink{Slug: candidate, TargetURL: target})
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, internal.ErrSlugExists) {
			return nil, fmt.Errorf("creating link: %w", err)
		}

		log.Warn().Str("slug", candidate).Int("attempt", attempt).Msg("generated slug collided, retrying")
	}

	return nil, fmt.Errorf("%w after %d attempts", internal.ErrSlugSpaceExhausted, s.attempts)
}

// Resolve returns the target of slug and counts the visit. The click is
// recorded by the same store call that confirms the link exists, so a link
// deleted concurrently yields internal.ErrLinkNotFound instead of a redirect.
func (s *LinkService) Resolve(ctx context.Context, slug string) (string, error) {
	link, err := s.store.IncrementClicks(ctx, slug)
	if err != nil {
		return "", err
	}
	return link.TargetURL, nil
}

// Get returns the link without counting a click.
func (s *LinkService) Get(ctx context.Context, slug string) (*internal.ShortLink, error) {
	return s.store.Find(ctx, slug)
}

func (s *LinkService) Delete(ctx context.Context, slug string) error {
	removed, err := s.store.Delete(ctx, slug)
	if err != nil {
		return err
	}
	if !removed {
		return internal.ErrLinkNotFound
	}
	return nil
}

func (s *LinkService) List(ctx context.Context) ([]*internal.ShortLink, error) {
	return s.store.ListAll(ctx)
}

// knownSchemes are kept as given even without "//", e.g. mailto:a@b.com.
var knownSchemes = map[string]struct{}{
	"http": {}, "https": {}, "ftp": {}, "ftps": {}, "sftp": {},
	"ws": {}, "wss": {}, "mailto": {}, "tel": {}, "sms": {},
}

// normalizeURL prefixes https when the target carries no scheme.
// Reachability is not checked.
func normalizeURL(raw string) (string, error) {
	target := strings.TrimSpace(raw)
	if target == "" {
		return "", internal.ErrInvalidURL
	}

	if strings.HasPrefix(target, "//") {
		return "https:" + target, nil
	}

	u, err := url.Parse(target)
	if err == nil && u.Scheme != "" {
		if _, ok := knownSchemes[strings.ToLower(u.Scheme)]; ok {
			return target, nil
		}
		// host:port parses as a scheme; only trust unknown schemes with an authority
		if strings.HasPrefix(target[len(u.Scheme):], "://") {
			return target, nil
		}
	}
	return "https://" + target, nil
}
