package repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/abdusco/shortreg/internal"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	redisLinkPrefix   = "shortlink:"
	redisCreatedIndex = "shortlinks:by_created"
)

// Each mutating operation runs as a single script so redis applies it
// atomically: no other command interleaves between the check and the write.
var (
	insertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'target_url', ARGV[1], 'clicks', '0', 'created_at', ARGV[2], 'updated_at', ARGV[2])
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[4])
return 1
`)

	incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
redis.call('HINCRBY', KEYS[1], 'clicks', 1)
redis.call('HSET', KEYS[1], 'updated_at', ARGV[1])
return redis.call('HGETALL', KEYS[1])
`)

	deleteScript = redis.NewScript(`
local removed = redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[1])
return removed
`)
)

// RedisRepo stores each link as a hash and keeps a sorted set of slugs
// scored by creation time for listing.
type RedisRepo struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisRepo(client redis.UniversalClient) *RedisRepo {
	return &RedisRepo{client: client, now: utcNow}
}

func (r *RedisRepo) Exists(ctx context.Context, slug string) (bool, error) {
	n, err := r.client.Exists(ctx, redisLinkKey(slug)).Result()
	if err != nil {
		return false, storeErr("check link", err)
	}
	return n > 0, nil
}

func (r *RedisRepo) Insert(ctx context.Context, link internal.ShortLink) (*internal.ShortLink, error) {
	log.Debug().Str("slug", link.Slug).Str("url", link.TargetURL).Msg("creating link")

	now := r.now().Truncate(time.Microsecond)
	inserted, err := insertScript.Run(ctx, r.client,
		[]string{redisLinkKey(link.Slug), redisCreatedIndex},
		link.TargetURL, now.Format(dateLayout), now.UnixMicro(), link.Slug,
	).Int()
	if err != nil {
		log.Error().Err(err).Str("slug", link.Slug).Msg("failed to create link")
		return nil, storeErr("insert link", err)
	}
	if inserted == 0 {
		return nil, internal.ErrSlugExists
	}

	log.Info().Str("slug", link.Slug).Msg("link created successfully")
	return &internal.ShortLink{
		Slug:      link.Slug,
		TargetURL: link.TargetURL,
		Clicks:    0,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (r *RedisRepo) Find(ctx context.Context, slug string) (*internal.ShortLink, error) {
	fields, err := r.client.HGetAll(ctx, redisLinkKey(slug)).Result()
	if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("failed to fetch link")
		return nil, storeErr("find link", err)
	}
	if len(fields) == 0 {
		return nil, internal.ErrLinkNotFound
	}
	return linkFromHash(slug, fields)
}

func (r *RedisRepo) IncrementClicks(ctx context.Context, slug string) (*internal.ShortLink, error) {
	now := r.now().Truncate(time.Microsecond)
	pairs, err := incrementScript.Run(ctx, r.client,
		[]string{redisLinkKey(slug)},
		now.Format(dateLayout),
	).StringSlice()
	if errors.Is(err, redis.Nil) {
		return nil, internal.ErrLinkNotFound
	}
	if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("failed to increment clicks")
		return nil, storeErr("increment clicks", err)
	}

	fields := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		fields[pairs[i]] = pairs[i+1]
	}
	return linkFromHash(slug, fields)
}

func (r *RedisRepo) Delete(ctx context.Context, slug string) (bool, error) {
	removed, err := deleteScript.Run(ctx, r.client,
		[]string{redisLinkKey(slug), redisCreatedIndex},
		slug,
	).Int()
	if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("failed to delete link")
		return false, storeErr("delete link", err)
	}
	if removed > 0 {
		log.Info().Str("slug", slug).Msg("link deleted")
	}
	return removed > 0, nil
}

func (r *RedisRepo) ListAll(ctx context.Context) ([]*internal.ShortLink, error) {
	slugs, err := r.client.ZRevRange(ctx, redisCreatedIndex, 0, -1).Result()
	if err != nil {
		return nil, storeErr("list links", err)
	}
	if len(slugs) == 0 {
		return []*internal.ShortLink{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(slugs))
	for i, slug := range slugs {
		cmds[i] = pipe.HGetAll(ctx, redisLinkKey(slug))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, storeErr("list links", err)
	}

	links := make([]*internal.ShortLink, 0, len(slugs))
	for i, cmd := range cmds {
		fields := cmd.Val()
		// deleted between the index read and the pipeline
		if len(fields) == 0 {
			continue
		}
		link, err := linkFromHash(slugs[i], fields)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, nil
}

func redisLinkKey(slug string) string {
	return redisLinkPrefix + slug
}

func linkFromHash(slug string, fields map[string]string) (*internal.ShortLink, error) {
	clicks, err := strconv.ParseInt(fields["clicks"], 10, 64)
	if err != nil {
		return nil, storeErr("decode link", fmt.Errorf("clicks: %w", err))
	}

	var createdAt, updatedAt Date
	if err := createdAt.parse(fields["created_at"]); err != nil {
		return nil, storeErr("decode link", fmt.Errorf("created_at: %w", err))
	}
	if err := updatedAt.parse(fields["updated_at"]); err != nil {
		return nil, storeErr("decode link", fmt.Errorf("updated_at: %w", err))
	}

	return &internal.ShortLink{
		Slug:      slug,
		TargetURL: fields["target_url"],
		Clicks:    clicks,
		CreatedAt: createdAt.Time(),
		UpdatedAt: updatedAt.Time(),
	}, nil
}
