package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/abdusco/shortreg/internal"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/rs/zerolog/log"
)

const linksTable = "short_links"

var linkColumns = []any{"slug", "target_url", "clicks", "created_at", "updated_at"}

type linkRow struct {
	Slug      string `db:"slug"`
	TargetURL string `db:"target_url"`
	Clicks    int64  `db:"clicks"`
	CreatedAt Date   `db:"created_at"`
	UpdatedAt Date   `db:"updated_at"`
}

// LinksRepo is the SQL backed Store. It works with any goqu dialect whose
// schema was created by package db.
type LinksRepo struct {
	db      *goqu.Database
	dialect string
	now     func() time.Time
}

func NewLinksRepo(db *sql.DB, dialect string) *LinksRepo {
	return &LinksRepo{
		db:      goqu.New(dialect, db),
		dialect: dialect,
		now:     utcNow,
	}
}

func (r *LinksRepo) Exists(ctx context.Context, slug string) (bool, error) {
	n, err := r.db.From(linksTable).Where(goqu.Ex{"slug": slug}).CountContext(ctx)
	if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("failed to check link existence")
		return false, storeErr("check link", err)
	}
	return n > 0, nil
}

func (r *LinksRepo) Insert(ctx context.Context, link internal.ShortLink) (*internal.ShortLink, error) {
	log.Debug().Str("slug", link.Slug).Str("url", link.TargetURL).Msg("creating link")

	// postgres keeps microseconds; truncating here makes the returned link
	// identical to what a later read produces.
	now := r.now().Truncate(time.Microsecond)
	query := r.db.Insert(linksTable).
		Cols(linkColumns...).
		Vals(goqu.Vals{link.Slug, link.TargetURL, 0, r.timeValue(now), r.timeValue(now)}).
		OnConflict(goqu.DoNothing())

	res, err := query.Executor().ExecContext(ctx)
	if err != nil {
		log.Error().Err(err).Str("slug", link.Slug).Msg("failed to create link")
		return nil, storeErr("insert link", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, storeErr("insert link", err)
	}
	if n == 0 {
		log.Debug().Str("slug", link.Slug).Msg("slug already exists")
		return nil, internal.ErrSlugExists
	}

	created := &internal.ShortLink{
		Slug:      link.Slug,
		TargetURL: link.TargetURL,
		Clicks:    0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	log.Info().Str("slug", created.Slug).Msg("link created successfully")

	return created, nil
}

func (r *LinksRepo) Find(ctx context.Context, slug string) (*internal.ShortLink, error) {
	log.Debug().Str("slug", slug).Msg("fetching link by slug")

	link, err := findLink(ctx, r.db.From(linksTable), slug)
	if err != nil && !errors.Is(err, internal.ErrLinkNotFound) {
		log.Error().Err(err).Str("slug", slug).Msg("failed to fetch link")
	}
	return link, err
}

func (r *LinksRepo) IncrementClicks(ctx context.Context, slug string) (*internal.ShortLink, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin increment", err)
	}

	var link *internal.ShortLink
	err = tx.Wrap(func() error {
		res, err := tx.Update(linksTable).
			Set(goqu.Record{
				"clicks":     goqu.L("clicks + 1"),
				"updated_at": r.timeValue(r.now().Truncate(time.Microsecond)),
			}).
			Where(goqu.Ex{"slug": slug}).
			Executor().ExecContext(ctx)
		if err != nil {
			return storeErr("increment clicks", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return storeErr("increment clicks", err)
		}
		if n == 0 {
			return internal.ErrLinkNotFound
		}

		link, err = findLink(ctx, tx.From(linksTable), slug)
		return err
	})
	if err != nil {
		if !errors.Is(err, internal.ErrLinkNotFound) {
			log.Error().Err(err).Str("slug", slug).Msg("failed to increment clicks")
		}
		return nil, err
	}

	log.Debug().Str("slug", slug).Int64("clicks", link.Clicks).Msg("click recorded")
	return link, nil
}

func (r *LinksRepo) Delete(ctx context.Context, slug string) (bool, error) {
	res, err := r.db.Delete(linksTable).Where(goqu.Ex{"slug": slug}).Executor().ExecContext(ctx)
	if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("failed to delete link")
		return false, storeErr("delete link", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("delete link", err)
	}
	if n > 0 {
		log.Info().Str("slug", slug).Msg("link deleted")
	}
	return n > 0, nil
}

func (r *LinksRepo) ListAll(ctx context.Context) ([]*internal.ShortLink, error) {
	query := r.db.From(linksTable).
		Select(linkColumns...).
		Order(goqu.C("created_at").Desc(), goqu.C("slug").Asc())

	var rows []linkRow
	if err := query.Executor().ScanStructsContext(ctx, &rows); err != nil {
		log.Error().Err(err).Msg("failed to list links")
		return nil, storeErr("list links", err)
	}

	links := make([]*internal.ShortLink, len(rows))
	for i := range rows {
		links[i] = rows[i].toDomain()
	}
	return links, nil
}

// timeValue converts a timestamp into the representation the dialect's
// schema stores: fixed width text for sqlite, native timestamps otherwise.
func (r *LinksRepo) timeValue(t time.Time) any {
	if r.dialect == "sqlite3" {
		return Date(t)
	}
	return t
}

func findLink(ctx context.Context, from *goqu.SelectDataset, slug string) (*internal.ShortLink, error) {
	var row linkRow
	found, err := from.Select(linkColumns...).
		Where(goqu.Ex{"slug": slug}).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, storeErr("find link", err)
	}
	if !found {
		return nil, internal.ErrLinkNotFound
	}
	return row.toDomain(), nil
}

func (r *linkRow) toDomain() *internal.ShortLink {
	return &internal.ShortLink{
		Slug:      r.Slug,
		TargetURL: r.TargetURL,
		Clicks:    r.Clicks,
		CreatedAt: r.CreatedAt.Time(),
		UpdatedAt: r.UpdatedAt.Time(),
	}
}
