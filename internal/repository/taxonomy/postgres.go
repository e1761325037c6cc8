// Package taxonomy loads taxonomy snapshots from the remote Postgres tables
// and from nested tree files.
package taxonomy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kailas-cloud/partcat/internal/domain"
	domtax "github.com/kailas-cloud/partcat/internal/domain/taxonomy"
)

// RemoteName is the registry name of the Postgres-backed snapshot.
const RemoteName = "remote"

const (
	categoriesSQL    = `SELECT id::text AS node_id, name, embedding::text FROM categories ORDER BY id`
	subcategoriesSQL = `SELECT id::text AS node_id, name, category_id::text, embedding::text FROM subcategories ORDER BY id`
	partTypesSQL     = `SELECT id::text AS node_id, name, subcategory_id::text, embedding::text FROM part_types ORDER BY id`
)

// undefined_table
const pgUndefinedTable = "42P01"

// querier is the consumer interface over pgxpool.Pool (ISP).
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresLoader reads the three flat taxonomy tables into a snapshot.
type PostgresLoader struct {
	db     querier
	name   string
	dim    int
	logger *zap.Logger
}

// NewPool opens a pgx connection pool and pings it.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// NewPostgresLoader creates a loader. The snapshot is named "remote" unless name is set.
func NewPostgresLoader(db querier, name string, logger *zap.Logger) *PostgresLoader {
	if name == "" {
		name = RemoteName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresLoader{db: db, name: name, dim: domain.EmbeddingDim, logger: logger}
}

type row struct {
	id, name, parent string
	embedding        *string
}

// Load reads categories, subcategories and part types ordered by id.
// Embeddings of the wrong dimension are dropped with a warning; a node without
// an embedding is simply skipped by the vector classifier.
func (l *PostgresLoader) Load(ctx context.Context) (*domtax.Taxonomy, error) {
	cats, err := l.query(ctx, categoriesSQL, false)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	subs, err := l.query(ctx, subcategoriesSQL, true)
	if err != nil {
		return nil, fmt.Errorf("load subcategories: %w", err)
	}
	parts, err := l.query(ctx, partTypesSQL, true)
	if err != nil {
		return nil, fmt.Errorf("load part types: %w", err)
	}

	b := domtax.NewBuilder(l.name)
	for _, r := range cats {
		if _, err := b.AddCategory(domtax.Category{ID: r.id, Name: r.name, Embedding: l.embedding("category", r)}); err != nil {
			return nil, err
		}
	}
	for _, r := range subs {
		if _, err := b.AddSubcategory(domtax.Subcategory{
			ID: r.id, Name: r.name, CategoryID: r.parent, Embedding: l.embedding("subcategory", r),
		}); err != nil {
			return nil, err
		}
	}
	for _, r := range parts {
		if _, err := b.AddPartType(domtax.PartType{
			ID: r.id, Name: r.name, SubcategoryID: r.parent, Embedding: l.embedding("part_type", r),
		}); err != nil {
			return nil, err
		}
	}

	t := b.Build()
	if t.IsEmpty() {
		return nil, fmt.Errorf("remote taxonomy %q: %w", l.name, domain.ErrEmptyTaxonomy)
	}
	sum := t.Summary()
	l.logger.Info("remote taxonomy loaded",
		zap.String("name", l.name),
		zap.Int("categories", sum.Categories),
		zap.Int("subcategories", sum.Subcategories),
		zap.Int("part_types", sum.PartTypes),
		zap.Bool("embedded", sum.Embedded))
	return t, nil
}

func (l *PostgresLoader) query(ctx context.Context, sql string, withParent bool) ([]row, error) {
	rows, err := l.db.Query(ctx, sql)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []row
	for rows.Next() {
		var r row
		if withParent {
			err = rows.Scan(&r.id, &r.name, &r.parent, &r.embedding)
		} else {
			err = rows.Scan(&r.id, &r.name, &r.embedding)
		}
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}

func (l *PostgresLoader) embedding(kind string, r row) []float32 {
	if r.embedding == nil {
		return nil
	}
	v, err := domtax.ParseEmbedding(*r.embedding)
	if err == nil && v != nil && !domain.ValidEmbedding(v, l.dim) {
		err = fmt.Errorf("got %d dims, want %d: %w", len(v), l.dim, domain.ErrInvalidEmbedding)
	}
	if err != nil {
		l.logger.Warn("dropping taxonomy embedding",
			zap.String("kind", kind), zap.String("id", r.id), zap.Error(err))
		return nil
	}
	return v
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return fmt.Errorf("%s: %w", pgErr.Message, domain.ErrTaxonomyNotFound)
	}
	return err
}
