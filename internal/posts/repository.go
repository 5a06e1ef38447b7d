package posts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/pressroom-hq/pressroom/internal/abac"
	"github.com/pressroom-hq/pressroom/internal/shared"
)

// Repository defines persistence operations for the posts module.
type Repository interface {
	Create(ctx context.Context, post Post) (Post, error)
	GetBySlug(ctx context.Context, slug string, pred abac.Predicate) (Post, error)
	List(ctx context.Context, pred abac.Predicate, page shared.PageRequest) ([]Post, int, error)
	Update(ctx context.Context, post Post) (Post, error)
	Delete(ctx context.Context, id int64) error
}

const postColumns = `id, slug, title, body, published, author_id, created_at, updated_at`

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Create inserts the post. Slug collisions surface as ErrSlugTaken.
func (r *PGRepository) Create(ctx context.Context, post Post) (Post, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO posts (slug, title, body, published, author_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+postColumns,
		post.Slug, post.Title, post.Body, post.Published, post.AuthorID)
	var created Post
	if err := scanPost(row, &created); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Post{}, ErrSlugTaken
		}
		return Post{}, fmt.Errorf("posts: insert: %w", err)
	}
	return created, nil
}

// GetBySlug fetches a post visible under the given predicate. Rows the
// predicate excludes are indistinguishable from absent rows.
func (r *PGRepository) GetBySlug(ctx context.Context, slug string, pred abac.Predicate) (Post, error) {
	clause, args := pred.SQL(ColumnFor, 1)
	row := r.pool.QueryRow(ctx,
		`SELECT `+postColumns+` FROM posts WHERE slug = $1 AND `+clause,
		append([]any{slug}, args...)...)
	var post Post
	if err := scanPost(row, &post); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Post{}, shared.ErrNotFound
		}
		return Post{}, fmt.Errorf("posts: get by slug: %w", err)
	}
	return post, nil
}

// List returns the page of posts visible under the predicate plus the
// total count, newest first. Count and page run on separate pool
// connections.
func (r *PGRepository) List(ctx context.Context, pred abac.Predicate, page shared.PageRequest) ([]Post, int, error) {
	clause, args := pred.SQL(ColumnFor, 0)

	var (
		total int
		out   []Post
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := r.pool.QueryRow(gctx, `SELECT COUNT(*) FROM posts WHERE `+clause, args...).Scan(&total); err != nil {
			return fmt.Errorf("posts: count: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		query := fmt.Sprintf(`SELECT `+postColumns+` FROM posts WHERE `+clause+`
			ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
			len(args)+1, len(args)+2)
		rows, err := r.pool.Query(gctx, query, append(args, page.PerPage, page.Offset())...)
		if err != nil {
			return fmt.Errorf("posts: list: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var post Post
			if err := scanPost(rows, &post); err != nil {
				return fmt.Errorf("posts: scan: %w", err)
			}
			out = append(out, post)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("posts: rows: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Update rewrites the mutable columns of the post.
func (r *PGRepository) Update(ctx context.Context, post Post) (Post, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE posts
		SET title = $2, body = $3, published = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING `+postColumns,
		post.ID, post.Title, post.Body, post.Published)
	var updated Post
	if err := scanPost(row, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Post{}, shared.ErrNotFound
		}
		return Post{}, fmt.Errorf("posts: update: %w", err)
	}
	return updated, nil
}

// Delete removes the post by id.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("posts: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanPost(row pgx.Row, post *Post) error {
	return row.Scan(
		&post.ID, &post.Slug, &post.Title, &post.Body,
		&post.Published, &post.AuthorID, &post.CreatedAt, &post.UpdatedAt)
}

var _ Repository = (*PGRepository)(nil)
