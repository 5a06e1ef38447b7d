package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pressroom-hq/pressroom/internal/abac"
	"github.com/pressroom-hq/pressroom/internal/platform/db"
	"github.com/pressroom-hq/pressroom/internal/shared"
)

// Repository defines persistence operations for the users module.
type Repository interface {
	Create(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	GetByUUID(ctx context.Context, uuid string, pred abac.Predicate) (User, error)
	List(ctx context.Context, pred abac.Predicate, page shared.PageRequest) ([]User, int, error)
	Update(ctx context.Context, user User) (User, error)
	Delete(ctx context.Context, id int64) error
}

const userColumns = `id, uuid, email, username, password_hash, first_name, last_name, phone, city, country, is_active, created_at, updated_at`

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Create inserts the user and assigns the default USER role in one
// transaction. Duplicate emails surface as ErrEmailTaken.
func (r *PGRepository) Create(ctx context.Context, user User) (User, error) {
	var created User
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO users (uuid, email, username, password_hash, first_name, last_name, phone, city, country, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
			RETURNING `+userColumns,
			user.UUID, user.Email, user.Username, user.PasswordHash,
			user.FirstName, user.LastName, user.Phone, user.City, user.Country)
		if err := scanUser(row, &created); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrEmailTaken
			}
			return fmt.Errorf("users: insert: %w", err)
		}

		var roleID int64
		if err := tx.QueryRow(ctx, `SELECT id FROM roles WHERE name = $1`, abac.RoleUser).Scan(&roleID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrDefaultRoleMissing
			}
			return fmt.Errorf("users: default role: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, created.ID, roleID); err != nil {
			return fmt.Errorf("users: assign default role: %w", err)
		}
		created.Roles = []string{abac.RoleUser}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return created, nil
}

// GetByID fetches a user with role names.
func (r *PGRepository) GetByID(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	var user User
	if err := scanUser(row, &user); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, fmt.Errorf("users: get by id: %w", err)
	}
	roles, err := r.roleNames(ctx, user.ID)
	if err != nil {
		return User{}, err
	}
	user.Roles = roles
	return user, nil
}

// GetByUUID fetches a user visible under the given predicate. Rows the
// predicate excludes are indistinguishable from absent rows.
func (r *PGRepository) GetByUUID(ctx context.Context, uuid string, pred abac.Predicate) (User, error) {
	clause, args := pred.SQL(ColumnFor, 1)
	query := `SELECT ` + userColumns + ` FROM users WHERE uuid = $1 AND ` + clause
	row := r.pool.QueryRow(ctx, query, append([]any{uuid}, args...)...)
	var user User
	if err := scanUser(row, &user); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, fmt.Errorf("users: get by uuid: %w", err)
	}
	return user, nil
}

// List returns the page of users visible under the predicate plus the
// total count.
func (r *PGRepository) List(ctx context.Context, pred abac.Predicate, page shared.PageRequest) ([]User, int, error) {
	clause, args := pred.SQL(ColumnFor, 0)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY id LIMIT $%d OFFSET $%d`,
		userColumns, clause, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, page.PerPage, page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var user User
		if err := scanUser(rows, &user); err != nil {
			return nil, 0, fmt.Errorf("users: scan: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	return users, total, nil
}

// Update persists the mutable profile columns.
func (r *PGRepository) Update(ctx context.Context, user User) (User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET username = $2, first_name = $3, last_name = $4, phone = $5, city = $6, country = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		user.ID, user.Username, user.FirstName, user.LastName, user.Phone, user.City, user.Country)
	var updated User
	if err := scanUser(row, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, fmt.Errorf("users: update: %w", err)
	}
	return updated, nil
}

// Delete removes a user row.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("users: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) roleNames(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.name FROM user_roles ur JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1 ORDER BY r.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("users: roles: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("users: roles: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func scanUser(row pgx.Row, user *User) error {
	return row.Scan(
		&user.ID, &user.UUID, &user.Email, &user.Username, &user.PasswordHash,
		&user.FirstName, &user.LastName, &user.Phone, &user.City, &user.Country,
		&user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
}

var _ Repository = (*PGRepository)(nil)
