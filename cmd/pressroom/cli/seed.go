package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pressroom-hq/pressroom/internal/abac"
	"github.com/pressroom-hq/pressroom/internal/platform/db"
)

type seedRule struct {
	action     string
	subject    string
	fields     *string
	conditions *string
}

func str(s string) *string { return &s }

// Default grants installed for a fresh database. ADMIN gets the full
// wildcard, USER owns their posts and profile, GUEST sees published
// posts only.
var seedGrants = map[string][]seedRule{
	abac.RoleAdmin: {
		{action: string(abac.ActionManage), subject: string(abac.SubjectAll)},
	},
	abac.RoleUser: {
		{action: string(abac.ActionRead), subject: string(abac.SubjectPost)},
		{action: string(abac.ActionCreate), subject: string(abac.SubjectPost), conditions: str(`{"authorId":"user.id"}`)},
		{action: string(abac.ActionUpdate), subject: string(abac.SubjectPost), conditions: str(`{"authorId":"user.id"}`), fields: str(`["title","body","published"]`)},
		{action: string(abac.ActionDelete), subject: string(abac.SubjectPost), conditions: str(`{"authorId":"user.id"}`)},
		{action: string(abac.ActionRead), subject: string(abac.SubjectUser)},
		{action: string(abac.ActionUpdate), subject: string(abac.SubjectUser), conditions: str(`{"id":"user.id"}`), fields: str(`["username","firstName","lastName","phone","city","country"]`)},
	},
	abac.RoleGuest: {
		{action: string(abac.ActionRead), subject: string(abac.SubjectPost), conditions: str(`{"published":true}`)},
	},
}

// Seeder installs the baseline roles and their rule sets. Safe to run
// repeatedly: roles upsert by name and rules attach only when absent.
type Seeder struct {
	pool *pgxpool.Pool
}

// NewSeeder constructs a Seeder.
func NewSeeder(pool *pgxpool.Pool) *Seeder {
	return &Seeder{pool: pool}
}

// Run applies the seed inside one transaction.
func (s *Seeder) Run(ctx context.Context) error {
	return db.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		for role, rules := range seedGrants {
			var roleID int64
			err := tx.QueryRow(ctx, `
				INSERT INTO roles (name, description)
				VALUES ($1, $2)
				ON CONFLICT (name) DO UPDATE SET updated_at = NOW()
				RETURNING id`,
				role, role+" default role").Scan(&roleID)
			if err != nil {
				return fmt.Errorf("seed role %s: %w", role, err)
			}
			for _, rule := range rules {
				if err := s.attachRule(ctx, tx, roleID, rule); err != nil {
					return fmt.Errorf("seed rule %s/%s for %s: %w", rule.action, rule.subject, role, err)
				}
			}
		}
		return nil
	})
}

func (s *Seeder) attachRule(ctx context.Context, tx pgx.Tx, roleID int64, rule seedRule) error {
	var permID int64
	err := tx.QueryRow(ctx, `
		SELECT id FROM permissions
		WHERE action = $1 AND subject = $2
		  AND fields IS NOT DISTINCT FROM $3
		  AND conditions IS NOT DISTINCT FROM $4`,
		rule.action, rule.subject, rule.fields, rule.conditions).Scan(&permID)
	if err == pgx.ErrNoRows {
		err = tx.QueryRow(ctx, `
			INSERT INTO permissions (action, subject, fields, conditions)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			rule.action, rule.subject, rule.fields, rule.conditions).Scan(&permID)
	}
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, roleID, permID)
	return err
}
