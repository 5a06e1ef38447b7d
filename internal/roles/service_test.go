package roles

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pressroom-hq/pressroom/internal/shared"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type memoryRulesRepo struct {
	roles     map[int64]Role
	perms     map[int64]Permission
	rolePerms map[int64][]int64
	userRoles map[int64][]int64
	nextRole  int64
	nextPerm  int64
}

func newMemoryRulesRepo() *memoryRulesRepo {
	return &memoryRulesRepo{
		roles:     make(map[int64]Role),
		perms:     make(map[int64]Permission),
		rolePerms: make(map[int64][]int64),
		userRoles: make(map[int64][]int64),
	}
}

func (r *memoryRulesRepo) ListRoles(ctx context.Context) ([]Role, error) {
	var out []Role
	for _, role := range r.roles {
		out = append(out, role)
	}
	return out, nil
}

func (r *memoryRulesRepo) CreateRole(ctx context.Context, name, description string) (Role, error) {
	for _, role := range r.roles {
		if role.Name == name {
			return Role{}, ErrRoleTaken
		}
	}
	r.nextRole++
	role := Role{ID: r.nextRole, Name: name, Description: description}
	r.roles[role.ID] = role
	return role, nil
}

func (r *memoryRulesRepo) GetRole(ctx context.Context, id int64) (Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (r *memoryRulesRepo) ListPermissions(ctx context.Context) ([]Permission, error) {
	var out []Permission
	for _, perm := range r.perms {
		out = append(out, perm)
	}
	return out, nil
}

func (r *memoryRulesRepo) CreatePermission(ctx context.Context, perm Permission) (Permission, error) {
	r.nextPerm++
	perm.ID = r.nextPerm
	r.perms[perm.ID] = perm
	return perm, nil
}

func (r *memoryRulesRepo) RolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	return r.rolePerms[roleID], nil
}

func (r *memoryRulesRepo) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	r.rolePerms[roleID] = permissionIDs
	return nil
}

func (r *memoryRulesRepo) AssignRole(ctx context.Context, userID, roleID int64) error {
	r.userRoles[userID] = append(r.userRoles[userID], roleID)
	return nil
}

func (r *memoryRulesRepo) RemoveRole(ctx context.Context, userID, roleID int64) error {
	kept := r.userRoles[userID][:0]
	found := false
	for _, id := range r.userRoles[userID] {
		if id == roleID {
			found = true
			continue
		}
		kept = append(kept, id)
	}
	if !found {
		return ErrNotFound
	}
	r.userRoles[userID] = kept
	return nil
}

type memoryAuditor struct {
	records []shared.AuditLog
}

func (a *memoryAuditor) Record(ctx context.Context, log shared.AuditLog) error {
	a.records = append(a.records, log)
	return nil
}

func TestCreatePermissionValidation(t *testing.T) {
	repo := newMemoryRulesRepo()
	service := NewService(repo, nil, discardLogger())
	ctx := context.Background()

	conds := `{"authorId":"user.id"}`
	perm, err := service.CreatePermission(ctx, 1, Permission{
		Action:     "update",
		Subject:    "Post",
		Conditions: &conds,
	})
	require.NoError(t, err)
	require.NotZero(t, perm.ID)

	_, err = service.CreatePermission(ctx, 1, Permission{Action: "own", Subject: "Post"})
	require.ErrorIs(t, err, ErrInvalidRule)

	badJSON := `{broken`
	_, err = service.CreatePermission(ctx, 1, Permission{Action: "read", Subject: "Post", Conditions: &badJSON})
	require.ErrorIs(t, err, ErrInvalidRule)

	badFields := `{"not":"a list"}`
	_, err = service.CreatePermission(ctx, 1, Permission{Action: "read", Subject: "Post", Fields: &badFields})
	require.ErrorIs(t, err, ErrInvalidRule)

	_, err = service.CreatePermission(ctx, 1, Permission{Action: "read", Subject: "  "})
	require.ErrorIs(t, err, ErrInvalidRule)
}

func TestMutationsAreAudited(t *testing.T) {
	repo := newMemoryRulesRepo()
	audit := &memoryAuditor{}
	service := NewService(repo, audit, discardLogger())
	ctx := context.Background()

	role, err := service.CreateRole(ctx, 42, "EDITOR", "editorial staff")
	require.NoError(t, err)

	perm, err := service.CreatePermission(ctx, 42, Permission{Action: "read", Subject: "Post"})
	require.NoError(t, err)

	require.NoError(t, service.SetRolePermissions(ctx, 42, role.ID, []int64{perm.ID}))
	require.NoError(t, service.AssignRole(ctx, 42, 7, role.ID))
	require.NoError(t, service.RemoveRole(ctx, 42, 7, role.ID))

	require.Len(t, audit.records, 5)
	actions := make([]string, 0, len(audit.records))
	for _, rec := range audit.records {
		require.Equal(t, int64(42), rec.ActorID)
		actions = append(actions, rec.Action)
	}
	require.Equal(t, []string{
		"role.created",
		"permission.created",
		"role.permissions_replaced",
		"role.assigned",
		"role.removed",
	}, actions)
}

func TestSetRolePermissionsUnknownRole(t *testing.T) {
	service := NewService(newMemoryRulesRepo(), nil, discardLogger())

	err := service.SetRolePermissions(context.Background(), 1, 99, []int64{1})
	require.ErrorIs(t, err, ErrNotFound)
}
