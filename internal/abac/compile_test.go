package abac

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubRuleStore struct {
	grants map[int64][]RoleGrant
	err    error
}

func (s *stubRuleStore) RolesWithPermissions(ctx context.Context, userID int64) ([]RoleGrant, error) {
	if s.err != nil {
		return nil, s.err
	}
	grants, ok := s.grants[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return grants, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func user7() UserContext {
	return UserContext{ID: 7, Attrs: map[string]any{"id": int64(7), "email": "w@pressroom.io"}}
}

func grant(perms ...Permission) []RoleGrant {
	return []RoleGrant{{Role: Role{ID: 1, Name: RoleUser}, Permissions: perms}}
}

func strptr(s string) *string { return &s }

func TestCompileBindsTemplateToUser(t *testing.T) {
	store := &stubRuleStore{grants: map[int64][]RoleGrant{
		7: grant(Permission{
			ID:         1,
			Action:     ActionUpdate,
			Subject:    SubjectPost,
			Conditions: strptr(`{"authorId":"user.id"}`),
		}),
	}}
	compiler := NewCompiler(store, discardLogger())

	ability, err := compiler.CompileForUser(context.Background(), user7())
	require.NoError(t, err)

	require.True(t, ability.Can(ActionUpdate, SubjectPost, map[string]any{"authorId": int64(7)}))
	require.False(t, ability.Can(ActionUpdate, SubjectPost, map[string]any{"authorId": int64(9)}))
}

func TestCompileEmptyRuleSet(t *testing.T) {
	store := &stubRuleStore{grants: map[int64][]RoleGrant{
		7: {{Role: Role{ID: 3, Name: RoleGuest}}},
	}}
	compiler := NewCompiler(store, discardLogger())

	ability, err := compiler.CompileForUser(context.Background(), user7())
	require.ErrorIs(t, err, ErrNoPermissions)
	require.Nil(t, ability)
}

func TestCompileUnknownUser(t *testing.T) {
	store := &stubRuleStore{grants: map[int64][]RoleGrant{}}
	compiler := NewCompiler(store, discardLogger())

	_, err := compiler.CompileForUser(context.Background(), UserContext{ID: 404})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestCompileStoreFailure(t *testing.T) {
	storeErr := errors.New("connection refused")
	compiler := NewCompiler(&stubRuleStore{err: storeErr}, discardLogger())

	_, err := compiler.CompileForUser(context.Background(), user7())
	require.ErrorIs(t, err, storeErr)
}

func TestCompileMalformedConditionsDropsOnlyThatRule(t *testing.T) {
	store := &stubRuleStore{grants: map[int64][]RoleGrant{
		7: grant(
			Permission{ID: 1, Action: ActionRead, Subject: SubjectPost, Conditions: strptr(`{not json`)},
			Permission{ID: 2, Action: ActionRead, Subject: SubjectUser},
		),
	}}
	compiler := NewCompiler(store, discardLogger())

	ability, err := compiler.CompileForUser(context.Background(), user7())
	require.NoError(t, err)

	require.False(t, ability.Can(ActionRead, SubjectPost, nil))
	require.True(t, ability.Can(ActionRead, SubjectUser, nil))
}

func TestCompileMalformedFieldsKeepsGrant(t *testing.T) {
	store := &stubRuleStore{grants: map[int64][]RoleGrant{
		7: grant(Permission{
			ID:      1,
			Action:  ActionRead,
			Subject: SubjectUser,
			Fields:  strptr(`"oops"`),
		}),
	}}
	compiler := NewCompiler(store, discardLogger())

	ability, err := compiler.CompileForUser(context.Background(), user7())
	require.NoError(t, err)

	require.True(t, ability.Can(ActionRead, SubjectUser, nil))
	require.True(t, ability.AllowedFields(ActionRead, SubjectUser).All)
}

func TestCompileUnresolvedTemplateNeverMatches(t *testing.T) {
	store := &stubRuleStore{grants: map[int64][]RoleGrant{
		7: grant(Permission{
			ID:         1,
			Action:     ActionRead,
			Subject:    SubjectPost,
			Conditions: strptr(`{"ownerTag":"user.department"}`),
		}),
	}}
	compiler := NewCompiler(store, discardLogger())

	ability, err := compiler.CompileForUser(context.Background(), user7())
	require.NoError(t, err)

	require.False(t, ability.Can(ActionRead, SubjectPost, nil))
	require.False(t, ability.Can(ActionRead, SubjectPost, map[string]any{"ownerTag": nil}))
	require.True(t, ability.AccessibleBy(ActionRead, SubjectPost).IsNever())
}

func TestCompileDuplicateRulesAcrossRoles(t *testing.T) {
	perm := Permission{ID: 1, Action: ActionRead, Subject: SubjectPost}
	store := &stubRuleStore{grants: map[int64][]RoleGrant{
		7: {
			{Role: Role{ID: 1, Name: RoleUser}, Permissions: []Permission{perm}},
			{Role: Role{ID: 2, Name: "EDITOR"}, Permissions: []Permission{perm}},
		},
	}}
	compiler := NewCompiler(store, discardLogger())

	ability, err := compiler.CompileForUser(context.Background(), user7())
	require.NoError(t, err)
	require.True(t, ability.Can(ActionRead, SubjectPost, nil))
}
