package abac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseConditions(t *testing.T) {
	conds, err := ParseConditions(`{"authorId":"user.id","published":true,"note":"user.profile.deep","label":"username"}`)
	require.NoError(t, err)

	require.True(t, conds["authorId"].IsRef())
	require.Equal(t, "id", conds["authorId"].Attr)

	require.False(t, conds["published"].IsRef())
	require.Equal(t, true, conds["published"].Literal)

	// Multi-segment references are not part of the template language and
	// stay literal strings.
	require.False(t, conds["note"].IsRef())
	require.Equal(t, "user.profile.deep", conds["note"].Literal)

	require.False(t, conds["label"].IsRef())
}

func TestParseConditionsMalformed(t *testing.T) {
	_, err := ParseConditions(`[1,2,3]`)
	require.Error(t, err)

	_, err = ParseConditions(`{"a":`)
	require.Error(t, err)
}

func TestResolveConditionsLiteralsPassThrough(t *testing.T) {
	conds := map[string]ConditionValue{
		"published": {Literal: true},
		"kind":      {Literal: "article"},
	}

	resolved, complete := ResolveConditions(conds, UserContext{ID: 1})
	require.True(t, complete)
	require.Equal(t, map[string]any{"published": true, "kind": "article"}, resolved)
}

func TestResolveConditionsBindsUserAttrs(t *testing.T) {
	user := UserContext{ID: 7, Attrs: map[string]any{"city": "Oslo"}}
	conds := map[string]ConditionValue{
		"authorId": {Attr: "id"},
		"city":     {Attr: "city"},
	}

	resolved, complete := ResolveConditions(conds, user)
	require.True(t, complete)
	require.Equal(t, map[string]any{"authorId": int64(7), "city": "Oslo"}, resolved)
}

func TestResolveConditionsAbsentAttr(t *testing.T) {
	conds := map[string]ConditionValue{
		"dept": {Attr: "department"},
	}

	resolved, complete := ResolveConditions(conds, UserContext{ID: 7})
	require.False(t, complete)
	require.Contains(t, resolved, "dept")
	require.Nil(t, resolved["dept"])
}

func TestResolveConditionsNilAttrIncomplete(t *testing.T) {
	user := UserContext{ID: 7, Attrs: map[string]any{"phone": nil}}
	conds := map[string]ConditionValue{"contact": {Attr: "phone"}}

	_, complete := ResolveConditions(conds, user)
	require.False(t, complete)
}
