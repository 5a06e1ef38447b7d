package abac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func postColumns(attr string) (string, bool) {
	switch attr {
	case "authorId":
		return "author_id", true
	case "published":
		return "published", true
	default:
		return "", false
	}
}

func TestPredicateSQLAlwaysNever(t *testing.T) {
	clause, args := Always().SQL(postColumns, 3)
	require.Equal(t, "TRUE", clause)
	require.Empty(t, args)

	clause, args = Never().SQL(postColumns, 0)
	require.Equal(t, "FALSE", clause)
	require.Empty(t, args)

	var zero Predicate
	require.True(t, zero.IsNever())
	clause, _ = zero.SQL(postColumns, 0)
	require.Equal(t, "FALSE", clause)
}

func TestPredicateSQLSingleArm(t *testing.T) {
	pred := anyOf([]map[string]any{{"authorId": int64(7)}})

	clause, args := pred.SQL(postColumns, 0)
	require.Equal(t, "author_id = $1", clause)
	require.Equal(t, []any{int64(7)}, args)
}

func TestPredicateSQLArgOffset(t *testing.T) {
	pred := anyOf([]map[string]any{{"authorId": int64(7)}})

	clause, args := pred.SQL(postColumns, 2)
	require.Equal(t, "author_id = $3", clause)
	require.Equal(t, []any{int64(7)}, args)
}

func TestPredicateSQLMultiArm(t *testing.T) {
	pred := anyOf([]map[string]any{
		{"authorId": int64(7), "published": true},
		{"published": true},
	})

	clause, args := pred.SQL(postColumns, 1)
	// Keys render sorted inside each arm.
	require.Equal(t, "((author_id = $2 AND published = $3) OR published = $4)", clause)
	require.Equal(t, []any{int64(7), true, true}, args)
}

func TestPredicateSQLUnmappableAttr(t *testing.T) {
	pred := anyOf([]map[string]any{
		{"secretScore": 10},
		{"authorId": int64(7)},
	})

	clause, args := pred.SQL(postColumns, 0)
	// The unmappable arm renders FALSE and binds nothing; the other arm
	// keeps contiguous placeholders.
	require.Equal(t, "(FALSE OR author_id = $1)", clause)
	require.Equal(t, []any{int64(7)}, args)
}

func TestPredicateMatches(t *testing.T) {
	pred := anyOf([]map[string]any{
		{"authorId": int64(7)},
		{"published": true},
	})

	require.True(t, pred.Matches(map[string]any{"authorId": int64(7)}))
	require.True(t, pred.Matches(map[string]any{"published": true}))
	require.False(t, pred.Matches(map[string]any{"authorId": int64(8), "published": false}))
	require.True(t, Always().Matches(nil))
	require.False(t, Never().Matches(map[string]any{"authorId": int64(7)}))
}
