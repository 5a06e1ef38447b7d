package posts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"Go 1.24 Release Notes", "go-1-24-release-notes"},
		{"  Leading & Trailing!  ", "leading-trailing"},
		{"Crème Brûlée à la Façon", "creme-brulee-a-la-facon"},
		{"Über uns", "uber-uns"},
		{"already-a-slug", "already-a-slug"},
		{"!!!", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Slugify(tc.title), "title=%q", tc.title)
	}
}
