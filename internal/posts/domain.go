package posts

import (
	"errors"
	"time"
)

// ErrSlugTaken is returned when a post slug collides with an existing one.
var ErrSlugTaken = errors.New("posts: slug taken")

// ErrFieldForbidden is returned when an update touches a field outside the
// caller's whitelist.
var ErrFieldForbidden = errors.New("posts: field not permitted")

// Post is a published or draft article owned by a user.
type Post struct {
	ID        int64
	Slug      string
	Title     string
	Body      string
	Published bool
	AuthorID  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AttributeMap projects the post into the attribute space rule conditions
// and field whitelists are written against. Keys are stable API names.
func (p Post) AttributeMap() map[string]any {
	return map[string]any{
		"id":        p.ID,
		"slug":      p.Slug,
		"title":     p.Title,
		"body":      p.Body,
		"published": p.Published,
		"authorId":  p.AuthorID,
		"createdAt": p.CreatedAt,
		"updatedAt": p.UpdatedAt,
	}
}

// ColumnFor maps condition attribute names onto posts table columns.
// Attributes without a column mapping render as unsatisfiable arms.
func ColumnFor(attr string) (string, bool) {
	switch attr {
	case "id":
		return "id", true
	case "slug":
		return "slug", true
	case "title":
		return "title", true
	case "published":
		return "published", true
	case "authorId":
		return "author_id", true
	default:
		return "", false
	}
}
