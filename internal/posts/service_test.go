package posts

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pressroom-hq/pressroom/internal/abac"
	"github.com/pressroom-hq/pressroom/internal/platform/httpx"
	"github.com/pressroom-hq/pressroom/internal/shared"
)

type memoryPostRepo struct {
	posts  map[int64]Post
	nextID int64
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newMemoryPostRepo() *memoryPostRepo {
	return &memoryPostRepo{posts: make(map[int64]Post)}
}

func (r *memoryPostRepo) Create(ctx context.Context, post Post) (Post, error) {
	for _, existing := range r.posts {
		if existing.Slug == post.Slug {
			return Post{}, ErrSlugTaken
		}
	}
	r.nextID++
	post.ID = r.nextID
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	r.posts[post.ID] = post
	return post, nil
}

func (r *memoryPostRepo) GetBySlug(ctx context.Context, slug string, pred abac.Predicate) (Post, error) {
	for _, post := range r.posts {
		if post.Slug == slug && pred.Matches(post.AttributeMap()) {
			return post, nil
		}
	}
	return Post{}, shared.ErrNotFound
}

func (r *memoryPostRepo) List(ctx context.Context, pred abac.Predicate, page shared.PageRequest) ([]Post, int, error) {
	var out []Post
	for _, post := range r.posts {
		if pred.Matches(post.AttributeMap()) {
			out = append(out, post)
		}
	}
	return out, len(out), nil
}

func (r *memoryPostRepo) Update(ctx context.Context, post Post) (Post, error) {
	if _, ok := r.posts[post.ID]; !ok {
		return Post{}, shared.ErrNotFound
	}
	post.UpdatedAt = time.Now()
	r.posts[post.ID] = post
	return post, nil
}

func (r *memoryPostRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.posts[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.posts, id)
	return nil
}

func ownerAbility(userID int64) *abac.Ability {
	conds := map[string]any{"authorId": userID}
	return abac.NewAbility(
		abac.CompiledRule{Action: abac.ActionRead, Subject: abac.SubjectPost},
		abac.CompiledRule{Action: abac.ActionCreate, Subject: abac.SubjectPost, Conditions: conds},
		abac.CompiledRule{
			Action:     abac.ActionUpdate,
			Subject:    abac.SubjectPost,
			Conditions: conds,
			Fields:     []string{"title", "body", "published"},
		},
		abac.CompiledRule{Action: abac.ActionDelete, Subject: abac.SubjectPost, Conditions: conds},
	)
}

func seedPost(t *testing.T, repo *memoryPostRepo, title string, authorID int64, published bool) Post {
	t.Helper()
	post, err := repo.Create(context.Background(), Post{
		Slug:      Slugify(title),
		Title:     title,
		Body:      "body",
		Published: published,
		AuthorID:  authorID,
	})
	require.NoError(t, err)
	return post
}

func TestServiceCreateOwnPost(t *testing.T) {
	repo := newMemoryPostRepo()
	service := NewService(repo, discardLogger())

	post, err := service.Create(context.Background(), ownerAbility(7), 7, CreateInput{
		Title: "My First Post",
		Body:  "hello",
	})
	require.NoError(t, err)
	require.Equal(t, "my-first-post", post.Slug)
	require.Equal(t, int64(7), post.AuthorID)
}

func TestServiceCreateDeniedByCondition(t *testing.T) {
	repo := newMemoryPostRepo()
	service := NewService(repo, discardLogger())

	// Ability scoped to author 9 can never create a post it would own as 7.
	_, err := service.Create(context.Background(), ownerAbility(9), 7, CreateInput{Title: "Nope"})
	require.ErrorIs(t, err, httpx.ErrForbidden)
	require.Empty(t, repo.posts)
}

func TestServiceListScopedByPredicate(t *testing.T) {
	repo := newMemoryPostRepo()
	seedPost(t, repo, "Mine", 7, true)
	seedPost(t, repo, "Theirs", 9, true)
	service := NewService(repo, discardLogger())

	// read published-only
	ability := abac.NewAbility(abac.CompiledRule{
		Action:     abac.ActionRead,
		Subject:    abac.SubjectPost,
		Conditions: map[string]any{"authorId": int64(7)},
	})
	records, total, err := service.List(context.Background(), ability, shared.PageRequest{Page: 1, PerPage: 20})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, records, 1)
	require.Equal(t, "mine", records[0]["slug"])
}

func TestServiceListNeverPredicateSkipsStore(t *testing.T) {
	repo := newMemoryPostRepo()
	seedPost(t, repo, "Hidden", 9, true)
	service := NewService(repo, discardLogger())

	ability := abac.NewAbility(abac.CompiledRule{Action: abac.ActionRead, Subject: abac.SubjectUser})
	records, total, err := service.List(context.Background(), ability, shared.PageRequest{Page: 1, PerPage: 20})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, records)
}

func TestServiceGetProjectsFields(t *testing.T) {
	repo := newMemoryPostRepo()
	seedPost(t, repo, "Mine", 7, false)
	service := NewService(repo, discardLogger())

	ability := abac.NewAbility(abac.CompiledRule{
		Action:  abac.ActionRead,
		Subject: abac.SubjectPost,
		Fields:  []string{"slug", "title"},
	})
	record, err := service.Get(context.Background(), ability, "mine")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"slug": "mine", "title": "Mine"}, record)
}

func TestServiceUpdateOutsideWhitelist(t *testing.T) {
	repo := newMemoryPostRepo()
	seedPost(t, repo, "Mine", 7, false)

	conds := map[string]any{"authorId": int64(7)}
	ability := abac.NewAbility(
		abac.CompiledRule{Action: abac.ActionRead, Subject: abac.SubjectPost},
		abac.CompiledRule{
			Action:     abac.ActionUpdate,
			Subject:    abac.SubjectPost,
			Conditions: conds,
			Fields:     []string{"title"},
		},
	)
	service := NewService(repo, discardLogger())

	published := true
	_, err := service.Update(context.Background(), ability, "mine", UpdateInput{Published: &published})
	require.ErrorIs(t, err, ErrFieldForbidden)

	title := "Renamed"
	record, err := service.Update(context.Background(), ability, "mine", UpdateInput{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "Renamed", record["title"])
}

func TestServiceUpdateForeignPostInvisible(t *testing.T) {
	repo := newMemoryPostRepo()
	seedPost(t, repo, "Theirs", 9, true)
	service := NewService(repo, discardLogger())

	title := "Hijack"
	_, err := service.Update(context.Background(), ownerAbility(7), "theirs", UpdateInput{Title: &title})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestServiceDeleteScoped(t *testing.T) {
	repo := newMemoryPostRepo()
	mine := seedPost(t, repo, "Mine", 7, true)
	seedPost(t, repo, "Theirs", 9, true)
	service := NewService(repo, discardLogger())

	require.ErrorIs(t, service.Delete(context.Background(), ownerAbility(7), "theirs"), shared.ErrNotFound)
	require.NoError(t, service.Delete(context.Background(), ownerAbility(7), "mine"))
	_, ok := repo.posts[mine.ID]
	require.False(t, ok)
}
