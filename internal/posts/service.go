package posts

import (
	"context"
	"log/slog"

	"github.com/pressroom-hq/pressroom/internal/abac"
	"github.com/pressroom-hq/pressroom/internal/platform/httpx"
	"github.com/pressroom-hq/pressroom/internal/shared"
)

// Service wraps post business rules and ABAC scoping.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// CreateInput carries validated post data. The author always comes from
// the authenticated actor, never from the payload.
type CreateInput struct {
	Title     string
	Body      string
	Published bool
}

// Create stores a new post owned by the actor. The caller's ability must
// grant create on posts whose attributes include the actor as author;
// owner-scoped rules like {authorId: user.id} therefore pass for the
// actor's own posts and nothing else.
func (s *Service) Create(ctx context.Context, ability *abac.Ability, authorID int64, input CreateInput) (Post, error) {
	post := Post{
		Slug:      Slugify(input.Title),
		Title:     input.Title,
		Body:      input.Body,
		Published: input.Published,
		AuthorID:  authorID,
	}
	if !ability.Can(abac.ActionCreate, abac.SubjectPost, post.AttributeMap()) {
		return Post{}, httpx.ErrForbidden
	}
	return s.repo.Create(ctx, post)
}

// List returns posts visible to the ability, projected through the read
// field whitelist.
func (s *Service) List(ctx context.Context, ability *abac.Ability, page shared.PageRequest) ([]map[string]any, int, error) {
	pred := ability.AccessibleBy(abac.ActionRead, abac.SubjectPost)
	if pred.IsNever() {
		return nil, 0, nil
	}
	posts, total, err := s.repo.List(ctx, pred, page)
	if err != nil {
		return nil, 0, err
	}
	fields := ability.AllowedFields(abac.ActionRead, abac.SubjectPost)
	records := make([]map[string]any, 0, len(posts))
	for _, post := range posts {
		records = append(records, fields.Project(post.AttributeMap()))
	}
	return records, total, nil
}

// Get returns one post by slug, scoped and projected by the ability.
func (s *Service) Get(ctx context.Context, ability *abac.Ability, slug string) (map[string]any, error) {
	pred := ability.AccessibleBy(abac.ActionRead, abac.SubjectPost)
	post, err := s.repo.GetBySlug(ctx, slug, pred)
	if err != nil {
		return nil, err
	}
	fields := ability.AllowedFields(abac.ActionRead, abac.SubjectPost)
	return fields.Project(post.AttributeMap()), nil
}

// UpdateInput carries updatable post attributes; nil pointers mean "leave
// unchanged".
type UpdateInput struct {
	Title     *string
	Body      *string
	Published *bool
}

// Update applies an ABAC-checked edit: the target must be visible under
// the update predicate and every submitted attribute must be inside the
// update field whitelist. The slug is fixed at creation.
func (s *Service) Update(ctx context.Context, ability *abac.Ability, slug string, input UpdateInput) (map[string]any, error) {
	pred := ability.AccessibleBy(abac.ActionUpdate, abac.SubjectPost)
	post, err := s.repo.GetBySlug(ctx, slug, pred)
	if err != nil {
		return nil, err
	}
	if !ability.Can(abac.ActionUpdate, abac.SubjectPost, post.AttributeMap()) {
		return nil, shared.ErrNotFound
	}

	fields := ability.AllowedFields(abac.ActionUpdate, abac.SubjectPost)
	if input.Title != nil {
		if !fields.Contains("title") {
			return nil, ErrFieldForbidden
		}
		post.Title = *input.Title
	}
	if input.Body != nil {
		if !fields.Contains("body") {
			return nil, ErrFieldForbidden
		}
		post.Body = *input.Body
	}
	if input.Published != nil {
		if !fields.Contains("published") {
			return nil, ErrFieldForbidden
		}
		post.Published = *input.Published
	}

	updated, err := s.repo.Update(ctx, post)
	if err != nil {
		return nil, err
	}
	readFields := ability.AllowedFields(abac.ActionRead, abac.SubjectPost)
	return readFields.Project(updated.AttributeMap()), nil
}

// Delete removes a post visible under the delete predicate.
func (s *Service) Delete(ctx context.Context, ability *abac.Ability, slug string) error {
	pred := ability.AccessibleBy(abac.ActionDelete, abac.SubjectPost)
	post, err := s.repo.GetBySlug(ctx, slug, pred)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, post.ID)
}
