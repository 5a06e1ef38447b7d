package users

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pressroom-hq/pressroom/internal/abac"
	"github.com/pressroom-hq/pressroom/internal/shared"
)

// WelcomeMailer enqueues the post-signup welcome email.
type WelcomeMailer interface {
	EnqueueWelcomeEmail(ctx context.Context, email, name string) error
}

// Service wraps account business rules and ABAC scoping.
type Service struct {
	repo   Repository
	mailer WelcomeMailer
	logger *slog.Logger
}

// NewService constructs a Service. mailer may be nil in tests.
func NewService(repo Repository, mailer WelcomeMailer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, mailer: mailer, logger: logger}
}

// CreateInput carries validated signup data.
type CreateInput struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	City      string
	Country   string
}

// Create registers an account with the default USER role and queues the
// welcome email.
func (s *Service) Create(ctx context.Context, input CreateInput) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.Create(ctx, User{
		UUID:         uuid.NewString(),
		Email:        input.Email,
		Username:     input.Username,
		PasswordHash: string(hash),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
		City:         input.City,
		Country:      input.Country,
	})
	if err != nil {
		return User{}, err
	}
	if s.mailer != nil {
		if err := s.mailer.EnqueueWelcomeEmail(ctx, user.Email, user.FullName()); err != nil {
			s.logger.Warn("enqueue welcome email", slog.Any("error", err))
		}
	}
	return user, nil
}

// List returns users visible to the ability, each projected through the
// read field whitelist.
func (s *Service) List(ctx context.Context, ability *abac.Ability, page shared.PageRequest) ([]map[string]any, int, error) {
	pred := ability.AccessibleBy(abac.ActionRead, abac.SubjectUser)
	if pred.IsNever() {
		return nil, 0, nil
	}
	users, total, err := s.repo.List(ctx, pred, page)
	if err != nil {
		return nil, 0, err
	}
	fields := ability.AllowedFields(abac.ActionRead, abac.SubjectUser)
	records := make([]map[string]any, 0, len(users))
	for _, user := range users {
		records = append(records, fields.Project(user.AttributeMap()))
	}
	return records, total, nil
}

// Get returns one user by uuid, scoped and projected by the ability.
func (s *Service) Get(ctx context.Context, ability *abac.Ability, userUUID string) (map[string]any, error) {
	pred := ability.AccessibleBy(abac.ActionRead, abac.SubjectUser)
	user, err := s.repo.GetByUUID(ctx, userUUID, pred)
	if err != nil {
		return nil, err
	}
	fields := ability.AllowedFields(abac.ActionRead, abac.SubjectUser)
	return fields.Project(user.AttributeMap()), nil
}

// UpdateInput carries the updatable profile attributes; nil pointers mean
// "leave unchanged".
type UpdateInput struct {
	Username  *string
	FirstName *string
	LastName  *string
	Phone     *string
	City      *string
	Country   *string
}

// Update applies an ABAC-checked profile update: the target must be
// visible under the update predicate and every submitted attribute must
// be inside the update field whitelist.
func (s *Service) Update(ctx context.Context, ability *abac.Ability, userUUID string, input UpdateInput) (map[string]any, error) {
	pred := ability.AccessibleBy(abac.ActionUpdate, abac.SubjectUser)
	user, err := s.repo.GetByUUID(ctx, userUUID, pred)
	if err != nil {
		return nil, err
	}
	if !ability.Can(abac.ActionUpdate, abac.SubjectUser, user.AttributeMap()) {
		return nil, shared.ErrNotFound
	}

	fields := ability.AllowedFields(abac.ActionUpdate, abac.SubjectUser)
	apply := func(name string, dst *string, src *string) error {
		if src == nil {
			return nil
		}
		if !fields.Contains(name) {
			return ErrFieldForbidden
		}
		*dst = *src
		return nil
	}
	for _, step := range []error{
		apply("username", &user.Username, input.Username),
		apply("firstName", &user.FirstName, input.FirstName),
		apply("lastName", &user.LastName, input.LastName),
		apply("phone", &user.Phone, input.Phone),
		apply("city", &user.City, input.City),
		apply("country", &user.Country, input.Country),
	} {
		if step != nil {
			return nil, step
		}
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return nil, err
	}
	readFields := ability.AllowedFields(abac.ActionRead, abac.SubjectUser)
	return readFields.Project(updated.AttributeMap()), nil
}

// Delete removes a user visible under the delete predicate.
func (s *Service) Delete(ctx context.Context, ability *abac.Ability, userUUID string) error {
	pred := ability.AccessibleBy(abac.ActionDelete, abac.SubjectUser)
	user, err := s.repo.GetByUUID(ctx, userUUID, pred)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, user.ID)
}

// CurrentUser resolves the authenticated actor from the request session.
// Implements abac.IdentitySource.
func (s *Service) CurrentUser(ctx context.Context) (abac.UserContext, error) {
	sess := shared.SessionFromContext(ctx)
	id, ok := sess.UserID()
	if !ok {
		return abac.UserContext{}, abac.ErrUnauthenticated
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return abac.UserContext{}, abac.ErrUnauthenticated
		}
		return abac.UserContext{}, err
	}
	if !user.IsActive {
		return abac.UserContext{}, abac.ErrUnauthenticated
	}
	return user.Context(), nil
}

var _ abac.IdentitySource = (*Service)(nil)
