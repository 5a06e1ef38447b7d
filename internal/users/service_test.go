package users

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pressroom-hq/pressroom/internal/abac"
	"github.com/pressroom-hq/pressroom/internal/shared"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type memoryUserRepo struct {
	users  map[int64]User
	nextID int64
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[int64]User)}
}

func (r *memoryUserRepo) Create(ctx context.Context, user User) (User, error) {
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return User{}, ErrEmailTaken
		}
	}
	r.nextID++
	user.ID = r.nextID
	user.IsActive = true
	user.Roles = []string{abac.RoleUser}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = user
	return user, nil
}

func (r *memoryUserRepo) GetByID(ctx context.Context, id int64) (User, error) {
	user, ok := r.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return user, nil
}

func (r *memoryUserRepo) GetByUUID(ctx context.Context, uuid string, pred abac.Predicate) (User, error) {
	for _, user := range r.users {
		if user.UUID == uuid && pred.Matches(user.AttributeMap()) {
			return user, nil
		}
	}
	return User{}, shared.ErrNotFound
}

func (r *memoryUserRepo) List(ctx context.Context, pred abac.Predicate, page shared.PageRequest) ([]User, int, error) {
	var out []User
	for _, user := range r.users {
		if pred.Matches(user.AttributeMap()) {
			out = append(out, user)
		}
	}
	return out, len(out), nil
}

func (r *memoryUserRepo) Update(ctx context.Context, user User) (User, error) {
	if _, ok := r.users[user.ID]; !ok {
		return User{}, shared.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = user
	return user, nil
}

func (r *memoryUserRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type recordingMailer struct {
	emails []string
}

func (m *recordingMailer) EnqueueWelcomeEmail(ctx context.Context, email, name string) error {
	m.emails = append(m.emails, email)
	return nil
}

func TestServiceCreateHashesAndNotifies(t *testing.T) {
	repo := newMemoryUserRepo()
	mailer := &recordingMailer{}
	service := NewService(repo, mailer, discardLogger())

	user, err := service.Create(context.Background(), CreateInput{
		Email:     "w@pressroom.io",
		Username:  "writer",
		Password:  "sup3rsecret",
		FirstName: "Wri",
		LastName:  "Ter",
	})
	require.NoError(t, err)
	require.NotEmpty(t, user.UUID)
	require.NotEqual(t, "sup3rsecret", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("sup3rsecret")))
	require.Equal(t, []string{"w@pressroom.io"}, mailer.emails)
}

func TestServiceCreateDuplicateEmail(t *testing.T) {
	repo := newMemoryUserRepo()
	service := NewService(repo, nil, discardLogger())

	_, err := service.Create(context.Background(), CreateInput{Email: "w@pressroom.io", Password: "sup3rsecret"})
	require.NoError(t, err)
	_, err = service.Create(context.Background(), CreateInput{Email: "w@pressroom.io", Password: "0therpassw0rd"})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func seedUser(t *testing.T, repo *memoryUserRepo, email, uuid, city string) User {
	t.Helper()
	user, err := repo.Create(context.Background(), User{
		UUID:      uuid,
		Email:     email,
		Username:  email,
		FirstName: "F",
		LastName:  "L",
		City:      city,
	})
	require.NoError(t, err)
	return user
}

func selfAbility(userID int64) *abac.Ability {
	return abac.NewAbility(
		abac.CompiledRule{Action: abac.ActionRead, Subject: abac.SubjectUser},
		abac.CompiledRule{
			Action:     abac.ActionUpdate,
			Subject:    abac.SubjectUser,
			Conditions: map[string]any{"id": userID},
			Fields:     []string{"username", "city"},
		},
	)
}

func TestServiceListProjectsFields(t *testing.T) {
	repo := newMemoryUserRepo()
	seedUser(t, repo, "a@pressroom.io", "uuid-a", "Oslo")
	service := NewService(repo, nil, discardLogger())

	ability := abac.NewAbility(abac.CompiledRule{
		Action:  abac.ActionRead,
		Subject: abac.SubjectUser,
		Fields:  []string{"email", "city"},
	})
	records, total, err := service.List(context.Background(), ability, shared.PageRequest{Page: 1, PerPage: 20})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, map[string]any{"email": "a@pressroom.io", "city": "Oslo"}, records[0])
}

func TestServiceUpdateSelfOnly(t *testing.T) {
	repo := newMemoryUserRepo()
	self := seedUser(t, repo, "a@pressroom.io", "uuid-a", "Oslo")
	seedUser(t, repo, "b@pressroom.io", "uuid-b", "Bergen")
	service := NewService(repo, nil, discardLogger())
	ability := selfAbility(self.ID)

	city := "Tromsø"
	record, err := service.Update(context.Background(), ability, "uuid-a", UpdateInput{City: &city})
	require.NoError(t, err)
	require.Equal(t, "Tromsø", record["city"])

	_, err = service.Update(context.Background(), ability, "uuid-b", UpdateInput{City: &city})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestServiceUpdateFieldOutsideWhitelist(t *testing.T) {
	repo := newMemoryUserRepo()
	self := seedUser(t, repo, "a@pressroom.io", "uuid-a", "Oslo")
	service := NewService(repo, nil, discardLogger())

	phone := "555-0100"
	_, err := service.Update(context.Background(), selfAbility(self.ID), "uuid-a", UpdateInput{Phone: &phone})
	require.ErrorIs(t, err, ErrFieldForbidden)
}

func TestCurrentUserFromSession(t *testing.T) {
	repo := newMemoryUserRepo()
	self := seedUser(t, repo, "a@pressroom.io", "uuid-a", "Oslo")
	service := NewService(repo, nil, discardLogger())

	sess := &shared.Session{}
	sess.SetUserID(self.ID)
	ctx := shared.ContextWithSession(context.Background(), sess)

	user, err := service.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, self.ID, user.ID)
	require.Equal(t, "a@pressroom.io", user.Attrs["email"])
}

func TestCurrentUserUnauthenticated(t *testing.T) {
	service := NewService(newMemoryUserRepo(), nil, discardLogger())

	_, err := service.CurrentUser(context.Background())
	require.ErrorIs(t, err, abac.ErrUnauthenticated)

	// Session exists but the account is gone: still unauthenticated.
	sess := &shared.Session{}
	sess.SetUserID(42)
	_, err = service.CurrentUser(shared.ContextWithSession(context.Background(), sess))
	require.ErrorIs(t, err, abac.ErrUnauthenticated)
}
