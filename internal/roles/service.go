package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pressroom-hq/pressroom/internal/abac"
	"github.com/pressroom-hq/pressroom/internal/shared"
)

// ErrInvalidRule indicates a rule payload that the compiler could never
// honor: unknown action, blank subject, or unparseable JSON.
var ErrInvalidRule = errors.New("roles: invalid rule")

// RepositoryPort defines data access methods for rule administration.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, name, description string) (Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	CreatePermission(ctx context.Context, perm Permission) (Permission, error)
	RolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error)
	ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	AssignRole(ctx context.Context, userID, roleID int64) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
}

// Auditor persists administrative mutations.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles rule administration. Mutations are audited; a failed
// audit write is logged but never blocks the mutation itself.
type Service struct {
	repo   RepositoryPort
	audit  Auditor
	logger *slog.Logger
}

// NewService builds a Service instance. audit may be nil in tests.
func NewService(repo RepositoryPort, audit Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, actorID int64, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", ErrInvalidRule)
	}
	role, err := s.repo.CreateRole(ctx, name, strings.TrimSpace(description))
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, actorID, "role.created", "role", strconv.FormatInt(role.ID, 10), map[string]any{"name": role.Name})
	return role, nil
}

// ListPermissions returns every stored rule.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// CreatePermission stores a new rule after checking the payload is one
// the compiler can honor. Storage stays tolerant of bad rows arriving by
// other paths; this is the front door, so it refuses them outright.
func (s *Service) CreatePermission(ctx context.Context, actorID int64, perm Permission) (Permission, error) {
	if err := validateRule(perm); err != nil {
		return Permission{}, err
	}
	created, err := s.repo.CreatePermission(ctx, perm)
	if err != nil {
		return Permission{}, err
	}
	s.record(ctx, actorID, "permission.created", "permission", strconv.FormatInt(created.ID, 10), map[string]any{
		"action":  created.Action,
		"subject": created.Subject,
	})
	return created, nil
}

// SetRolePermissions replaces the rule set attached to a role.
func (s *Service) SetRolePermissions(ctx context.Context, actorID, roleID int64, permissionIDs []int64) error {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	if err := s.repo.ReplaceRolePermissions(ctx, roleID, permissionIDs); err != nil {
		return err
	}
	s.record(ctx, actorID, "role.permissions_replaced", "role", strconv.FormatInt(roleID, 10), map[string]any{
		"permission_ids": permissionIDs,
	})
	return nil
}

// RolePermissionIDs returns the ids currently attached to a role.
func (s *Service) RolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return s.repo.RolePermissionIDs(ctx, roleID)
}

// AssignRole attaches a role to a user.
func (s *Service) AssignRole(ctx context.Context, actorID, userID, roleID int64) error {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	if err := s.repo.AssignRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.record(ctx, actorID, "role.assigned", "user", strconv.FormatInt(userID, 10), map[string]any{"role_id": roleID})
	return nil
}

// RemoveRole detaches a role from a user.
func (s *Service) RemoveRole(ctx context.Context, actorID, userID, roleID int64) error {
	if err := s.repo.RemoveRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.record(ctx, actorID, "role.removed", "user", strconv.FormatInt(userID, 10), map[string]any{"role_id": roleID})
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}

func validateRule(perm Permission) error {
	switch abac.Action(perm.Action) {
	case abac.ActionCreate, abac.ActionRead, abac.ActionUpdate, abac.ActionDelete, abac.ActionManage:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidRule, perm.Action)
	}
	if strings.TrimSpace(perm.Subject) == "" {
		return fmt.Errorf("%w: subject required", ErrInvalidRule)
	}
	if perm.Conditions != nil {
		if _, err := abac.ParseConditions(*perm.Conditions); err != nil {
			return fmt.Errorf("%w: conditions: %v", ErrInvalidRule, err)
		}
	}
	if perm.Fields != nil {
		if _, err := abac.ParseFields(*perm.Fields); err != nil {
			return fmt.Errorf("%w: fields: %v", ErrInvalidRule, err)
		}
	}
	return nil
}
