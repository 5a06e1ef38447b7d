package abac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pressroom-hq/pressroom/internal/platform/httpx"
)

// Policy is one authorization check evaluated against a compiled Ability.
// Policies attached to an operation are evaluated in declaration order and
// the first rejection denies the request.
type Policy interface {
	Allow(ability *Ability) bool
}

// PolicyFunc adapts a plain predicate to the Policy interface.
type PolicyFunc func(*Ability) bool

// Allow implements Policy.
func (f PolicyFunc) Allow(a *Ability) bool { return f(a) }

// RequireCan is the common policy checking an action/subject grant.
func RequireCan(action Action, subject Subject) Policy {
	return PolicyFunc(func(a *Ability) bool { return a.Can(action, subject, nil) })
}

// IdentitySource resolves the authenticated actor attached upstream by the
// session middleware. ErrUnauthenticated when no identity is present.
type IdentitySource interface {
	CurrentUser(ctx context.Context) (UserContext, error)
}

// DecisionMetrics records authorization outcomes.
type DecisionMetrics interface {
	AuthzDecision(subject string, allowed bool)
}

// DenialRecorder persists denied requests for auditing.
type DenialRecorder interface {
	RecordDenial(ctx context.Context, actorID int64, route string) error
}

// Guard enforces policy handlers in the request pipeline. It compiles the
// Ability once per request, evaluates the operation's policies against it,
// and exposes the Ability to downstream logic on success. Routes mounted
// without Protect are public and bypass the pipeline entirely; the choice
// is explicit at registration time.
type Guard struct {
	Identity IdentitySource
	Compiler *Compiler
	Metrics  DecisionMetrics
	Audit    DenialRecorder
	Logger   *slog.Logger
}

// Protect wraps a handler with compilation plus the given policy chain.
// A compilation that yields no permissions and a policy rejection both
// surface as a generic 403 carrying no information about the rule set.
func (g Guard) Protect(policies ...Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			user, err := g.Identity.CurrentUser(ctx)
			if err != nil {
				if errors.Is(err, ErrUnauthenticated) {
					httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
					return
				}
				g.logError("resolve identity", err)
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}

			ability, err := g.Compiler.CompileForUser(ctx, user)
			if err != nil {
				switch {
				case errors.Is(err, ErrNoPermissions):
					g.deny(ctx, w, r, user)
				case errors.Is(err, ErrUserNotFound):
					// Identity referenced a user that no longer exists:
					// the session is stale, not forbidden.
					httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
				default:
					g.logError("compile ability", err)
					httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				}
				return
			}

			for _, policy := range policies {
				if !policy.Allow(ability) {
					g.deny(ctx, w, r, user)
					return
				}
			}

			if g.Metrics != nil {
				g.Metrics.AuthzDecision(r.URL.Path, true)
			}
			ctx = ContextWithActor(ctx, user)
			ctx = ContextWithAbility(ctx, ability)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (g Guard) deny(ctx context.Context, w http.ResponseWriter, r *http.Request, user UserContext) {
	if g.Metrics != nil {
		g.Metrics.AuthzDecision(r.URL.Path, false)
	}
	if g.Audit != nil {
		if err := g.Audit.RecordDenial(ctx, user.ID, r.URL.Path); err != nil {
			g.logError("record denial", err)
		}
	}
	if g.Logger != nil {
		g.Logger.Info("request denied",
			slog.Int64("user_id", user.ID),
			slog.String("path", r.URL.Path))
	}
	httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
}

func (g Guard) logError(msg string, err error) {
	if g.Logger != nil {
		g.Logger.Error(msg, slog.Any("error", err))
	}
}

type abilityContextKey struct{}

type actorContextKey struct{}

// ContextWithAbility stores the compiled Ability in the context.
func ContextWithAbility(ctx context.Context, ability *Ability) context.Context {
	return context.WithValue(ctx, abilityContextKey{}, ability)
}

// AbilityFromContext extracts the compiled Ability, or nil when the route
// was not guarded.
func AbilityFromContext(ctx context.Context) *Ability {
	ability, _ := ctx.Value(abilityContextKey{}).(*Ability)
	return ability
}

// ContextWithActor stores the acting user's projection in the context.
func ContextWithActor(ctx context.Context, user UserContext) context.Context {
	return context.WithValue(ctx, actorContextKey{}, user)
}

// ActorFromContext extracts the acting user stored by the guard.
func ActorFromContext(ctx context.Context) (UserContext, bool) {
	user, ok := ctx.Value(actorContextKey{}).(UserContext)
	return user, ok
}
