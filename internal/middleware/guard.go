package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"storefront/internal/guard"
	"storefront/internal/models"
	"storefront/internal/services"
	"storefront/internal/session"
)

// LoadingRenderer draws the neutral page shown while a guard is pending.
type LoadingRenderer interface {
	RenderLoading(w http.ResponseWriter, r *http.Request)
}

type Guards struct {
	manager *session.Manager
	roles   *services.RoleService
	claims  *services.RoleClaims
	loading LoadingRenderer
	wait    time.Duration
	logger  zerolog.Logger
}

func NewGuards(manager *session.Manager, roles *services.RoleService, claims *services.RoleClaims, loading LoadingRenderer, wait time.Duration, logger zerolog.Logger) *Guards {
	return &Guards{
		manager: manager,
		roles:   roles,
		claims:  claims,
		loading: loading,
		wait:    wait,
		logger:  logger,
	}
}

// Require gates next behind kind. It re-evaluates on every session change
// and role resolution until the decision is terminal or the wait budget
// runs out, in which case the loading page is rendered instead.
func (g *Guards) Require(kind guard.Kind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v := VisitorFrom(r)
			if v == nil {
				g.logger.Error().Str("path", r.URL.Path).Msg("Guard used without session middleware")
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}

			timer := time.NewTimer(g.wait)
			defer timer.Stop()

			var (
				role      services.RoleState
				roleEmail string
			)
			for {
				st := v.Store.Snapshot()
				changed := v.Store.Changed()

				if kind != guard.Private {
					if st.Email() != roleEmail {
						role, roleEmail = services.RoleState{}, st.Email()
					}
					role = g.observeRole(w, r, v, st, role)
				}

				d := guard.Evaluate(kind, st, guard.RoleView{Role: role.Role, Loading: role.Loading}, r.URL.RequestURI())
				switch d.Status {
				case guard.Allowed:
					ctx := context.WithValue(r.Context(), RoleKey, role.Role)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				case guard.Denied:
					g.logger.Debug().Str("guard", kind.String()).Str("path", r.URL.Path).Str("redirect", d.Redirect).Msg("Route denied")
					http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
					return
				}

				select {
				case <-changed:
				case <-role.Ready():
				case <-timer.C:
					w.Header().Set("Cache-Control", "no-store")
					w.Header().Set("Refresh", "1")
					g.loading.RenderLoading(w, r)
					return
				case <-r.Context().Done():
					return
				}
			}
		})
	}
}

// observeRole returns the freshest role observation for st, preferring a
// settled in-flight lookup, then a valid role claim, then the role service.
func (g *Guards) observeRole(w http.ResponseWriter, r *http.Request, v *Visitor, st session.State, prev services.RoleState) services.RoleState {
	if prev.Loading && prev.Ready() != nil {
		settled := prev.Result()
		if settled.Loading {
			return prev
		}
		g.remember(w, r, st, settled)
		return settled
	}
	if role, ok := g.claimedRole(r, st); ok {
		return services.RoleState{Role: role}
	}
	current := g.roles.Lookup(r.Context(), st, v.API.UserRole)
	if !current.Loading {
		g.remember(w, r, st, current)
	}
	return current
}

// claimedRole returns the role from the visitor's claim cookie unless the
// claim is invalid or predates a role change for the same email.
func (g *Guards) claimedRole(r *http.Request, st session.State) (models.Role, bool) {
	if !st.SignedIn() {
		return "", false
	}
	role, issued, ok := g.claims.Verify(g.manager.RoleClaim(r), st.Email())
	if !ok || g.roles.ChangedSince(st.Email(), issued) {
		return "", false
	}
	return role, true
}

func (g *Guards) remember(w http.ResponseWriter, r *http.Request, st session.State, role services.RoleState) {
	if role.Err != nil || !st.SignedIn() {
		return
	}
	tok, err := g.claims.Issue(st.Email(), role.Role)
	if err != nil {
		return
	}
	g.manager.SetRoleClaim(w, r, tok)
}

// AwaitRole resolves the visitor's role for handlers behind the private
// guard, blocking for at most the guard wait budget.
func (g *Guards) AwaitRole(r *http.Request) services.RoleState {
	if role, ok := r.Context().Value(RoleKey).(models.Role); ok && role != "" {
		return services.RoleState{Role: role}
	}
	v := VisitorFrom(r)
	if v == nil {
		return services.RoleState{Role: models.RoleUser}
	}
	ctx, cancel := context.WithTimeout(r.Context(), g.wait)
	defer cancel()

	st, err := v.Store.Wait(ctx)
	if err != nil {
		return services.RoleState{Role: models.RoleUser, Loading: true}
	}
	if role, ok := g.claimedRole(r, st); ok {
		return services.RoleState{Role: role}
	}
	role, err := services.Await(ctx, g.roles.Lookup(ctx, st, v.API.UserRole))
	if err != nil {
		return services.RoleState{Role: models.RoleUser, Loading: true}
	}
	return role
}

// RoleFrom returns the role the guard resolved for this request.
func RoleFrom(r *http.Request) models.Role {
	role, _ := r.Context().Value(RoleKey).(models.Role)
	return role
}
