// Package access resolves the acting user of a request and checks their
// role against a casbin RBAC policy.
package access

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"

	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/event"
)

// Model matches a role against a path pattern and a method regexp.
const Model = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// DefaultPolicy lets every user read and raise requests; admins may do
// anything.
const DefaultPolicy = `
p, role::user, /v1/*, ^GET$
p, role::user, /v1/requests, ^POST$
p, role::admin, /*, .*
g, role::admin, role::user
`

// UserLookup lists the users an actor header is resolved against.
type UserLookup interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
}

type ctxKey struct{}

// WithActor stores a in ctx.
func WithActor(ctx context.Context, a domain.Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// ActorFrom returns the actor stored by the middleware.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(domain.Actor)
	return a, ok
}

// Authorizer enforces the RBAC policy for HTTP requests.
type Authorizer struct {
	enforcer *casbin.SyncedEnforcer
	users    UserLookup
	cache    *expirable.LRU[string, domain.User]
	log      *slog.Logger
}

// New builds an Authorizer from a policy in casbin CSV form. An empty
// policy selects DefaultPolicy.
func New(users UserLookup, policy string, logger *slog.Logger) (*Authorizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(policy) == "" {
		policy = DefaultPolicy
	}
	m, err := model.NewModelFromString(Model)
	if err != nil {
		return nil, errors.Wrap(err, "parsing rbac model")
	}
	e, err := casbin.NewSyncedEnforcer(m, stringadapter.NewAdapter(strings.TrimSpace(policy)))
	if err != nil {
		return nil, errors.Wrap(err, "loading rbac policy")
	}
	e.EnableLog(false)
	return &Authorizer{
		enforcer: e,
		users:    users,
		cache:    expirable.NewLRU[string, domain.User](512, nil, time.Minute),
		log:      logger,
	}, nil
}

// Allowed reports whether role may perform method on path.
func (a *Authorizer) Allowed(role domain.Role, path, method string) (bool, error) {
	ok, err := a.enforcer.Enforce("role::"+string(role), path, method)
	if err != nil {
		return false, errors.Wrap(err, "enforcing policy")
	}
	return ok, nil
}

// Resolve finds the user named by an actor header value, which may be a
// user id or an email address.
func (a *Authorizer) Resolve(ctx context.Context, actor string) (domain.User, bool, error) {
	key := strings.ToLower(strings.TrimSpace(actor))
	if u, ok := a.cache.Get(key); ok {
		return u, true, nil
	}
	users, err := a.users.ListUsers(ctx)
	if err != nil {
		return domain.User{}, false, errors.Wrap(err, "listing users")
	}
	for _, u := range users {
		if u.ID == actor || strings.EqualFold(u.Email, key) {
			a.cache.Add(key, u)
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

// HandleEvent drops cached users whenever a user record changes.
func (a *Authorizer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	if evt.Category == "user" {
		a.cache.Purge()
	}
	return nil
}

// Middleware resolves the actor, checks the policy and stores the actor in
// the request context.
func (a *Authorizer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromHeaders(w, r)
		if !ok {
			return
		}
		u, found, err := a.Resolve(r.Context(), actor.Name)
		if err != nil {
			a.log.Error("resolving actor", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			return
		}
		if !found {
			writeError(w, http.StatusForbidden, "UNKNOWN_ACTOR", "actor "+actor.Name+" is not a known user")
			return
		}
		allowed, err := a.Allowed(u.Role, r.URL.Path, r.Method)
		if err != nil {
			a.log.Error("checking access", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			return
		}
		if !allowed {
			writeError(w, http.StatusForbidden, "FORBIDDEN", string(u.Role)+" may not "+r.Method+" "+r.URL.Path)
			return
		}
		actor.Name = u.Email
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// ActorOnly records the actor from the headers without any policy check.
func ActorOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromHeaders(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// actorFromHeaders reads X-Actor, X-Source and X-Correlation-ID.
func actorFromHeaders(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	name := strings.TrimSpace(r.Header.Get("X-Actor"))
	if name == "" {
		writeError(w, http.StatusUnauthorized, "MISSING_ACTOR", "X-Actor header is required")
		return domain.Actor{}, false
	}
	source := r.Header.Get("X-Source")
	if source == "" {
		source = "user"
	}
	return domain.Actor{
		Name:          name,
		Source:        source,
		CorrelationID: r.Header.Get("X-Correlation-ID"),
	}, true
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
