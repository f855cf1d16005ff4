// Package httpapi exposes the habit services as a JSON REST API.
package httpapi

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"habitbot/internal/auth"
	"habitbot/internal/habits"
	logx "habitbot/pkg/logx"
)

// HealthFunc reports component state for /healthz.
type HealthFunc func(ctx context.Context) map[string]any

type Deps struct {
	Habits   *habits.Service
	Places   *habits.CatalogService
	Actions  *habits.CatalogService
	Auth     *auth.Authenticator
	Health   HealthFunc
	PageSize int
	MaxPage  int
	Log      logx.Logger
}

// API routes requests under /habits/ to the services.
type API struct {
	habits  *habits.Service
	places  *habits.CatalogService
	actions *habits.CatalogService
	auth    *auth.Authenticator
	health  HealthFunc
	pager   *pager
	log     logx.Logger
}

func NewAPI(d Deps) *API {
	log := d.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	return &API{
		habits:  d.Habits,
		places:  d.Places,
		actions: d.Actions,
		auth:    d.Auth,
		health:  d.Health,
		pager:   newPager(d.PageSize, d.MaxPage),
		log:     log.With(logx.String("comp", "api")),
	}
}

// SetPagination swaps the page size limits. Safe for concurrent use.
func (a *API) SetPagination(size, max int) { a.pager.set(size, max) }

// Handler returns the routed handler.
//
// Routes under /habits/ are dispatched by path segment because a numeric id
// and the fixed names (places, actions, public, create) share a position.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.healthz)
	mux.Handle("/habits/places/", a.withAuth(a.catalogRoutes("/habits/places/", a.places)))
	mux.Handle("/habits/actions/", a.withAuth(a.catalogRoutes("/habits/actions/", a.actions)))
	mux.Handle("/habits/", a.withAuth(http.HandlerFunc(a.habitRoutes)))
	return mux
}

// routeFunc handles one method on a resolved route. id is zero for
// collection routes.
type routeFunc func(w http.ResponseWriter, r *http.Request, id int64)

type methods map[string]routeFunc

func (a *API) dispatch(w http.ResponseWriter, r *http.Request, id int64, ms methods) {
	if h, ok := ms[r.Method]; ok {
		h(w, r, id)
		return
	}
	allowed := make([]string, 0, len(ms))
	for m := range ms {
		allowed = append(allowed, m)
	}
	sort.Strings(allowed)
	methodNotAllowed(w, r, allowed)
}

func segments(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}

func (a *API) habitRoutes(w http.ResponseWriter, r *http.Request) {
	segs := segments(r.URL.Path, "/habits/")
	switch {
	case len(segs) == 0:
		a.dispatch(w, r, 0, methods{http.MethodGet: a.listHabits})
		return
	case len(segs) == 1 && segs[0] == "public":
		a.dispatch(w, r, 0, methods{http.MethodGet: a.listPublicHabits})
		return
	case len(segs) == 1 && segs[0] == "create":
		a.dispatch(w, r, 0, methods{http.MethodPost: a.createHabit})
		return
	}

	id, ok := parseID(segs[0])
	switch {
	case !ok || len(segs) > 2:
		writeErr(w, r, a.log, errRouteGone)
	case len(segs) == 1:
		a.dispatch(w, r, id, methods{http.MethodGet: a.getHabit})
	case segs[1] == "update":
		a.dispatch(w, r, id, methods{
			http.MethodPut:   a.updateHabit(false),
			http.MethodPatch: a.updateHabit(true),
		})
	case segs[1] == "delete":
		a.dispatch(w, r, id, methods{http.MethodDelete: a.deleteHabit})
	default:
		writeErr(w, r, a.log, errRouteGone)
	}
}

func (a *API) catalogRoutes(prefix string, svc *habits.CatalogService) http.Handler {
	h := catalogHandlers{api: a, svc: svc}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		segs := segments(r.URL.Path, prefix)
		switch len(segs) {
		case 0:
			a.dispatch(w, r, 0, methods{
				http.MethodGet:  h.list,
				http.MethodPost: h.create,
			})
		case 1:
			id, ok := parseID(segs[0])
			if !ok {
				writeErr(w, r, a.log, errRouteGone)
				return
			}
			a.dispatch(w, r, id, methods{
				http.MethodGet:    h.get,
				http.MethodPut:    h.update(false),
				http.MethodPatch:  h.update(true),
				http.MethodDelete: h.delete,
			})
		default:
			writeErr(w, r, a.log, errRouteGone)
		}
	})
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if a.health != nil {
		for k, v := range a.health(r.Context()) {
			body[k] = v
		}
	}
	writeJSON(w, http.StatusOK, body)
}
