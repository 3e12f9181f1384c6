package navigation

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

type View string

const (
	ViewCatalog  View = "catalog"
	ViewOrder    View = "order"
	ViewLogin    View = "login"
	ViewRegister View = "register"
)

const (
	PathCatalog  = "/"
	PathLogin    = "/login"
	PathRegister = "/register"
	patternOrder = "/order/{id}"
)

type Match struct {
	View   View
	ItemID string
}

type route struct {
	view View
	mux  *chi.Mux
}

// Router maps client paths to views. Matching is delegated to chi; each view
// gets its own mux so a match tells us which view it was.
type Router struct {
	routes []route
}

func NewRouter() *Router {
	r := &Router{}
	r.add(ViewCatalog, PathCatalog)
	r.add(ViewOrder, patternOrder)
	r.add(ViewLogin, PathLogin)
	r.add(ViewRegister, PathRegister)
	return r
}

func (r *Router) add(view View, pattern string) {
	mux := chi.NewRouter()
	mux.Get(pattern, http.NotFound)
	r.routes = append(r.routes, route{view: view, mux: mux})
}

func (r *Router) Resolve(loc Location) (Match, bool) {
	path := loc.Path
	if path == "" {
		path = PathCatalog
	}
	for _, rt := range r.routes {
		rctx := chi.NewRouteContext()
		if !rt.mux.Match(rctx, http.MethodGet, path) {
			continue
		}
		m := Match{View: rt.view}
		if rt.view == ViewOrder {
			id, err := url.PathUnescape(rctx.URLParam("id"))
			if err != nil || id == "" {
				return Match{}, false
			}
			m.ItemID = id
		}
		return m, true
	}
	return Match{}, false
}
