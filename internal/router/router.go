// Package router is a thin layer over http.ServeMux that adds middleware
// chains, route groups and a record of registered routes.
package router

import (
	"net/http"
	"slices"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Router registers method-qualified patterns on a shared ServeMux. A group
// made with Group writes to the same mux and route list as its parent.
type Router struct {
	mux    *http.ServeMux
	chain  []Middleware
	routes *[]string
}

// New returns a Router whose routes all run through mw, outermost first.
func New(mw ...Middleware) *Router {
	return &Router{mux: http.NewServeMux(), chain: mw, routes: new([]string)}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Group returns a router that adds mw after this router's chain.
func (r *Router) Group(mw ...Middleware) *Router {
	return &Router{
		mux:    r.mux,
		chain:  slices.Concat(r.chain, mw),
		routes: r.routes,
	}
}

func (r *Router) Get(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodGet, pattern, h, mw...)
}

func (r *Router) Post(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodPost, pattern, h, mw...)
}

func (r *Router) Patch(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodPatch, pattern, h, mw...)
}

func (r *Router) Delete(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodDelete, pattern, h, mw...)
}

// Handle registers h for method and pattern behind the router's chain and
// any route-specific mw.
func (r *Router) Handle(method, pattern string, h http.Handler, mw ...Middleware) {
	route := method + " " + pattern
	r.mux.Handle(route, Chain(h, slices.Concat(r.chain, mw)...))
	*r.routes = append(*r.routes, route)
}

// NotFound answers requests that match no registered pattern.
func (r *Router) NotFound(h http.HandlerFunc) {
	r.mux.Handle("/", Chain(h, r.chain...))
}

// Routes lists registered routes as "METHOD /pattern", sorted.
func (r *Router) Routes() []string {
	out := slices.Clone(*r.routes)
	slices.Sort(out)
	return out
}

// Chain wraps h so that mw[0] runs first.
func Chain(h http.Handler, mw ...Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
