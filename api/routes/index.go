// Package routes builds the chi routers of the API: the public router, where
// every request goes to the dispatcher, and the admin router.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/api/routes/server"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/api/routes/tables"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
)

// Public routes every path and method to the dispatcher; the request type in
// the body decides what happens.
func Public(dispatcher http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Handle("/", dispatcher)
	r.Handle("/*", dispatcher)
	return r
}

// Admin serves the operator endpoints. It is meant for a loopback address.
func Admin(ops server.Operator, src db.Source) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", server.HandleHealth(ops))
	r.Route("/admin", func(r chi.Router) {
		server.RegisterRoutes(r, ops)
		r.Route("/tables", func(r chi.Router) {
			tables.RegisterRoutes(r, src)
		})
	})
	return r
}
