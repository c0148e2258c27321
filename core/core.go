// Package core wires every request type of the inventory API into a registry.
package core

import (
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/api/dispatch"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/core/auth"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/core/categories"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/core/images"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/core/loans"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/core/productitems"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/core/products"
)

// RegisterAll adds every handler to r. The registry is not frozen.
func RegisterAll(r *dispatch.Registry) {
	auth.Register(r)
	categories.Register(r)
	products.Register(r)
	productitems.Register(r)
	images.Register(r)
	loans.NewService().Register(r)
}
