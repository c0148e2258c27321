// Package tables declares the entities the API persists and the metadata of
// their tables.
package tables

import (
	"context"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/schema"
)

// All returns every table in creation order.
func All() []*schema.Table {
	return []*schema.Table{Users, LanguageItems, Images, ProductCategories, Products, ProductItems, Loans}
}

// Init creates every missing table.
func Init(ctx context.Context, database *db.DB) error {
	return database.CreateTables(ctx, All()...)
}
