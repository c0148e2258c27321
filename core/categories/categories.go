// Package categories manages product categories and their translated names.
package categories

import (
	"errors"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/api/dispatch"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/core/query"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/schema"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/tables"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/types/api"
)

// Reserved category ids that cannot be created, renamed or removed.
var reserved = map[string]bool{"default": true, "uncategorized": true}

func Register(r *dispatch.Registry) {
	admin := dispatch.Requirements{MinPermission: tables.PermissionAdmin}
	r.Register("addProductCategory", Add, admin)
	r.Register("getProductCategories", Get, dispatch.Requirements{MinPermission: tables.PermissionUser})
	r.Register("updateProductCategory", Update, admin)
	r.Register("deleteProductCategory", Delete, admin)
}

// NameID is the id of the language row holding a category's name.
func NameID(categoryID string) string { return categoryID + "_name" }

// Add creates a category and its name row.
func Add(req *dispatch.Request) (*api.Response, error) {
	id, ok := req.Args.String("categoryID")
	if !ok {
		return api.MissingArguments("categoryID", "name"), nil
	}
	if reserved[id] {
		return api.InvalidArguments("categoryID"), nil
	}
	names, resp := query.Translations(req.Args, "name", true)
	if resp != nil {
		return resp, nil
	}

	ctx := req.Context()
	existing, err := db.Related[tables.ProductCategory](ctx, req.Conn, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return api.AlreadyExists(id), nil
	}

	name, err := tables.NewLanguageItem(NameID(id), names)
	if errors.Is(err, schema.ErrLength) {
		return api.InvalidArguments("categoryID", "name"), nil
	} else if err != nil {
		return nil, err
	}
	category, err := tables.NewProductCategory(id, name.ID())
	if errors.Is(err, schema.ErrLength) {
		return api.InvalidArguments("categoryID"), nil
	} else if err != nil {
		return nil, err
	}

	err = req.Conn.Tx(ctx, func(tx *db.Executor) error {
		if _, err := tx.Insert(ctx, name); err != nil {
			return err
		}
		_, err := tx.Insert(ctx, category)
		return err
	})
	if err != nil {
		return nil, err
	}
	return api.OK(nil), nil
}

// Get lists categories. See query.ParseListing for the arguments.
func Get(req *dispatch.Request) (*api.Response, error) {
	listing, resp := query.ParseListing(req.Args, tables.ProductCategories, "name")
	if resp != nil {
		return resp, nil
	}
	rows, err := listing.Run(req.Context(), req.Conn, nil)
	if err != nil {
		return nil, err
	}
	return api.OK(rows), nil
}

// Update changes the translations of a category and optionally renames it.
func Update(req *dispatch.Request) (*api.Response, error) {
	id, ok := req.Args.String("categoryID")
	if !ok {
		return api.MissingArguments("categoryID"), nil
	}
	if reserved[id] {
		return api.InvalidArguments("categoryID"), nil
	}
	newID, rename := req.Args.String("newCategoryID")
	if rename && (reserved[newID] || newID == "") {
		return api.InvalidArguments("newCategoryID"), nil
	}
	names, resp := query.Translations(req.Args, "name", false)
	if resp != nil {
		return resp, nil
	}

	ctx := req.Context()
	category, err := db.Related[tables.ProductCategory](ctx, req.Conn, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return api.NoSuchProductCategory(id), nil
	}
	if rename && newID != id {
		taken, err := db.Related[tables.ProductCategory](ctx, req.Conn, newID)
		if err != nil {
			return nil, err
		}
		if taken != nil {
			return api.AlreadyExists(newID), nil
		}
	} else {
		rename = false
	}

	name, err := category.LoadName(ctx, req.Conn)
	if err != nil {
		return nil, err
	}
	if name == nil {
		if name, err = tables.NewLanguageItem(NameID(id), nil); err != nil {
			return nil, err
		}
	}
	if err := name.SetTranslations(names); err != nil {
		return api.InvalidArguments("name"), nil
	}

	var renamed []*tables.Product
	if rename {
		if err := name.SetID(NameID(newID)); err != nil {
			return api.InvalidArguments("newCategoryID"), nil
		}
		if err := category.SetID(newID); err != nil {
			return api.InvalidArguments("newCategoryID"), nil
		}
		if err := category.SetNameID(name.ID()); err != nil {
			return nil, err
		}
		products, err := db.Select[tables.Product](ctx, req.Conn, req.Conn.Condition().Column("category").Equals(id, schema.VarChar), nil)
		if err != nil {
			return nil, err
		}
		for _, p := range products {
			if err := p.SetCategoryID(newID); err != nil {
				return nil, err
			}
		}
		renamed = products
	}

	err = req.Conn.Tx(ctx, func(tx *db.Executor) error {
		if name.Row().HasSnapshot() {
			if _, err := tx.Update(ctx, name); err != nil {
				return err
			}
		} else if _, err := tx.Insert(ctx, name); err != nil {
			return err
		}
		if _, err := tx.Update(ctx, category); err != nil {
			return err
		}
		for _, p := range renamed {
			if _, err := tx.Update(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return api.OK(nil), nil
}

// Delete removes a category that no product uses any more.
func Delete(req *dispatch.Request) (*api.Response, error) {
	id, ok := req.Args.String("categoryID")
	if !ok {
		return api.MissingArguments("categoryID"), nil
	}
	if reserved[id] {
		return api.CannotDelete(id), nil
	}

	ctx := req.Context()
	category, err := db.Related[tables.ProductCategory](ctx, req.Conn, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return api.NoSuchProductCategory(id), nil
	}
	used, err := req.Conn.Count(ctx, tables.Products, req.Conn.Condition().Column("category").Equals(id, schema.VarChar))
	if err != nil {
		return nil, err
	}
	if used > 0 {
		return api.CannotDelete("category is used by products"), nil
	}
	name, err := category.LoadName(ctx, req.Conn)
	if err != nil {
		return nil, err
	}

	err = req.Conn.Tx(ctx, func(tx *db.Executor) error {
		if _, err := tx.Delete(ctx, category); err != nil {
			return err
		}
		if name != nil {
			_, err := tx.Delete(ctx, name)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return api.OK(nil), nil
}
