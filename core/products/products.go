// Package products manages the catalogue: products with their translated
// names and descriptions and their images.
package products

import (
	"encoding/base64"
	"errors"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/api/dispatch"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/core/query"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/schema"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/tables"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/types/api"
)

func Register(r *dispatch.Registry) {
	admin := dispatch.Requirements{MinPermission: tables.PermissionAdmin}
	user := dispatch.Requirements{MinPermission: tables.PermissionUser}
	r.Register("addProduct", Add, admin)
	r.Register("getProducts", Get, user)
	r.Register("getProductList", List, user)
	r.Register("updateProduct", Update, admin)
	r.Register("deleteProduct", Delete, admin)
}

// Ids of the rows that belong to a product.
func NameID(productID string) string        { return productID + "_name" }
func DescriptionID(productID string) string { return productID + "_description" }
func ImageID(productID string) string       { return productID + "_image" }

// searchable are the columns getProductList accepts criteria for.
var searchable = map[string]bool{"id": true, "name": true, "manufacturer": true, "category": true}

// image reads the optional {"data": base64, "extension": ".png"} argument.
func image(args api.Args, requireBoth bool) (data []byte, ext string, resp *api.Response) {
	obj, ok := args.Object("image")
	if !ok {
		return nil, "", nil
	}
	encoded, hasData := obj.String("data")
	ext, hasExt := obj.String("extension")
	if requireBoth && (!hasData || !hasExt) {
		return nil, "", api.MissingArguments("image: data", "image: extension")
	}
	if hasExt {
		probe := &tables.Image{}
		if err := probe.SetExtension(ext); err != nil {
			return nil, "", api.InvalidArguments("extension")
		}
		ext = probe.Extension()
	}
	if hasData {
		var err error
		if data, err = base64.StdEncoding.DecodeString(encoded); err != nil {
			return nil, "", api.InvalidArguments("image: data")
		}
	}
	return data, ext, nil
}

func lengthError(err error, args ...string) (*api.Response, error) {
	if errors.Is(err, schema.ErrLength) {
		return api.InvalidArguments(args...), nil
	}
	return nil, err
}

// Add creates a product together with its name, description and image rows.
func Add(req *dispatch.Request) (*api.Response, error) {
	if missing := req.Args.Missing("productID", "categoryID", "manufacturer", "name"); len(missing) > 0 {
		return api.MissingArguments(missing...), nil
	}
	id, ok1 := req.Args.String("productID")
	categoryID, ok2 := req.Args.String("categoryID")
	manufacturer, ok3 := req.Args.String("manufacturer")
	if !ok1 || !ok2 || !ok3 || id == "" || id == tables.DefaultImage {
		return api.InvalidArguments("productID", "categoryID", "manufacturer"), nil
	}
	names, resp := query.Translations(req.Args, "name", true)
	if resp != nil {
		return resp, nil
	}
	descriptions, resp := query.Translations(req.Args, "description", false)
	if resp != nil {
		return resp, nil
	}
	imageData, ext, resp := image(req.Args, true)
	if resp != nil {
		return resp, nil
	}

	ctx := req.Context()
	existing, err := db.Related[tables.Product](ctx, req.Conn, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return api.AlreadyExists(id), nil
	}
	category, err := db.Related[tables.ProductCategory](ctx, req.Conn, categoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return api.NoSuchProductCategory(categoryID), nil
	}

	name, err := tables.NewLanguageItem(NameID(id), names)
	if err != nil {
		return lengthError(err, "productID", "name")
	}
	description, err := tables.NewLanguageItem(DescriptionID(id), descriptions)
	if err != nil {
		return lengthError(err, "productID", "description")
	}
	var img *tables.Image
	imageID := tables.DefaultImage
	if imageData != nil {
		if img, err = tables.NewImage(ImageID(id), imageData, ext); err != nil {
			return lengthError(err, "image")
		}
		imageID = img.ID()
	}
	product, err := tables.NewProduct(id, manufacturer, categoryID, name.ID(), description.ID(), imageID)
	if err != nil {
		return lengthError(err, "productID", "manufacturer")
	}

	err = req.Conn.Tx(ctx, func(tx *db.Executor) error {
		for _, ent := range []schema.Entity{name, description} {
			if _, err := tx.Insert(ctx, ent); err != nil {
				return err
			}
		}
		if img != nil {
			if _, err := tx.Insert(ctx, img); err != nil {
				return err
			}
		}
		_, err := tx.Insert(ctx, product)
		return err
	})
	if err != nil {
		return nil, err
	}
	req.Log.Info("Added product", "productID", id)
	return api.OK(nil), nil
}

// Get lists products. See query.ParseListing for the arguments.
func Get(req *dispatch.Request) (*api.Response, error) {
	listing, resp := query.ParseListing(req.Args, tables.Products, "name")
	if resp != nil {
		return resp, nil
	}
	rows, err := listing.Run(req.Context(), req.Conn, nil)
	if err != nil {
		return nil, err
	}
	return api.OK(rows), nil
}

// List returns the ids of the products matching the criteria object, for
// example {"manufacturer": "LIKE Son% OR Philips"}.
func List(req *dispatch.Request) (*api.Response, error) {
	criteria, ok := req.Args.StringMap("criteria")
	if !ok {
		return api.MissingArguments("criteria"), nil
	}
	for key, value := range criteria {
		if !searchable[key] {
			return api.InvalidArguments("criteria: " + key), nil
		}
		if _, err := query.ParseExpression(value); err != nil {
			return api.InvalidArguments("criteria: " + key), nil
		}
	}

	cond := req.Conn.Condition()
	if err := query.ApplyCriteria(cond, tables.Products, criteria); err != nil {
		return nil, err
	}
	rows, err := req.Conn.SelectRows(req.Context(), tables.Products, []string{"id"}, cond, nil)
	if err != nil {
		return nil, err
	}
	found := make([]any, len(rows))
	for i, row := range rows {
		found[i] = row[0]
	}
	return api.OK(map[string]any{"foundProducts": found}), nil
}

// Update edits a product. Every argument except productID is optional;
// newProductID renames the product and every row derived from its id.
func Update(req *dispatch.Request) (*api.Response, error) {
	id, ok := req.Args.String("productID")
	if !ok {
		return api.MissingArguments("productID"), nil
	}
	newID, rename := req.Args.String("newProductID")
	if rename && (newID == "" || newID == tables.DefaultImage) {
		return api.InvalidArguments("newProductID"), nil
	}
	categoryID, setCategory := req.Args.String("categoryID")
	manufacturer, setManufacturer := req.Args.String("manufacturer")
	names, resp := query.Translations(req.Args, "name", false)
	if resp != nil {
		return resp, nil
	}
	descriptions, resp := query.Translations(req.Args, "description", false)
	if resp != nil {
		return resp, nil
	}
	imageData, ext, resp := image(req.Args, false)
	if resp != nil {
		return resp, nil
	}
	_, setImage := req.Args.Object("image")

	ctx := req.Context()
	product, err := db.Related[tables.Product](ctx, req.Conn, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return api.NoSuchProduct(id), nil
	}
	rename = rename && newID != id
	if rename {
		taken, err := db.Related[tables.Product](ctx, req.Conn, newID)
		if err != nil {
			return nil, err
		}
		if taken != nil {
			return api.AlreadyExists(newID), nil
		}
	}
	if setCategory {
		category, err := db.Related[tables.ProductCategory](ctx, req.Conn, categoryID)
		if err != nil {
			return nil, err
		}
		if category == nil {
			return api.NoSuchProductCategory(categoryID), nil
		}
		if err := product.SetCategoryID(categoryID); err != nil {
			return nil, err
		}
	}
	if setManufacturer {
		if err := product.SetManufacturer(manufacturer); err != nil {
			return lengthError(err, "manufacturer")
		}
	}

	rows, err := loadRows(ctx, req.Conn, product)
	if err != nil {
		return nil, err
	}
	if err := rows.name.SetTranslations(names); err != nil {
		return lengthError(err, "name")
	}
	if err := rows.description.SetTranslations(descriptions); err != nil {
		return lengthError(err, "description")
	}
	if setImage {
		img := rows.image
		if img == nil || img.ID() == tables.DefaultImage {
			// Products never write to the shared default image.
			var base []byte
			baseExt := ".png"
			if img != nil {
				base, baseExt = img.Data(), img.Extension()
			}
			if img, err = tables.NewImage(ImageID(id), base, baseExt); err != nil {
				return lengthError(err, "image")
			}
		}
		if imageData != nil {
			if err := img.SetData(imageData); err != nil {
				return lengthError(err, "image")
			}
		}
		if ext != "" {
			if err := img.SetExtension(ext); err != nil {
				return api.InvalidArguments("extension"), nil
			}
		}
		rows.image = img
		if err := product.SetImageID(img.ID()); err != nil {
			return nil, err
		}
	}

	var items []*tables.ProductItem
	if rename {
		if items, err = db.Select[tables.ProductItem](ctx, req.Conn, req.Conn.Condition().Column("product").Equals(id, schema.VarChar), nil); err != nil {
			return nil, err
		}
		if resp, err := rows.rename(product, newID, items); resp != nil || err != nil {
			return resp, err
		}
	}

	err = req.Conn.Tx(ctx, func(tx *db.Executor) error {
		if err := rows.save(ctx, tx); err != nil {
			return err
		}
		for _, it := range items {
			if _, err := tx.Update(ctx, it); err != nil {
				return err
			}
		}
		_, err := tx.Update(ctx, product)
		return err
	})
	if err != nil {
		return nil, err
	}
	return api.OK(nil), nil
}

// Delete removes a product with its language rows, its own image and its
// items. Products whose items were ever lent out cannot be deleted.
func Delete(req *dispatch.Request) (*api.Response, error) {
	id, ok := req.Args.String("productID")
	if !ok {
		return api.MissingArguments("productID"), nil
	}

	ctx := req.Context()
	product, err := db.Related[tables.Product](ctx, req.Conn, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return api.NoSuchProduct(id), nil
	}
	items, err := db.Select[tables.ProductItem](ctx, req.Conn, req.Conn.Condition().Column("product").Equals(id, schema.VarChar), nil)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		ids := make([]any, len(items))
		for i, it := range items {
			ids[i] = it.ID()
		}
		loans, err := req.Conn.Count(ctx, tables.Loans, req.Conn.Condition().AnyOf(tables.Loans.Columns[2], ids...))
		if err != nil {
			return nil, err
		}
		if loans > 0 {
			return api.CannotDelete("product items have loans"), nil
		}
	}
	rows, err := loadRows(ctx, req.Conn, product)
	if err != nil {
		return nil, err
	}

	err = req.Conn.Tx(ctx, func(tx *db.Executor) error {
		for _, it := range items {
			if _, err := tx.Delete(ctx, it); err != nil {
				return err
			}
		}
		if _, err := tx.Delete(ctx, product); err != nil {
			return err
		}
		return rows.delete(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	req.Log.Info("Deleted product", "productID", id, "items", len(items))
	return api.OK(nil), nil
}
