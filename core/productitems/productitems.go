// Package productitems manages the lendable copies of products.
package productitems

import (
	"context"
	"sort"
	"strconv"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/api/dispatch"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/schema"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/tables"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/types/api"
)

// MaxBatch caps how many items one addProductItem request creates.
const MaxBatch = 30

func Register(r *dispatch.Registry) {
	admin := dispatch.Requirements{MinPermission: tables.PermissionAdmin}
	r.Register("addProductItem", Add, admin)
	r.Register("getProductItems", Get, dispatch.Requirements{MinPermission: tables.PermissionUser})
	r.Register("updateProductItem", Update, admin)
	r.Register("deleteProductItem", Delete, admin)
}

// Add creates count (default 1) items of a product and returns their ids.
func Add(req *dispatch.Request) (*api.Response, error) {
	productID, ok := req.Args.String("productID")
	if !ok {
		return api.MissingArguments("productID"), nil
	}
	count := int64(1)
	if req.Args.Has("count") {
		n, ok := req.Args.Int("count")
		if !ok || n < 1 || n > MaxBatch {
			return api.InvalidArguments("count"), nil
		}
		count = n
	}

	ctx := req.Context()
	product, err := db.Related[tables.Product](ctx, req.Conn, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return api.NoSuchProduct(productID), nil
	}

	ids := make([]int32, 0, count)
	err = req.Conn.Tx(ctx, func(tx *db.Executor) error {
		for i := int64(0); i < count; i++ {
			item, err := tables.NewProductItem(productID)
			if err != nil {
				return err
			}
			if _, err := tx.Insert(ctx, item); err != nil {
				return err
			}
			ids = append(ids, item.ID())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return api.OK(ids), nil
}

// Get returns item ids grouped by product, for the products listed in
// "products" and the items listed in "itemIds".
func Get(req *dispatch.Request) (*api.Response, error) {
	if !req.Args.Has("products") && !req.Args.Has("itemIds") {
		return api.MissingArguments("products", "itemIds"), nil
	}
	var products []string
	if req.Args.Has("products") {
		var ok bool
		if products, ok = req.Args.Strings("products"); !ok {
			return api.InvalidArguments("products"), nil
		}
	}
	var itemIDs []any
	if req.Args.Has("itemIds") {
		ids, ok := req.Args.Ints("itemIds")
		if !ok {
			return api.InvalidArguments("itemIds"), nil
		}
		for _, n := range ids {
			itemIDs = append(itemIDs, n)
		}
	}

	grouped, err := ByProduct(req.Context(), req.Conn, products, itemIDs)
	if err != nil {
		return nil, err
	}
	return api.OK(grouped), nil
}

// ByProduct returns the ids of the items of products, plus the items with
// the given ids, keyed by product id.
func ByProduct(ctx context.Context, src db.Source, products []string, itemIDs []any) (map[string][]int32, error) {
	out := make(map[string][]int32)
	if len(products) == 0 && len(itemIDs) == 0 {
		return out, nil
	}
	e, err := src.Executor()
	if err != nil {
		return nil, err
	}
	cond := e.Condition()
	if len(products) > 0 {
		values := make([]any, len(products))
		for i, p := range products {
			values[i] = p
		}
		cond.AnyOf(tables.ProductItems.Columns[1], values...)
	}
	if len(itemIDs) > 0 {
		cond.Or().AnyOf(tables.ProductItems.Columns[0], itemIDs...)
	}
	items, err := db.Select[tables.ProductItem](ctx, e, cond, nil)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it.ProductID()] = append(out[it.ProductID()], it.ID())
	}
	for _, ids := range out {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return out, nil
}

// ForProduct returns every item of a product.
func ForProduct(ctx context.Context, src db.Source, productID string) ([]*tables.ProductItem, error) {
	e, err := src.Executor()
	if err != nil {
		return nil, err
	}
	return db.Select[tables.ProductItem](ctx, e, e.Condition().Column("product").Equals(productID, schema.VarChar), nil)
}

// itemID accepts the id as a number or a numeric string.
func itemID(args api.Args) (int32, bool) {
	if n, ok := args.Int("productItemID"); ok {
		return int32(n), n > 0 && n <= 1<<31-1
	}
	s, ok := args.String("productItemID")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 32)
	return int32(n), err == nil && n > 0
}

// Update moves an item to another product.
func Update(req *dispatch.Request) (*api.Response, error) {
	id, ok := itemID(req.Args)
	productID, okProduct := req.Args.String("productID")
	if !ok || !okProduct {
		return api.MissingArguments("productItemID", "productID"), nil
	}

	ctx := req.Context()
	item, err := db.Related[tables.ProductItem](ctx, req.Conn, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return api.NoSuchProductItem(strconv.Itoa(int(id))), nil
	}
	product, err := db.Related[tables.Product](ctx, req.Conn, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return api.NoSuchProduct(productID), nil
	}
	if err := item.SetProductID(productID); err != nil {
		return nil, err
	}
	if _, err := req.Conn.Update(ctx, item); err != nil {
		return nil, err
	}
	return api.OK(nil), nil
}

// Delete removes an item that has no loans.
func Delete(req *dispatch.Request) (*api.Response, error) {
	id, ok := itemID(req.Args)
	if !ok {
		return api.MissingArguments("productItemID"), nil
	}

	ctx := req.Context()
	item, err := db.Related[tables.ProductItem](ctx, req.Conn, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return api.NoSuchProductItem(strconv.Itoa(int(id))), nil
	}
	loans, err := req.Conn.Count(ctx, tables.Loans, req.Conn.Condition().Column("product_item").Equals(id, schema.Int))
	if err != nil {
		return nil, err
	}
	if loans > 0 {
		return api.CannotDelete("item has loans"), nil
	}
	if _, err := req.Conn.Delete(ctx, item); err != nil {
		return nil, err
	}
	return api.OK(nil), nil
}
