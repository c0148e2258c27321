package tables

import (
	"context"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/schema"
)

var (
	productID           = schema.Col("id", 50, schema.VarChar)
	productManufacturer = schema.Col("manufacturer", 120, schema.VarChar)
	productCategory     = schema.Col("category", 50, schema.VarChar)
	productName         = schema.Col("name", 80, schema.VarChar)
	productDescription  = schema.Col("description", 80, schema.VarChar)
	productImage        = schema.Col("image", 80, schema.VarChar)

	// Products is the catalogue. Name and description point at language rows,
	// image at an image row.
	Products = schema.MustTable("products",
		[]schema.Column{productID, productManufacturer, productCategory, productName, productDescription, productImage},
		schema.MustIndex("", schema.Primary, false, productID),
		schema.MustIndex("category", schema.Plain, false, productCategory),
		schema.MustIndex("name", schema.Plain, false, productName),
		schema.MustIndex("description", schema.Plain, false, productDescription),
		schema.MustIndex("image", schema.Plain, false, productImage),
	)
)

// DefaultImage is the image id products fall back to.
const DefaultImage = "default"

// Product is a row of the products table.
type Product struct {
	row schema.Row
}

// NewProduct builds an unsaved product. An empty image uses DefaultImage.
func NewProduct(id, manufacturer, category, name, description, image string) (*Product, error) {
	if image == "" {
		image = DefaultImage
	}
	p := &Product{}
	if err := p.Row().SetAll([]any{id, manufacturer, category, name, description, image}); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Product) Table() *schema.Table { return Products }
func (p *Product) Row() *schema.Row     { return p.row.Bind(Products) }

func (p *Product) str(i int) string {
	s, _ := p.Row().Get(i).(string)
	return s
}

func (p *Product) ID() string            { return p.str(0) }
func (p *Product) Manufacturer() string  { return p.str(1) }
func (p *Product) CategoryID() string    { return p.str(2) }
func (p *Product) NameID() string        { return p.str(3) }
func (p *Product) DescriptionID() string { return p.str(4) }
func (p *Product) ImageID() string       { return p.str(5) }

func (p *Product) SetID(id string) error            { return p.Row().Set(0, id) }
func (p *Product) SetManufacturer(m string) error   { return p.Row().Set(1, m) }
func (p *Product) SetCategoryID(id string) error    { return p.Row().Set(2, id) }
func (p *Product) SetNameID(id string) error        { return p.Row().Set(3, id) }
func (p *Product) SetDescriptionID(id string) error { return p.Row().Set(4, id) }
func (p *Product) SetImageID(id string) error       { return p.Row().Set(5, id) }

func (p *Product) LoadCategory(ctx context.Context, src db.Source) (*ProductCategory, error) {
	return db.Related[ProductCategory](ctx, src, p.CategoryID())
}

func (p *Product) LoadName(ctx context.Context, src db.Source) (*LanguageItem, error) {
	return db.Related[LanguageItem](ctx, src, p.NameID())
}

func (p *Product) LoadDescription(ctx context.Context, src db.Source) (*LanguageItem, error) {
	return db.Related[LanguageItem](ctx, src, p.DescriptionID())
}

func (p *Product) LoadImage(ctx context.Context, src db.Source) (*Image, error) {
	return db.Related[Image](ctx, src, p.ImageID())
}

var (
	categoryID   = schema.Col("id", 50, schema.VarChar)
	categoryName = schema.Col("name", 80, schema.VarChar)

	// ProductCategories groups products.
	ProductCategories = schema.MustTable("product_categories",
		[]schema.Column{categoryID, categoryName},
		schema.MustIndex("", schema.Primary, false, categoryID),
		schema.MustIndex("name", schema.Plain, false, categoryName),
	)
)

// ProductCategory is a row of the product_categories table.
type ProductCategory struct {
	row schema.Row
}

func NewProductCategory(id, name string) (*ProductCategory, error) {
	c := &ProductCategory{}
	if err := c.Row().SetAll([]any{id, name}); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ProductCategory) Table() *schema.Table { return ProductCategories }
func (c *ProductCategory) Row() *schema.Row     { return c.row.Bind(ProductCategories) }

func (c *ProductCategory) ID() string {
	s, _ := c.Row().Get(0).(string)
	return s
}

func (c *ProductCategory) NameID() string {
	s, _ := c.Row().Get(1).(string)
	return s
}

func (c *ProductCategory) SetID(id string) error     { return c.Row().Set(0, id) }
func (c *ProductCategory) SetNameID(id string) error { return c.Row().Set(1, id) }

func (c *ProductCategory) LoadName(ctx context.Context, src db.Source) (*LanguageItem, error) {
	return db.Related[LanguageItem](ctx, src, c.NameID())
}

var (
	itemID      = schema.Col("id", 11, schema.Int)
	itemProduct = schema.Col("product", 50, schema.VarChar)

	// ProductItems are the physical, lendable copies of a product.
	ProductItems = schema.MustTable("product_items",
		[]schema.Column{itemID, itemProduct},
		schema.MustIndex("", schema.Primary, true, itemID),
		schema.MustIndex("product", schema.Plain, false, itemProduct),
	)
)

// ProductItem is a row of the product_items table.
type ProductItem struct {
	row schema.Row
}

// NewProductItem builds an unsaved item; its id is assigned on insert.
func NewProductItem(product string) (*ProductItem, error) {
	it := &ProductItem{}
	if err := it.Row().Set(1, product); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *ProductItem) Table() *schema.Table { return ProductItems }
func (it *ProductItem) Row() *schema.Row     { return it.row.Bind(ProductItems) }

func (it *ProductItem) ID() int32 {
	n, _ := it.Row().Get(0).(int32)
	return n
}

func (it *ProductItem) ProductID() string {
	s, _ := it.Row().Get(1).(string)
	return s
}

func (it *ProductItem) SetProductID(id string) error { return it.Row().Set(1, id) }

func (it *ProductItem) LoadProduct(ctx context.Context, src db.Source) (*Product, error) {
	return db.Related[Product](ctx, src, it.ProductID())
}
