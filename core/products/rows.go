package products

import (
	"context"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/schema"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/tables"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/types/api"
)

// productRows are the rows a product points at.
type productRows struct {
	name        *tables.LanguageItem
	description *tables.LanguageItem
	image       *tables.Image
}

// loadRows loads the rows of p. Missing language rows are created empty so
// they can be saved later.
func loadRows(ctx context.Context, src db.Source, p *tables.Product) (*productRows, error) {
	var rows productRows
	var err error
	if rows.name, err = p.LoadName(ctx, src); err != nil {
		return nil, err
	}
	if rows.description, err = p.LoadDescription(ctx, src); err != nil {
		return nil, err
	}
	if rows.image, err = p.LoadImage(ctx, src); err != nil {
		return nil, err
	}
	if rows.name == nil {
		if rows.name, err = tables.NewLanguageItem(NameID(p.ID()), nil); err != nil {
			return nil, err
		}
	}
	if rows.description == nil {
		if rows.description, err = tables.NewLanguageItem(DescriptionID(p.ID()), nil); err != nil {
			return nil, err
		}
	}
	return &rows, nil
}

// ownImage reports whether the image belongs to this product alone.
func (r *productRows) ownImage() bool {
	return r.image != nil && r.image.ID() != tables.DefaultImage
}

// rename moves p, its rows and items to newID in memory.
func (r *productRows) rename(p *tables.Product, newID string, items []*tables.ProductItem) (*api.Response, error) {
	if err := p.SetID(newID); err != nil {
		return lengthError(err, "newProductID")
	}
	if err := r.name.SetID(NameID(newID)); err != nil {
		return lengthError(err, "newProductID")
	}
	if err := r.description.SetID(DescriptionID(newID)); err != nil {
		return lengthError(err, "newProductID")
	}
	if err := p.SetNameID(r.name.ID()); err != nil {
		return lengthError(err, "newProductID")
	}
	if err := p.SetDescriptionID(r.description.ID()); err != nil {
		return lengthError(err, "newProductID")
	}
	if r.ownImage() {
		if err := r.image.SetID(ImageID(newID)); err != nil {
			return lengthError(err, "newProductID")
		}
		if err := p.SetImageID(r.image.ID()); err != nil {
			return lengthError(err, "newProductID")
		}
	}
	for _, it := range items {
		if err := it.SetProductID(newID); err != nil {
			return lengthError(err, "newProductID")
		}
	}
	return nil, nil
}

func (r *productRows) save(ctx context.Context, tx *db.Executor) error {
	for _, li := range []*tables.LanguageItem{r.name, r.description} {
		if err := upsert(ctx, tx, li.Row().HasSnapshot(), li); err != nil {
			return err
		}
	}
	if r.ownImage() {
		return upsert(ctx, tx, r.image.Row().HasSnapshot(), r.image)
	}
	return nil
}

func (r *productRows) delete(ctx context.Context, tx *db.Executor) error {
	for _, li := range []*tables.LanguageItem{r.name, r.description} {
		if li.Row().HasSnapshot() {
			if _, err := tx.Delete(ctx, li); err != nil {
				return err
			}
		}
	}
	if r.ownImage() && r.image.Row().HasSnapshot() {
		_, err := tx.Delete(ctx, r.image)
		return err
	}
	return nil
}

func upsert(ctx context.Context, tx *db.Executor, exists bool, ent schema.Entity) error {
	var err error
	if exists {
		_, err = tx.Update(ctx, ent)
	} else {
		_, err = tx.Insert(ctx, ent)
	}
	return err
}
