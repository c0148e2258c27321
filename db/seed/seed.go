// Package seed prepares a fresh database: every table plus the rows the
// handlers expect to exist.
package seed

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/schema"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/tables"
)

// DefaultImage is a transparent 1x1 PNG used by products without an image.
var DefaultImage = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// Options configures InitDB.
type Options struct {
	AdminUsername string
	// AdminPassword is the plain password; it is stored as its SHA-512 digest.
	AdminPassword string
}

// Report counts what InitDB inserted.
type Report struct {
	Inserted int
	Skipped  int
}

// InitDB creates missing tables and inserts the default administrator, the
// default image and the reserved categories with their names. Rows that
// already exist are left alone, so it is safe to run on every start.
func InitDB(ctx context.Context, database *db.DB, opts Options, log logr.Logger) (Report, error) {
	var rep Report
	if opts.AdminUsername == "" {
		opts.AdminUsername = "admin"
	}
	if opts.AdminPassword == "" {
		return rep, fmt.Errorf("admin password is required")
	}

	log.Info("Creating tables", "count", len(tables.All()))
	if err := tables.Init(ctx, database); err != nil {
		return rep, fmt.Errorf("create tables: %w", err)
	}

	rows, err := defaultRows(opts)
	if err != nil {
		return rep, err
	}

	conn := database.Conn("seed")
	if err := conn.Open(ctx); err != nil {
		return rep, err
	}
	defer conn.Close()

	err = conn.Tx(ctx, func(tx *db.Executor) error {
		for _, ent := range rows {
			exists, err := present(ctx, tx, ent)
			if err != nil {
				return err
			}
			if exists {
				rep.Skipped++
				continue
			}
			if _, err := tx.Insert(ctx, ent); err != nil {
				return fmt.Errorf("insert into %s: %w", ent.Table().Name, err)
			}
			rep.Inserted++
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	log.Info("Database initialised", "inserted", rep.Inserted, "skipped", rep.Skipped)
	return rep, nil
}

func defaultRows(opts Options) ([]schema.Entity, error) {
	sum := sha512.Sum512([]byte(opts.AdminPassword))
	admin, err := tables.NewUser(opts.AdminUsername, hex.EncodeToString(sum[:]), tables.PermissionAdmin, 0)
	if err != nil {
		return nil, fmt.Errorf("admin user: %w", err)
	}
	image, err := tables.NewImage("default", DefaultImage, "png")
	if err != nil {
		return nil, err
	}
	out := []schema.Entity{admin, image}
	for id, name := range map[string]string{"default": "Default", "uncategorized": "Uncategorized"} {
		li, err := tables.NewLanguageItem(id+"_name", map[string]string{"en": name})
		if err != nil {
			return nil, err
		}
		category, err := tables.NewProductCategory(id, li.ID())
		if err != nil {
			return nil, err
		}
		out = append(out, li, category)
	}
	return out, nil
}

// present reports whether a row with ent's primary key exists.
func present(ctx context.Context, e *db.Executor, ent schema.Entity) (bool, error) {
	switch v := ent.(type) {
	case *tables.User:
		return exists[tables.User](ctx, e, v.Username())
	case *tables.Image:
		return exists[tables.Image](ctx, e, v.ID())
	case *tables.LanguageItem:
		return exists[tables.LanguageItem](ctx, e, v.ID())
	case *tables.ProductCategory:
		return exists[tables.ProductCategory](ctx, e, v.ID())
	}
	return false, fmt.Errorf("no key lookup for %s", ent.Table().Name)
}

func exists[E any, P db.EntityPtr[E]](ctx context.Context, e *db.Executor, key any) (bool, error) {
	found, err := db.Related[E, P](ctx, e, key)
	return found != nil, err
}
