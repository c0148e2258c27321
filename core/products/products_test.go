package products

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/core/coretest"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/tables"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/types/api"
)

var picture = base64.StdEncoding.EncodeToString([]byte("GIF89a"))

func related[E any, P db.EntityPtr[E]](t *testing.T, env *coretest.Env, key any) P {
	t.Helper()
	got, err := db.Related[E, P](context.Background(), env.Conn, key)
	require.NoError(t, err)
	return got
}

func addDrill(t *testing.T, env *coretest.Env, admin *tables.User, withImage bool) {
	t.Helper()
	body := `{"productID": "drill", "categoryID": "default", "manufacturer": "Bosch",
		"name": {"en": "Drill", "nl": "Boor"}, "description": {"en": "Makes holes"}`
	if withImage {
		body += fmt.Sprintf(`, "image": {"data": %q, "extension": "gif"}`, picture)
	}
	resp := env.Call(t, Add, admin, body+"}")
	require.True(t, resp.Success(), resp.Message)
}

func TestAddProduct(t *testing.T) {
	env := coretest.New(t)
	admin := env.User(t, "admin", tables.PermissionAdmin)
	addDrill(t, env, admin, true)

	p := related[tables.Product](t, env, "drill")
	require.NotNil(t, p)
	assert.Equal(t, "drill_image", p.ImageID())
	assert.Equal(t, "Boor", related[tables.LanguageItem](t, env, "drill_name").Translation("nl"))
	assert.Equal(t, "Makes holes", related[tables.LanguageItem](t, env, "drill_description").Translation("en"))
	img := related[tables.Image](t, env, "drill_image")
	require.NotNil(t, img)
	assert.Equal(t, ".gif", img.Extension())
	assert.Equal(t, []byte("GIF89a"), img.Data())

	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{"duplicate", `{"productID": "drill", "categoryID": "default", "manufacturer": "x", "name": {"en": "x"}}`, api.ReasonAlreadyExists},
		{"missing", `{"productID": "saw", "manufacturer": "x", "name": {"en": "x"}}`, api.ReasonMissingArguments},
		{"no english", `{"productID": "saw", "categoryID": "default", "manufacturer": "x", "name": {"nl": "zaag"}}`, api.ReasonMissingArguments},
		{"reserved id", `{"productID": "default", "categoryID": "default", "manufacturer": "x", "name": {"en": "x"}}`, api.ReasonInvalidArguments},
		{"unknown category", `{"productID": "saw", "categoryID": "saws", "manufacturer": "x", "name": {"en": "x"}}`, api.ReasonNoSuchProductCategory},
		{"bad extension", `{"productID": "saw", "categoryID": "default", "manufacturer": "x", "name": {"en": "x"}, "image": {"data": "", "extension": "exe"}}`, api.ReasonInvalidArguments},
		{"half an image", `{"productID": "saw", "categoryID": "default", "manufacturer": "x", "name": {"en": "x"}, "image": {"extension": "png"}}`, api.ReasonMissingArguments},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.reason, env.Call(t, Add, admin, tt.body).ReasonString())
		})
	}
}

func TestGetProducts(t *testing.T) {
	env := coretest.New(t)
	admin := env.User(t, "admin", tables.PermissionAdmin)
	addDrill(t, env, admin, false)

	rows := coretest.Data(t, env.Call(t, Get, admin, `{"columns": ["id", "image"], "language": ["nl"]}`)).([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]any{
		"id":    "drill",
		"image": "default",
		"name":  map[string]any{"nl": "Boor"},
	}, rows[0])

	assert.Equal(t, api.ReasonInvalidArguments, env.Call(t, Get, admin, `{"columns": ["price"]}`).ReasonString())
}

func TestProductList(t *testing.T) {
	env := coretest.New(t)
	admin := env.User(t, "admin", tables.PermissionAdmin)
	addDrill(t, env, admin, false)
	env.Call(t, Add, admin, `{"productID": "saw", "categoryID": "default", "manufacturer": "Makita", "name": {"en": "Saw"}}`)
	env.Call(t, Add, admin, `{"productID": "hammer", "categoryID": "default", "manufacturer": "Stanley", "name": {"en": "Hammer"}}`)

	got := coretest.Data(t, env.Call(t, List, admin, `{"criteria": {"manufacturer": "LIKE Bo% OR Makita"}}`))
	assert.ElementsMatch(t, []any{"drill", "saw"}, got.(map[string]any)["foundProducts"])

	got = coretest.Data(t, env.Call(t, List, admin, `{"criteria": {"id": "hammer", "manufacturer": "Makita"}}`))
	assert.Empty(t, got.(map[string]any)["foundProducts"])

	assert.Equal(t, api.ReasonInvalidArguments, env.Call(t, List, admin, `{"criteria": {"image": "default"}}`).ReasonString())
	assert.Equal(t, api.ReasonInvalidArguments, env.Call(t, List, admin, `{"criteria": {"id": "OR OR"}}`).ReasonString())
	assert.Equal(t, api.ReasonMissingArguments, env.Call(t, List, admin, `{}`).ReasonString())
}

func TestUpdateProduct(t *testing.T) {
	env := coretest.New(t)
	admin := env.User(t, "admin", tables.PermissionAdmin)
	addDrill(t, env, admin, false)
	item, err := tables.NewProductItem("drill")
	require.NoError(t, err)
	env.Insert(t, item)

	body := fmt.Sprintf(`{"productID": "drill", "newProductID": "hammerdrill", "manufacturer": "Makita",
		"name": {"en": "Hammer drill"}, "image": {"data": %q, "extension": ".gif"}}`, picture)
	resp := env.Call(t, Update, admin, body)
	require.True(t, resp.Success(), resp.Message)

	assert.Nil(t, related[tables.Product](t, env, "drill"))
	p := related[tables.Product](t, env, "hammerdrill")
	require.NotNil(t, p)
	assert.Equal(t, "Makita", p.Manufacturer())
	assert.Equal(t, "hammerdrill_name", p.NameID())
	assert.Equal(t, "hammerdrill_image", p.ImageID())

	name := related[tables.LanguageItem](t, env, "hammerdrill_name")
	require.NotNil(t, name)
	assert.Equal(t, "Hammer drill", name.Translation("en"))
	assert.Nil(t, related[tables.LanguageItem](t, env, "drill_name"))
	assert.Equal(t, "hammerdrill", related[tables.ProductItem](t, env, item.ID()).ProductID())

	// The shared default image is untouched.
	def := related[tables.Image](t, env, tables.DefaultImage)
	assert.Equal(t, ".png", def.Extension())

	assert.Equal(t, api.ReasonNoSuchProduct, env.Call(t, Update, admin, `{"productID": "drill"}`).ReasonString())
	assert.Equal(t, api.ReasonNoSuchProductCategory,
		env.Call(t, Update, admin, `{"productID": "hammerdrill", "categoryID": "nope"}`).ReasonString())
}

func TestDeleteProduct(t *testing.T) {
	env := coretest.New(t)
	admin := env.User(t, "admin", tables.PermissionAdmin)
	addDrill(t, env, admin, true)
	item, err := tables.NewProductItem("drill")
	require.NoError(t, err)
	env.Insert(t, item)

	loan, err := tables.NewLoanItem("admin", item.ID(), time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	env.Insert(t, loan)
	assert.Equal(t, api.ReasonCannotDelete, env.Call(t, Delete, admin, `{"productID": "drill"}`).ReasonString())

	_, err = env.Conn.Delete(context.Background(), loan)
	require.NoError(t, err)
	resp := env.Call(t, Delete, admin, `{"productID": "drill"}`)
	require.True(t, resp.Success(), resp.Message)

	assert.Nil(t, related[tables.Product](t, env, "drill"))
	assert.Nil(t, related[tables.ProductItem](t, env, item.ID()))
	assert.Nil(t, related[tables.LanguageItem](t, env, "drill_name"))
	assert.Nil(t, related[tables.Image](t, env, "drill_image"))
	assert.NotNil(t, related[tables.Image](t, env, tables.DefaultImage))

	assert.Equal(t, api.ReasonNoSuchProduct, env.Call(t, Delete, admin, `{"productID": "drill"}`).ReasonString())
}
