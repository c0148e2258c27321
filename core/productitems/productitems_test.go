package productitems

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/core/coretest"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/tables"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/types/api"
)

func setup(t *testing.T) (*coretest.Env, *tables.User) {
	t.Helper()
	env := coretest.New(t)
	admin := env.User(t, "admin", tables.PermissionAdmin)
	for _, id := range []string{"drill", "saw"} {
		p, err := tables.NewProduct(id, "Bosch", "default", id+"_name", id+"_description", "")
		require.NoError(t, err)
		env.Insert(t, p)
	}
	return env, admin
}

func TestAddProductItems(t *testing.T) {
	env, admin := setup(t)

	resp := env.Call(t, Add, admin, `{"productID": "drill", "count": 3}`)
	require.True(t, resp.Success(), resp.Message)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, coretest.Data(t, resp))

	resp = env.Call(t, Add, admin, `{"productID": "saw"}`)
	assert.Equal(t, []any{4.0}, coretest.Data(t, resp))

	assert.Equal(t, api.ReasonInvalidArguments, env.Call(t, Add, admin, `{"productID": "saw", "count": 31}`).ReasonString())
	assert.Equal(t, api.ReasonInvalidArguments, env.Call(t, Add, admin, `{"productID": "saw", "count": 0}`).ReasonString())
	assert.Equal(t, api.ReasonNoSuchProduct, env.Call(t, Add, admin, `{"productID": "hammer"}`).ReasonString())
	assert.Equal(t, api.ReasonMissingArguments, env.Call(t, Add, admin, `{}`).ReasonString())
}

func TestGetProductItems(t *testing.T) {
	env, admin := setup(t)
	env.Call(t, Add, admin, `{"productID": "drill", "count": 2}`)
	env.Call(t, Add, admin, `{"productID": "saw", "count": 2}`)

	got := coretest.Data(t, env.Call(t, Get, admin, `{"products": ["drill"], "itemIds": [4]}`))
	assert.Equal(t, map[string]any{
		"drill": []any{1.0, 2.0},
		"saw":   []any{4.0},
	}, got)

	got = coretest.Data(t, env.Call(t, Get, admin, `{"products": []}`))
	assert.Equal(t, map[string]any{}, got)

	assert.Equal(t, api.ReasonMissingArguments, env.Call(t, Get, admin, `{}`).ReasonString())
	assert.Equal(t, api.ReasonInvalidArguments, env.Call(t, Get, admin, `{"itemIds": ["one"]}`).ReasonString())
}

func TestUpdateProductItem(t *testing.T) {
	env, admin := setup(t)
	env.Call(t, Add, admin, `{"productID": "drill"}`)

	resp := env.Call(t, Update, admin, `{"productItemID": "1", "productID": "saw"}`)
	require.True(t, resp.Success(), resp.Message)
	item, err := db.Related[tables.ProductItem](context.Background(), env.Conn, int32(1))
	require.NoError(t, err)
	assert.Equal(t, "saw", item.ProductID())

	assert.Equal(t, api.ReasonNoSuchProduct, env.Call(t, Update, admin, `{"productItemID": 1, "productID": "hammer"}`).ReasonString())
	assert.Equal(t, api.ReasonNoSuchProductItem, env.Call(t, Update, admin, `{"productItemID": 9, "productID": "saw"}`).ReasonString())
	assert.Equal(t, api.ReasonMissingArguments, env.Call(t, Update, admin, `{"productItemID": 1}`).ReasonString())
}

func TestDeleteProductItem(t *testing.T) {
	env, admin := setup(t)
	env.Call(t, Add, admin, `{"productID": "drill", "count": 2}`)
	loan, err := tables.NewLoanItem("admin", 1, time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	env.Insert(t, loan)

	assert.Equal(t, api.ReasonCannotDelete, env.Call(t, Delete, admin, `{"productItemID": 1}`).ReasonString())
	require.True(t, env.Call(t, Delete, admin, `{"productItemID": 2}`).Success())
	assert.Equal(t, api.ReasonNoSuchProductItem, env.Call(t, Delete, admin, `{"productItemID": 2}`).ReasonString())

	items, err := ForProduct(context.Background(), env.Conn, "drill")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int32(1), items[0].ID())
}
