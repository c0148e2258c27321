// Package coretest runs handlers against a throwaway database.
package coretest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/api/dispatch"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/config"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/dbtest"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/schema"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/tables"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/logging"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/types/api"
)

// Password is a valid password digest for test accounts.
const Password = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef" +
	"0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

type Env struct {
	DB     *db.DB
	Conn   *db.Conn
	Config *config.Config
}

// New opens a database with every table and the rows a fresh install has:
// the default category and image.
func New(t testing.TB) *Env {
	t.Helper()
	database := dbtest.Open(t)
	env := &Env{DB: database, Conn: dbtest.Conn(t, database), Config: config.Default()}
	require.NoError(t, env.Config.Validate())

	name, err := tables.NewLanguageItem("default_name", map[string]string{"en": "Default"})
	require.NoError(t, err)
	category, err := tables.NewProductCategory("default", name.ID())
	require.NoError(t, err)
	image, err := tables.NewImage("default", []byte{0x89, 'P', 'N', 'G'}, "png")
	require.NoError(t, err)
	env.Insert(t, name, category, image)
	return env
}

// Insert saves ents in order.
func (e *Env) Insert(t testing.TB, ents ...schema.Entity) {
	t.Helper()
	for _, ent := range ents {
		_, err := e.Conn.Insert(context.Background(), ent)
		require.NoError(t, err)
	}
}

// User creates an account and returns it.
func (e *Env) User(t testing.TB, name string, perm tables.Permission) *tables.User {
	t.Helper()
	u, err := tables.NewUser(name, Password, perm, 1)
	require.NoError(t, err)
	e.Insert(t, u)
	return u
}

// Call runs h as user with the JSON object body as arguments.
func (e *Env) Call(t testing.TB, h dispatch.HandlerFunc, user *tables.User, body string) *api.Response {
	t.Helper()
	args, err := api.ParseArgs([]byte(body))
	require.NoError(t, err)
	req := dispatch.NewRequest(context.Background(), "test", e.Conn, e.Config, user, args, logging.NewTestLogger())
	resp, err := h(req)
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

// Data round-trips the response data through JSON, the way clients see it.
func Data(t testing.TB, resp *api.Response) any {
	t.Helper()
	raw, err := json.Marshal(resp.ResponseData)
	require.NoError(t, err)
	var out any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}
