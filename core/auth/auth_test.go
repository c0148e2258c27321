package auth

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/core/coretest"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/tables"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/types/api"
)

var otherPassword = strings.Repeat("f", 128)

func load(t *testing.T, env *coretest.Env, name string) *tables.User {
	t.Helper()
	u, err := db.Related[tables.User](context.Background(), env.Conn, name)
	require.NoError(t, err)
	return u
}

func TestValidPassword(t *testing.T) {
	assert.True(t, ValidPassword(coretest.Password))
	assert.True(t, ValidPassword(strings.ToUpper(coretest.Password)))
	assert.False(t, ValidPassword("hunter2"))
	assert.False(t, ValidPassword(coretest.Password+"0"))
	assert.False(t, ValidPassword(strings.Repeat("g", 128)))
}

func TestRegisterAndLogin(t *testing.T) {
	env := coretest.New(t)

	body := fmt.Sprintf(`{"username": "alice", "password": %q}`, coretest.Password)
	resp := env.Call(t, RegisterUser, nil, body)
	require.True(t, resp.Success(), resp.Message)
	assert.Equal(t, 1.0, coretest.Data(t, resp).(map[string]any)["permissionLevel"])
	assert.Equal(t, tables.PermissionUser, load(t, env, "alice").Permission())

	assert.Equal(t, api.ReasonAlreadyExists, env.Call(t, RegisterUser, nil, body).ReasonString())

	resp = env.Call(t, Login, nil, body)
	require.True(t, resp.Success(), resp.Message)
	session := coretest.Data(t, resp).(map[string]any)
	assert.EqualValues(t, load(t, env, "alice").Token(), session["token"])

	wrong := fmt.Sprintf(`{"username": "alice", "password": %q}`, otherPassword)
	assert.Equal(t, api.ReasonInvalidLogin, env.Call(t, Login, nil, wrong).ReasonString())
	nobody := fmt.Sprintf(`{"username": "nobody", "password": %q}`, coretest.Password)
	assert.Equal(t, api.ReasonInvalidLogin, env.Call(t, Login, nil, nobody).ReasonString())
	assert.Equal(t, api.ReasonMissingArguments, env.Call(t, Login, nil, `{"username": "alice"}`).ReasonString())
}

func TestRegisterRejects(t *testing.T) {
	env := coretest.New(t)
	tests := []struct {
		name     string
		username string
		password string
		reason   string
	}{
		{"short name", "al", coretest.Password, api.ReasonInvalidUsername},
		{"bad characters", "al ice", coretest.Password, api.ReasonInvalidUsername},
		{"long name", strings.Repeat("a", 51), coretest.Password, api.ReasonInvalidUsername},
		{"plain password", "alice", "secret", api.ReasonInvalidPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := fmt.Sprintf(`{"username": %q, "password": %q}`, tt.username, tt.password)
			assert.Equal(t, tt.reason, env.Call(t, RegisterUser, nil, body).ReasonString())
		})
	}
}

func TestLogout(t *testing.T) {
	env := coretest.New(t)
	alice := env.User(t, "alice", tables.PermissionUser)

	require.True(t, env.Call(t, Logout, alice, `{}`).Success())
	assert.Zero(t, load(t, env, "alice").Token())

	env.User(t, "bob", tables.PermissionUser)
	ok, err := LogoutUser(context.Background(), env.Conn, "bob")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, load(t, env, "bob").Token())

	ok, err = LogoutUser(context.Background(), env.Conn, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetUsers(t *testing.T) {
	env := coretest.New(t)
	admin := env.User(t, "admin", tables.PermissionAdmin)
	env.User(t, "alice", tables.PermissionCollaborator)

	got := coretest.Data(t, env.Call(t, GetUsers, admin, `{}`))
	assert.ElementsMatch(t, []any{
		map[string]any{"username": "admin", "permission": 3.0},
		map[string]any{"username": "alice", "permission": 2.0},
	}, got)
}

func TestDeleteUser(t *testing.T) {
	env := coretest.New(t)
	admin := env.User(t, "admin", tables.PermissionAdmin)
	env.User(t, "alice", tables.PermissionUser)
	env.User(t, "bob", tables.PermissionUser)

	loan, err := tables.NewLoanItem("bob", 1, time.Now().Add(24*time.Hour), time.Now().Add(48*time.Hour))
	require.NoError(t, err)
	env.Insert(t, loan)

	call := func(body string) *api.Response {
		return env.Call(t, DeleteUser, admin, body)
	}
	assert.Equal(t, api.ReasonCannotDelete, call(`{"username": "admin"}`).ReasonString())
	assert.Equal(t, api.ReasonCannotDelete, call(`{"username": "bob"}`).ReasonString())
	assert.Equal(t, api.ReasonNoSuchUser, call(`{"username": "carol"}`).ReasonString())
	require.True(t, call(`{"username": "alice"}`).Success())
	assert.Nil(t, load(t, env, "alice"))
}

func TestUpdateUser(t *testing.T) {
	env := coretest.New(t)
	admin := env.User(t, "admin", tables.PermissionAdmin)
	alice := env.User(t, "alice", tables.PermissionUser)
	env.User(t, "bob", tables.PermissionUser)

	t.Run("own password", func(t *testing.T) {
		resp := env.Call(t, UpdateUser, alice, fmt.Sprintf(`{"username": "alice", "password": %q}`, otherPassword))
		require.True(t, resp.Success(), resp.Message)
		assert.Equal(t, otherPassword, load(t, env, "alice").Password())
	})
	t.Run("own permission", func(t *testing.T) {
		resp := env.Call(t, UpdateUser, alice, `{"username": "alice", "permission": 3}`)
		assert.Equal(t, api.ReasonAccessDenied, resp.ReasonString())
	})
	t.Run("someone else", func(t *testing.T) {
		resp := env.Call(t, UpdateUser, alice, `{"username": "bob", "permission": 0}`)
		assert.Equal(t, api.ReasonAccessDenied, resp.ReasonString())
	})
	t.Run("admin promotes", func(t *testing.T) {
		resp := env.Call(t, UpdateUser, admin, `{"username": "bob", "permission": 2}`)
		require.True(t, resp.Success(), resp.Message)
		assert.Equal(t, tables.PermissionCollaborator, load(t, env, "bob").Permission())
	})
	t.Run("out of range", func(t *testing.T) {
		resp := env.Call(t, UpdateUser, admin, `{"username": "bob", "permission": 7}`)
		assert.Equal(t, api.ReasonInvalidArguments, resp.ReasonString())
	})
	t.Run("bad password", func(t *testing.T) {
		resp := env.Call(t, UpdateUser, admin, `{"username": "bob", "password": "x"}`)
		assert.Equal(t, api.ReasonInvalidPassword, resp.ReasonString())
	})
	t.Run("unknown", func(t *testing.T) {
		resp := env.Call(t, UpdateUser, admin, `{"username": "carol", "permission": 1}`)
		assert.Equal(t, api.ReasonNoSuchUser, resp.ReasonString())
	})
}
