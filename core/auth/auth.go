// Package auth handles accounts: logging in and out, registration and user
// administration.
package auth

import (
	"context"
	"errors"
	"regexp"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/api/dispatch"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/schema"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/tables"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/types/api"
)

// Clients send the hex SHA-512 of the salted password.
var passwordPattern = regexp.MustCompile(`^[0-9a-fA-F]{128}$`)

// ValidPassword reports whether password looks like a SHA-512 hex digest.
func ValidPassword(password string) bool { return passwordPattern.MatchString(password) }

// Register adds the account request types to r.
func Register(r *dispatch.Registry) {
	r.Register("login", Login, dispatch.Requirements{SkipAuth: true})
	r.Register("registerUser", RegisterUser, dispatch.Requirements{SkipAuth: true})
	r.Register("logout", Logout, dispatch.Requirements{})
	r.Register("checkToken", CheckToken, dispatch.Requirements{})
	r.Register("getUsers", GetUsers, dispatch.Requirements{MinPermission: tables.PermissionAdmin})
	r.Register("deleteUser", DeleteUser, dispatch.Requirements{MinPermission: tables.PermissionAdmin})
	r.Register("updateUser", UpdateUser, dispatch.Requirements{MinPermission: tables.PermissionUser})
}

type session struct {
	Token           int64 `json:"token"`
	PermissionLevel int   `json:"permissionLevel"`
}

// Login checks the password and hands out a new token.
func Login(req *dispatch.Request) (*api.Response, error) {
	username, okName := req.Args.String("username")
	password, okPass := req.Args.String("password")
	if !okName || !okPass {
		return api.MissingArguments("username", "password"), nil
	}

	ctx := req.Context()
	user, err := db.Related[tables.User](ctx, req.Conn, username)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Password() != password {
		req.Log.Info("Failed login", "username", username)
		return api.InvalidLogin(), nil
	}

	token := req.Now.Unix()
	if err := user.SetToken(token); err != nil {
		return nil, err
	}
	if _, err := req.Conn.Update(ctx, user); err != nil {
		return nil, err
	}
	return api.OK(session{Token: token, PermissionLevel: int(user.Permission())}), nil
}

// Logout invalidates the caller's token.
func Logout(req *dispatch.Request) (*api.Response, error) {
	if err := req.User.SetToken(0); err != nil {
		return nil, err
	}
	if _, err := req.Conn.Update(req.Context(), req.User); err != nil {
		return nil, err
	}
	return api.OK(nil), nil
}

// CheckToken succeeds whenever authentication did.
func CheckToken(*dispatch.Request) (*api.Response, error) { return api.OK(nil), nil }

// RegisterUser creates an account with User permission and logs it in.
func RegisterUser(req *dispatch.Request) (*api.Response, error) {
	username, okName := req.Args.String("username")
	password, okPass := req.Args.String("password")
	if !okName || !okPass {
		return api.MissingArguments("username", "password"), nil
	}
	if !req.Config.AuthenticationSettings.UsernameRequirements.Allows(username) {
		return api.InvalidUsername(), nil
	}
	if !ValidPassword(password) {
		return api.InvalidPassword(), nil
	}

	ctx := req.Context()
	existing, err := db.Related[tables.User](ctx, req.Conn, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return api.AlreadyExists(username), nil
	}

	token := req.Now.Unix()
	user, err := tables.NewUser(username, password, tables.PermissionUser, token)
	if errors.Is(err, schema.ErrLength) {
		return api.InvalidUsername(), nil
	} else if err != nil {
		return nil, err
	}
	if _, err := req.Conn.Insert(ctx, user); err != nil {
		return nil, err
	}
	req.Log.Info("Registered user", "username", username)
	return api.OK(session{Token: token, PermissionLevel: int(tables.PermissionUser)}), nil
}

type userInfo struct {
	Username   string `json:"username"`
	Permission int    `json:"permission"`
}

// GetUsers lists every account with its permission level.
func GetUsers(req *dispatch.Request) (*api.Response, error) {
	users, err := db.Select[tables.User](req.Context(), req.Conn, nil, nil)
	if err != nil {
		return nil, err
	}
	out := make([]userInfo, len(users))
	for i, u := range users {
		out[i] = userInfo{Username: u.Username(), Permission: int(u.Permission())}
	}
	return api.OK(out), nil
}

// DeleteUser removes an account that has no loans left.
func DeleteUser(req *dispatch.Request) (*api.Response, error) {
	username, ok := target(req)
	if !ok {
		return api.MissingArguments("username"), nil
	}
	if username == req.User.Username() {
		return api.CannotDelete("cannot delete the account in use"), nil
	}

	ctx := req.Context()
	user, err := db.Related[tables.User](ctx, req.Conn, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return api.NoSuchUser(username), nil
	}
	loans, err := req.Conn.Count(ctx, tables.Loans, req.Conn.Condition().Column("user").Equals(username, schema.VarChar))
	if err != nil {
		return nil, err
	}
	if loans > 0 {
		return api.CannotDelete("user still has loans"), nil
	}
	if _, err := req.Conn.Delete(ctx, user); err != nil {
		return nil, err
	}
	req.Log.Info("Deleted user", "username", username)
	return api.OK(nil), nil
}

// UpdateUser changes a password or permission level. Users may change their
// own password only; admins may change anyone else's account.
func UpdateUser(req *dispatch.Request) (*api.Response, error) {
	username, ok := target(req)
	if !ok {
		return api.MissingArguments("username"), nil
	}
	password, hasPassword := req.Args.String("password")
	if hasPassword && !ValidPassword(password) {
		return api.InvalidPassword(), nil
	}
	var permission tables.Permission
	level, hasPermission := req.Args.Int("permission")
	if hasPermission {
		permission = tables.Permission(level)
		if level < int64(tables.PermissionEmpty) || level > int64(tables.PermissionAdmin) {
			return api.InvalidArguments("permission"), nil
		}
	}

	self := username == req.User.Username()
	if !self && req.User.Permission() < tables.PermissionAdmin {
		return api.AccessDenied(), nil
	}
	if self && hasPermission {
		return api.AccessDenied(), nil
	}

	ctx := req.Context()
	user := req.User
	if !self {
		var err error
		if user, err = db.Related[tables.User](ctx, req.Conn, username); err != nil {
			return nil, err
		}
		if user == nil {
			return api.NoSuchUser(username), nil
		}
	}
	if hasPassword {
		if err := user.SetPassword(password); err != nil {
			return nil, err
		}
	}
	if hasPermission {
		if err := user.SetPermission(permission); err != nil {
			return nil, err
		}
	}
	if _, err := req.Conn.Update(ctx, user); err != nil {
		return nil, err
	}
	return api.OK(nil), nil
}

// target is the account a user request is about. Credentials and arguments
// share the "username" key, so a flat body always targets the caller.
func target(req *dispatch.Request) (string, bool) {
	return req.Args.String("username")
}

// LogoutUser clears the token of username, as the operator console does. It
// reports false when no such user exists.
func LogoutUser(ctx context.Context, src db.Source, username string) (bool, error) {
	e, err := src.Executor()
	if err != nil {
		return false, err
	}
	user, err := db.Related[tables.User](ctx, e, username)
	if err != nil || user == nil {
		return false, err
	}
	if err := user.SetToken(0); err != nil {
		return false, err
	}
	if _, err := e.Update(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}
