package tables

import (
	"fmt"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/schema"
)

// Permission is a user's access level. Higher levels include the lower ones.
type Permission int

const (
	PermissionEmpty Permission = iota
	PermissionUser
	PermissionCollaborator
	PermissionAdmin
)

var permissionNames = []string{"Empty", "User", "Collaborator", "Admin"}

func (p Permission) String() string {
	if p < 0 || int(p) >= len(permissionNames) {
		return fmt.Sprintf("Permission(%d)", int(p))
	}
	return permissionNames[p]
}

// ParsePermission parses the stored name of a permission level.
func ParsePermission(s string) (Permission, error) {
	for i, name := range permissionNames {
		if name == s {
			return Permission(i), nil
		}
	}
	return PermissionEmpty, fmt.Errorf("unknown permission %q", s)
}

var (
	userUsername    = schema.Col("username", 50, schema.VarChar)
	userPassword    = schema.Col("password", 65535, schema.Text)
	userPermissions = schema.Col("permissions", 12, schema.Enum)
	userToken       = schema.Col("token", 20, schema.BigInt)

	// Users holds accounts and their current login token.
	Users = schema.MustTable("users",
		[]schema.Column{userUsername, userPassword, userPermissions, userToken},
		schema.MustIndex("", schema.Primary, false, userUsername),
	)
)

// User is a row of the users table.
type User struct {
	row schema.Row
}

// NewUser builds an unsaved user.
func NewUser(username, password string, permission Permission, token int64) (*User, error) {
	u := &User{}
	if err := u.Row().SetAll([]any{username, password, permission.String(), token}); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) Table() *schema.Table { return Users }
func (u *User) Row() *schema.Row     { return u.row.Bind(Users) }

func (u *User) Username() string {
	s, _ := u.Row().Get(0).(string)
	return s
}

func (u *User) SetUsername(username string) error { return u.Row().Set(0, username) }

func (u *User) Password() string {
	s, _ := u.Row().Get(1).(string)
	return s
}

func (u *User) SetPassword(password string) error { return u.Row().Set(1, password) }

// Permission returns the stored level; unknown names read as PermissionEmpty.
func (u *User) Permission() Permission {
	s, _ := u.Row().Get(2).(string)
	p, _ := ParsePermission(s)
	return p
}

func (u *User) SetPermission(p Permission) error { return u.Row().Set(2, p.String()) }

// Token is the epoch second of the user's last login, 0 when logged out.
func (u *User) Token() int64 {
	n, _ := u.Row().Get(3).(int64)
	return n
}

func (u *User) SetToken(token int64) error { return u.Row().Set(3, token) }
