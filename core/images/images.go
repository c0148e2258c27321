// Package images serves product pictures.
package images

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/api/dispatch"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/tables"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/types/api"
)

func Register(r *dispatch.Registry) {
	r.Register("getImages", Get, dispatch.Requirements{MinPermission: tables.PermissionUser})
}

// Image is one entry of a getImages response. Data is base64 in JSON.
type Image struct {
	Data      []byte `json:"data"`
	Extension string `json:"extension"`
	// Checksum lets clients keep cached copies.
	Checksum string `json:"checksum"`
}

// Checksum is the hex BLAKE3 digest of data.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Get returns the requested images keyed by id. Unknown ids are left out.
func Get(req *dispatch.Request) (*api.Response, error) {
	if !req.Args.Has("images") {
		return api.MissingArguments("images"), nil
	}
	ids, ok := req.Args.Strings("images")
	if !ok {
		return api.InvalidArguments("images"), nil
	}
	out := make(map[string]Image, len(ids))
	if len(ids) == 0 {
		return api.OK(out), nil
	}

	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	cond := req.Conn.Condition().AnyOf(tables.Images.Columns[0], values...)
	found, err := db.Select[tables.Image](req.Context(), req.Conn, cond, nil)
	if err != nil {
		return nil, err
	}
	for _, img := range found {
		out[img.ID()] = Image{Data: img.Data(), Extension: img.Extension(), Checksum: Checksum(img.Data())}
	}
	return api.OK(out), nil
}
