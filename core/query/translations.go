package query

import (
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/tables"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/types/api"
)

// Translations reads a {"en": .., "nl": .., "ar": ..} object. Unknown
// languages and non-string values are ignored. With requireEnglish the "en"
// entry must be present.
func Translations(args api.Args, key string, requireEnglish bool) (map[string]string, *api.Response) {
	obj, ok := args.Object(key)
	if !ok {
		if requireEnglish {
			return nil, api.MissingArguments(key)
		}
		return nil, nil
	}
	out := make(map[string]string, len(tables.Languages))
	for _, lang := range tables.Languages {
		if s, ok := obj.String(lang); ok {
			out[lang] = s
		}
	}
	if _, ok := out["en"]; requireEnglish && !ok {
		return nil, api.MissingArguments(key + ": en")
	}
	return out, nil
}
