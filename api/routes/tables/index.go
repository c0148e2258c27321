// Package tables serves the row counts of the mapped tables.
package tables

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	dbtables "github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/tables"
)

// TableInfo describes one table.
type TableInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    int64    `json:"rows"`
}

// RegisterRoutes registers the table routes under /admin/tables.
func RegisterRoutes(r chi.Router, src db.Source) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		HandleListTables(w, r, src)
	})
}

// HandleListTables lists every table with its columns and row count.
func HandleListTables(w http.ResponseWriter, r *http.Request, src db.Source) {
	w.Header().Set("Content-Type", "application/json")
	e, err := src.Executor()
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	all := dbtables.All()
	out := make([]TableInfo, 0, len(all))
	for _, t := range all {
		n, err := e.Count(r.Context(), t, nil)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		out = append(out, TableInfo{Name: t.Name, Columns: t.ColumnNames(), Rows: n})
	}
	json.NewEncoder(w).Encode(out)
}
