package loans

import (
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/api/dispatch"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/core/productitems"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/tables"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/types/api"
)

// Availability is the stock summary of one product. Reservations and
// LoanedOut only count loans that have not ended yet.
type Availability struct {
	Total        int `json:"total"`
	Reservations int `json:"reservations"`
	LoanedOut    int `json:"loanedOut"`
	InStock      int `json:"inStock"`
}

// Availability reports item and loan counts for the products given as a
// single id or a list of ids.
func (s *Service) Availability(req *dispatch.Request) (*api.Response, error) {
	var products []string
	if id, ok := req.Args.String("products"); ok {
		products = []string{id}
	} else if ids, ok := req.Args.Strings("products"); ok {
		products = ids
	} else {
		return api.MissingArguments("products"), nil
	}

	ctx := req.Context()
	e, err := req.Conn.Executor()
	if err != nil {
		return nil, err
	}
	grouped, err := productitems.ByProduct(ctx, e, products, nil)
	if err != nil {
		return nil, err
	}

	owner := make(map[int32]string)
	var itemIDs []any
	for product, ids := range grouped {
		for _, id := range ids {
			owner[id] = product
			itemIDs = append(itemIDs, id)
		}
	}
	var loans []*tables.LoanItem
	if len(itemIDs) > 0 {
		loans, err = db.Select[tables.LoanItem](ctx, e, e.Condition().AnyOf(colItem, itemIDs...), nil)
		if err != nil {
			return nil, err
		}
	}

	out := make(map[string]*Availability, len(products))
	for _, p := range products {
		out[p] = &Availability{Total: len(grouped[p])}
	}
	for _, l := range loans {
		if l.End().Before(req.Now) {
			continue
		}
		a := out[owner[l.ProductItemID()]]
		a.Reservations++
		if l.IsAcquired() {
			a.LoanedOut++
		}
	}
	for _, a := range out {
		a.InStock = a.Total - a.LoanedOut
	}
	return api.OK(out), nil
}
