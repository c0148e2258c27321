// Package loans reserves product items for users over time spans.
//
// A product's items are assigned under a per-product lock inside a database
// transaction, so two requests for the last free item cannot both get it.
package loans

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/api/dispatch"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/core/productitems"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/core/query"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/tables"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/types/api"
)

var (
	colID   = tables.Loans.Columns[0]
	colUser = tables.Loans.Columns[1]
	colItem = tables.Loans.Columns[2]
)

// Service holds the assignment locks shared by every worker.
type Service struct {
	locks keyedMutex
}

func NewService() *Service { return &Service{} }

// Register adds the loan request types to r.
func (s *Service) Register(r *dispatch.Registry) {
	user := dispatch.Requirements{MinPermission: tables.PermissionUser}
	r.Register("addLoan", s.Add, user)
	r.Register("getLoans", s.Get, user)
	r.Register("deleteLoan", s.Delete, user)
	r.Register("resizeLoan", s.Resize, user)
	r.Register("setLoanAcquired", s.SetAcquired, dispatch.Requirements{MinPermission: tables.PermissionCollaborator})
	r.Register("getUnavailableDates", s.UnavailableDates, user)
	r.Register("getProductAvailability", s.Availability, dispatch.Requirements{MinPermission: tables.PermissionCollaborator})
}

// span reads start and end and applies the rules every new or resized loan
// follows.
func span(req *dispatch.Request) (Span, *api.Response) {
	start, okStart := req.Args.Time("start")
	end, okEnd := req.Args.Time("end")
	if !okStart || !okEnd {
		return Span{}, api.InvalidArguments("start", "end")
	}
	if end.Before(start) {
		return Span{}, api.InvalidArguments("'end' must come after 'start'")
	}
	sp := Span{Start: start.Truncate(time.Second), End: end.Truncate(time.Second)}
	if sp.Start.Before(startOfDay(req.Now)) {
		return Span{}, api.InvalidArguments("'start' may not be earlier than today")
	}
	maxDays := req.Config.RequestSettings.MaxLoanDays
	if sp.Duration() > time.Duration(maxDays)*24*time.Hour {
		return Span{}, api.InvalidArguments(fmt.Sprintf("a loan may not last longer than %d days", maxDays))
	}
	return sp, nil
}

// loanID reads the "loanId" argument.
func loanID(args api.Args) (int32, bool) {
	n, ok := args.Int("loanId")
	return int32(n), ok && n > 0 && n <= 1<<31-1
}

// own loads a loan. Plain users only see their own loans.
func own(ctx context.Context, req *dispatch.Request, id int32) (*tables.LoanItem, error) {
	cond := req.Conn.Condition().Column(colID.Name).Equals(id, colID.Type)
	if req.User.Permission() <= tables.PermissionUser {
		cond.And().Column(colUser.Name).Equals(req.User.Username(), colUser.Type)
	}
	return db.First[tables.LoanItem](ctx, req.Conn, cond)
}

// loansOf returns the loans of items that overlap sp, skipping the loan with
// id skip.
func loansOf(ctx context.Context, e *db.Executor, items []any, sp Span, skip int32) ([]*tables.LoanItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	all, err := db.Select[tables.LoanItem](ctx, e, e.Condition().AnyOf(colItem, items...), nil)
	if err != nil {
		return nil, err
	}
	var out []*tables.LoanItem
	for _, l := range all {
		if l.ID() != skip && sp.Overlaps(Span{Start: l.Start(), End: l.End()}) {
			out = append(out, l)
		}
	}
	return out, nil
}

// freeItem returns the lowest item id of product with no loan overlapping
// sp, or 0 when every item is taken.
func freeItem(ctx context.Context, e *db.Executor, product string, sp Span, skip int32) (int32, int, error) {
	items, err := productitems.ForProduct(ctx, e, product)
	if err != nil || len(items) == 0 {
		return 0, 0, err
	}
	ids := make([]any, len(items))
	for i, it := range items {
		ids[i] = it.ID()
	}
	busy, err := loansOf(ctx, e, ids, sp, skip)
	if err != nil {
		return 0, len(items), err
	}
	taken := make(map[int32]bool, len(busy))
	for _, l := range busy {
		taken[l.ProductItemID()] = true
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID() < items[j].ID() })
	for _, it := range items {
		if !taken[it.ID()] {
			return it.ID(), len(items), nil
		}
	}
	return 0, len(items), nil
}

type created struct {
	ID          int32 `json:"id"`
	ProductItem int32 `json:"productItem"`
}

// Add reserves a free item of productID for the caller.
func (s *Service) Add(req *dispatch.Request) (*api.Response, error) {
	productID, ok := req.Args.String("productID")
	if !ok {
		return api.MissingArguments("productID", "start", "end"), nil
	}
	sp, resp := span(req)
	if resp != nil {
		return resp, nil
	}

	ctx := req.Context()
	product, err := db.Related[tables.Product](ctx, req.Conn, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return api.NoSuchProduct(productID), nil
	}

	unlock := s.locks.Lock(productID)
	defer unlock()

	var loan *tables.LoanItem
	var itemCount int
	err = req.Conn.Tx(ctx, func(tx *db.Executor) error {
		item, n, err := freeItem(ctx, tx, productID, sp, 0)
		itemCount = n
		if err != nil || item == 0 {
			return err
		}
		if loan, err = tables.NewLoanItem(req.User.Username(), item, sp.Start, sp.End); err != nil {
			return err
		}
		_, err = tx.Insert(ctx, loan)
		return err
	})
	if err != nil {
		return nil, err
	}
	if itemCount == 0 {
		return api.NoItemsForProduct(productID), nil
	}
	if loan == nil {
		return api.ReservationFailed("no item is available in that period"), nil
	}
	req.Log.Info("Added loan", "loan", loan.ID(), "productItem", loan.ProductItemID())
	return api.OK(created{ID: loan.ID(), ProductItem: loan.ProductItemID()}), nil
}

// Get lists loans. Plain users only get their own. Optional filters are
// productItemIds, userId, loanItemID and a start/end window; columns picks
// the fields returned.
func (s *Service) Get(req *dispatch.Request) (*api.Response, error) {
	columns := tables.Loans.ColumnNames()
	if req.Args.Has("columns") {
		cols, ok := req.Args.Strings("columns")
		if !ok {
			return api.InvalidArguments("columns"), nil
		}
		for _, c := range cols {
			if tables.Loans.IndexOf(c) < 0 {
				return api.InvalidArguments("columns"), nil
			}
		}
		if len(cols) > 0 {
			columns = cols
		}
	}

	cond := req.Conn.Condition()
	if req.Args.Has("productItemIds") {
		ids, ok := req.Args.Ints("productItemIds")
		if !ok {
			return api.InvalidArguments("productItemIds"), nil
		}
		if len(ids) > 0 {
			values := make([]any, len(ids))
			for i, id := range ids {
				values[i] = id
			}
			cond.AnyOf(colItem, values...)
		}
	}
	if req.Args.Has("loanItemID") {
		id, ok := req.Args.Int("loanItemID")
		if !ok {
			return api.InvalidArguments("loanItemID"), nil
		}
		cond.And().Column(colID.Name).Equals(id, colID.Type)
	}
	if req.Args.Has("userId") {
		user, ok := req.Args.String("userId")
		if !ok {
			return api.InvalidArguments("userId"), nil
		}
		cond.And().Column(colUser.Name).Equals(user, colUser.Type)
	}
	if req.User.Permission() <= tables.PermissionUser {
		cond.And().Column(colUser.Name).Equals(req.User.Username(), colUser.Type)
	}

	window, resp := windowOf(req.Args)
	if resp != nil {
		return resp, nil
	}

	loans, err := db.Select[tables.LoanItem](req.Context(), req.Conn, cond, nil)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(loans))
	for _, l := range loans {
		if window != nil && !window.Overlaps(Span{Start: l.Start(), End: l.End()}) {
			continue
		}
		obj := make(map[string]any, len(columns))
		for _, c := range columns {
			obj[c] = query.EncodeValue(l.Row().Get(tables.Loans.IndexOf(c)))
		}
		out = append(out, obj)
	}
	return api.OK(out), nil
}

// windowOf reads the optional start/end filter. A missing bound is open.
func windowOf(args api.Args) (*Span, *api.Response) {
	if !args.Has("start") && !args.Has("end") {
		return nil, nil
	}
	w := Span{Start: time.Unix(0, 0).UTC(), End: time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)}
	if args.Has("start") {
		t, ok := args.Time("start")
		if !ok {
			return nil, api.InvalidArguments("Unable to parse 'start'")
		}
		w.Start = t
	}
	if args.Has("end") {
		t, ok := args.Time("end")
		if !ok {
			return nil, api.InvalidArguments("Unable to parse 'end'")
		}
		w.End = t
	}
	w = NewSpan(w.Start, w.End)
	return &w, nil
}

// Delete cancels a loan that has not started yet.
func (s *Service) Delete(req *dispatch.Request) (*api.Response, error) {
	id, ok := loanID(req.Args)
	if !ok {
		return api.InvalidArguments("loanId"), nil
	}
	ctx := req.Context()
	loan, err := own(ctx, req, id)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return api.NoSuchLoan(strconv.Itoa(int(id))), nil
	}
	if loan.Start().Before(req.Now) {
		return api.LoanAlreadyStarted(strconv.Itoa(int(id))), nil
	}
	if _, err := req.Conn.Delete(ctx, loan); err != nil {
		return nil, err
	}
	return api.OK(nil), nil
}

// Resize moves a loan to a new span. When its item is taken in the new span
// and the item has not been handed out yet, the loan moves to a free item of
// the same product.
func (s *Service) Resize(req *dispatch.Request) (*api.Response, error) {
	id, ok := loanID(req.Args)
	if !ok {
		return api.InvalidArguments("loanId"), nil
	}
	sp, resp := span(req)
	if resp != nil {
		return resp, nil
	}

	ctx := req.Context()
	loan, err := own(ctx, req, id)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return api.NoSuchLoan(strconv.Itoa(int(id))), nil
	}
	if loan.End().Before(req.Now) {
		return api.LoanResizeFailed("the loan has already ended", 0), nil
	}
	if loan.Start().Before(req.Now) && !loan.Start().Equal(sp.Start) {
		return api.LoanAlreadyStarted(strconv.Itoa(int(id))), nil
	}
	item, err := loan.LoadProductItem(ctx, req.Conn)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("loan %d points at missing product item %d", id, loan.ProductItemID())
	}

	unlock := s.locks.Lock(item.ProductID())
	defer unlock()

	var conflicts int
	reassigned := false
	err = req.Conn.Tx(ctx, func(tx *db.Executor) error {
		busy, err := loansOf(ctx, tx, []any{loan.ProductItemID()}, sp, loan.ID())
		if err != nil {
			return err
		}
		conflicts = len(busy)
		if conflicts > 0 {
			if loan.IsAcquired() {
				return nil
			}
			free, _, err := freeItem(ctx, tx, item.ProductID(), sp, loan.ID())
			if err != nil || free == 0 {
				return err
			}
			if err := loan.SetProductItemID(free); err != nil {
				return err
			}
			reassigned = true
		}
		if err := loan.SetSpan(sp.Start, sp.End); err != nil {
			return err
		}
		_, err = tx.Update(ctx, loan)
		return err
	})
	if err != nil {
		return nil, err
	}
	if conflicts > 0 && !reassigned {
		return api.LoanResizeFailed("the item is reserved in that period", conflicts), nil
	}
	resp = api.OK(map[string]any{"product_item": loan.ProductItemID()})
	if reassigned {
		resp.Message = "Loan has been reassigned."
	}
	return resp, nil
}

// SetAcquired records whether the item of a loan was handed out.
func (s *Service) SetAcquired(req *dispatch.Request) (*api.Response, error) {
	if missing := req.Args.Missing("loanId", "value"); len(missing) > 0 {
		return api.MissingArguments(missing...), nil
	}
	id, okID := loanID(req.Args)
	value, okValue := req.Args.Bool("value")
	if !okID || !okValue {
		return api.InvalidArguments("loanId", "value"), nil
	}

	ctx := req.Context()
	loan, err := db.Related[tables.LoanItem](ctx, req.Conn, id)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return api.NoSuchLoan(strconv.Itoa(int(id))), nil
	}
	if loan.IsAcquired() != value {
		if err := loan.SetAcquired(value); err != nil {
			return nil, err
		}
		if _, err := req.Conn.Update(ctx, loan); err != nil {
			return nil, err
		}
	}
	return api.OK(nil), nil
}

// UnavailableDates returns the days between start and end, as epoch
// milliseconds of their UTC midnight, on which every item of the product is
// lent out.
func (s *Service) UnavailableDates(req *dispatch.Request) (*api.Response, error) {
	productID, ok := req.Args.String("productId")
	if !ok {
		return api.InvalidArguments("productId"), nil
	}
	start, okStart := req.Args.Time("start")
	end, okEnd := req.Args.Time("end")
	if !okStart || !okEnd {
		return api.InvalidArguments("start", "end"), nil
	}
	window := NewSpan(start, end)
	maxDays := req.Config.RequestSettings.MaxUnavailableDatesRange
	if window.Duration() > time.Duration(maxDays)*24*time.Hour {
		return api.InvalidArguments(fmt.Sprintf("start and end may not be more than %d days apart", maxDays)), nil
	}

	ctx := req.Context()
	e, err := req.Conn.Executor()
	if err != nil {
		return nil, err
	}
	items, err := productitems.ForProduct(ctx, e, productID)
	if err != nil {
		return nil, err
	}
	days := []int64{}
	if len(items) == 0 {
		return api.OK(days), nil
	}
	ids := make([]any, len(items))
	for i, it := range items {
		ids[i] = it.ID()
	}
	loans, err := loansOf(ctx, e, ids, window, 0)
	if err != nil {
		return nil, err
	}

	for _, day := range window.Days() {
		whole := Span{Start: day, End: day.AddDate(0, 0, 1)}
		covering := 0
		for _, l := range loans {
			if whole.Overlaps(Span{Start: l.Start(), End: l.End()}) {
				covering++
			}
		}
		if covering >= len(items) {
			days = append(days, day.UnixMilli())
		}
	}
	return api.OK(days), nil
}
