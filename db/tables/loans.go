package tables

import (
	"context"
	"fmt"
	"time"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/schema"
)

var (
	loanID       = schema.Col("id", 11, schema.Int)
	loanUser     = schema.Col("user", 50, schema.VarChar)
	loanItem     = schema.Col("product_item", 11, schema.Int)
	loanStart    = schema.Col("start", 0, schema.DateTime)
	loanEnd      = schema.Col("end", 0, schema.DateTime)
	loanAcquired = schema.Col("is_item_acquired", 1, schema.Bool)

	// Loans reserve one product item for a user over a time span.
	Loans = schema.MustTable("loans",
		[]schema.Column{loanID, loanUser, loanItem, loanStart, loanEnd, loanAcquired},
		schema.MustIndex("", schema.Primary, true, loanID),
		schema.MustIndex("user", schema.Plain, false, loanUser),
		schema.MustIndex("product_item", schema.Plain, false, loanItem),
	)
)

// LoanItem is a row of the loans table.
type LoanItem struct {
	row schema.Row
}

// NewLoanItem builds an unsaved loan. start must not be after end.
func NewLoanItem(user string, item int32, start, end time.Time) (*LoanItem, error) {
	l := &LoanItem{}
	if err := l.Row().SetAll([]any{nil, user, item, nil, nil, false}); err != nil {
		return nil, err
	}
	if err := l.SetSpan(start, end); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *LoanItem) Table() *schema.Table { return Loans }
func (l *LoanItem) Row() *schema.Row     { return l.row.Bind(Loans) }

func (l *LoanItem) ID() int32 {
	n, _ := l.Row().Get(0).(int32)
	return n
}

func (l *LoanItem) UserID() string {
	s, _ := l.Row().Get(1).(string)
	return s
}

func (l *LoanItem) ProductItemID() int32 {
	n, _ := l.Row().Get(2).(int32)
	return n
}

func (l *LoanItem) Start() time.Time {
	t, _ := l.Row().Get(3).(time.Time)
	return t
}

func (l *LoanItem) End() time.Time {
	t, _ := l.Row().Get(4).(time.Time)
	return t
}

func (l *LoanItem) IsAcquired() bool {
	b, _ := l.Row().Get(5).(bool)
	return b
}

func (l *LoanItem) SetUserID(user string) error       { return l.Row().Set(1, user) }
func (l *LoanItem) SetProductItemID(item int32) error { return l.Row().Set(2, item) }
func (l *LoanItem) SetAcquired(acquired bool) error   { return l.Row().Set(5, acquired) }

// SetSpan changes start and end together. Times are stored in UTC with
// second precision.
func (l *LoanItem) SetSpan(start, end time.Time) error {
	start, end = start.UTC().Truncate(time.Second), end.UTC().Truncate(time.Second)
	if start.After(end) {
		return fmt.Errorf("loan start %s is after its end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	if err := l.Row().Set(3, start); err != nil {
		return err
	}
	return l.Row().Set(4, end)
}

func (l *LoanItem) LoadUser(ctx context.Context, src db.Source) (*User, error) {
	return db.Related[User](ctx, src, l.UserID())
}

func (l *LoanItem) LoadProductItem(ctx context.Context, src db.Source) (*ProductItem, error) {
	return db.Related[ProductItem](ctx, src, l.ProductItemID())
}
