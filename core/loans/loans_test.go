package loans

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/api/dispatch"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/core/coretest"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/dbtest"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/tables"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/logging"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/types/api"
)

// day returns midnight n days from today, UTC.
func day(n int) time.Time { return startOfDay(time.Now()).AddDate(0, 0, n) }

func stamp(t time.Time) string { return t.Format(time.RFC3339) }

func product(t *testing.T, env *coretest.Env, id string, items int) []int32 {
	t.Helper()
	p, err := tables.NewProduct(id, "Bosch", "default", id+"_name", id+"_description", "default")
	require.NoError(t, err)
	env.Insert(t, p)
	ids := make([]int32, items)
	for i := range ids {
		it, err := tables.NewProductItem(id)
		require.NoError(t, err)
		env.Insert(t, it)
		ids[i] = it.ID()
	}
	return ids
}

func loan(t *testing.T, env *coretest.Env, user string, item int32, start, end time.Time) *tables.LoanItem {
	t.Helper()
	l, err := tables.NewLoanItem(user, item, start, end)
	require.NoError(t, err)
	env.Insert(t, l)
	return l
}

func reload(t *testing.T, env *coretest.Env, id int32) *tables.LoanItem {
	t.Helper()
	l, err := db.Related[tables.LoanItem](context.Background(), env.Conn, id)
	require.NoError(t, err)
	return l
}

func TestAddAssignsLowestFreeItem(t *testing.T) {
	env := coretest.New(t)
	alice := env.User(t, "alice", tables.PermissionUser)
	items := product(t, env, "drill", 2)
	s := NewService()

	body := fmt.Sprintf(`{"productID": "drill", "start": %q, "end": %q}`, stamp(day(1)), stamp(day(3)))
	first := env.Call(t, s.Add, alice, body)
	require.True(t, first.Success(), first.Message)
	assert.Equal(t, map[string]any{"id": 1.0, "productItem": float64(items[0])}, coretest.Data(t, first))

	second := env.Call(t, s.Add, alice, body)
	require.True(t, second.Success(), second.Message)
	assert.Equal(t, float64(items[1]), coretest.Data(t, second).(map[string]any)["productItem"])

	third := env.Call(t, s.Add, alice, body)
	assert.Equal(t, api.ReasonReservationFailed, third.ReasonString())

	// A span that only touches the existing loans fits on the first item.
	later := fmt.Sprintf(`{"productID": "drill", "start": %q, "end": %q}`, stamp(day(3)), stamp(day(4)))
	fourth := env.Call(t, s.Add, alice, later)
	require.True(t, fourth.Success(), fourth.Message)
	assert.Equal(t, float64(items[0]), coretest.Data(t, fourth).(map[string]any)["productItem"])
}

func TestAddRejects(t *testing.T) {
	env := coretest.New(t)
	alice := env.User(t, "alice", tables.PermissionUser)
	product(t, env, "drill", 1)
	product(t, env, "empty", 0)
	s := NewService()

	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{"missing product", `{"start": "2030-01-01", "end": "2030-01-02"}`, api.ReasonMissingArguments},
		{"unparsable date", `{"productID": "drill", "start": "soon", "end": "2030-01-02"}`, api.ReasonInvalidArguments},
		{"end before start", fmt.Sprintf(`{"productID": "drill", "start": %q, "end": %q}`, stamp(day(3)), stamp(day(2))), api.ReasonInvalidArguments},
		{"too long", fmt.Sprintf(`{"productID": "drill", "start": %q, "end": %q}`, stamp(day(1)), stamp(day(23))), api.ReasonInvalidArguments},
		{"in the past", fmt.Sprintf(`{"productID": "drill", "start": %q, "end": %q}`, stamp(day(-2)), stamp(day(1))), api.ReasonInvalidArguments},
		{"unknown product", fmt.Sprintf(`{"productID": "saw", "start": %q, "end": %q}`, stamp(day(1)), stamp(day(2))), api.ReasonNoSuchProduct},
		{"no items", fmt.Sprintf(`{"productID": "empty", "start": %q, "end": %q}`, stamp(day(1)), stamp(day(2))), api.ReasonNoItemsForProduct},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.reason, env.Call(t, s.Add, alice, tt.body).ReasonString())
		})
	}

	// Today is still allowed.
	today := fmt.Sprintf(`{"productID": "drill", "start": %q, "end": %q}`, stamp(day(0)), stamp(day(1)))
	assert.True(t, env.Call(t, s.Add, alice, today).Success())
}

func TestConcurrentAddsNeverDoubleBook(t *testing.T) {
	env := coretest.New(t)
	alice := env.User(t, "alice", tables.PermissionUser)
	product(t, env, "drill", 3)
	s := NewService()

	const callers = 8
	conns := make([]*db.Conn, callers)
	for i := range conns {
		conns[i] = dbtest.Conn(t, env.DB)
	}
	args := api.Args{"productID": "drill", "start": stamp(day(1)), "end": stamp(day(2))}

	var wg sync.WaitGroup
	results := make([]*api.Response, callers)
	for i := range conns {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := dispatch.NewRequest(context.Background(), "addLoan", conns[i], env.Config, alice, args, logging.NewTestLogger())
			resp, err := s.Add(req)
			if assert.NoError(t, err) {
				results[i] = resp
			}
		}(i)
	}
	wg.Wait()

	booked := map[any]bool{}
	for _, r := range results {
		require.NotNil(t, r)
		if r.Success() {
			item := coretest.Data(t, r).(map[string]any)["productItem"]
			assert.False(t, booked[item], "item %v booked twice", item)
			booked[item] = true
		} else {
			assert.Equal(t, api.ReasonReservationFailed, r.ReasonString())
		}
	}
	assert.Len(t, booked, 3)
}

func TestGetLoans(t *testing.T) {
	env := coretest.New(t)
	alice := env.User(t, "alice", tables.PermissionUser)
	bob := env.User(t, "bob", tables.PermissionUser)
	admin := env.User(t, "admin", tables.PermissionAdmin)
	items := product(t, env, "drill", 2)
	loan(t, env, "alice", items[0], day(1), day(2))
	loan(t, env, "bob", items[1], day(1), day(2))
	loan(t, env, "bob", items[0], day(10), day(12))
	s := NewService()

	mine := coretest.Data(t, env.Call(t, s.Get, alice, `{}`)).([]any)
	require.Len(t, mine, 1)
	assert.Equal(t, "alice", mine[0].(map[string]any)["user"])
	assert.Equal(t, float64(day(1).UnixMilli()), mine[0].(map[string]any)["start"])

	// Filtering on another user does not widen a plain user's view.
	assert.Empty(t, coretest.Data(t, env.Call(t, s.Get, alice, `{"userId": "bob"}`)))
	assert.Len(t, coretest.Data(t, env.Call(t, s.Get, bob, `{}`)), 2)

	all := coretest.Data(t, env.Call(t, s.Get, admin, `{"columns": ["id", "user"]}`)).([]any)
	require.Len(t, all, 3)
	assert.Equal(t, map[string]any{"id": 1.0, "user": "alice"}, all[0])

	byItem := coretest.Data(t, env.Call(t, s.Get, admin, fmt.Sprintf(`{"productItemIds": [%d]}`, items[0])))
	assert.Len(t, byItem, 2)

	window := fmt.Sprintf(`{"start": %q, "end": %q}`, stamp(day(9)), stamp(day(11)))
	inWindow := coretest.Data(t, env.Call(t, s.Get, admin, window)).([]any)
	require.Len(t, inWindow, 1)
	assert.Equal(t, 3.0, inWindow[0].(map[string]any)["id"])

	assert.Len(t, coretest.Data(t, env.Call(t, s.Get, admin, `{"loanItemID": 2}`)), 1)
	assert.Equal(t, api.ReasonInvalidArguments, env.Call(t, s.Get, admin, `{"columns": ["secret"]}`).ReasonString())
	assert.Equal(t, api.ReasonInvalidArguments, env.Call(t, s.Get, admin, `{"start": "whenever"}`).ReasonString())
}

func TestDeleteLoan(t *testing.T) {
	env := coretest.New(t)
	alice := env.User(t, "alice", tables.PermissionUser)
	admin := env.User(t, "admin", tables.PermissionAdmin)
	items := product(t, env, "drill", 1)
	future := loan(t, env, "admin", items[0], day(1), day(2))
	started := loan(t, env, "alice", items[0], day(-1), day(1))
	s := NewService()

	// Someone else's loan looks like no loan at all.
	resp := env.Call(t, s.Delete, alice, fmt.Sprintf(`{"loanId": %d}`, future.ID()))
	assert.Equal(t, api.ReasonNoSuchLoan, resp.ReasonString())

	resp = env.Call(t, s.Delete, alice, fmt.Sprintf(`{"loanId": %d}`, started.ID()))
	assert.Equal(t, api.ReasonLoanAlreadyStarted, resp.ReasonString())

	resp = env.Call(t, s.Delete, admin, fmt.Sprintf(`{"loanId": %d}`, future.ID()))
	require.True(t, resp.Success(), resp.Message)
	assert.Nil(t, reload(t, env, future.ID()))

	assert.Equal(t, api.ReasonInvalidArguments, env.Call(t, s.Delete, admin, `{"loanId": "one"}`).ReasonString())
}

func TestResizeLoan(t *testing.T) {
	env := coretest.New(t)
	alice := env.User(t, "alice", tables.PermissionUser)
	items := product(t, env, "drill", 2)
	s := NewService()

	resize := func(l *tables.LoanItem, start, end time.Time) *api.Response {
		return env.Call(t, s.Resize, alice, fmt.Sprintf(`{"loanId": %d, "start": %q, "end": %q}`, l.ID(), stamp(start), stamp(end)))
	}

	t.Run("free", func(t *testing.T) {
		l := loan(t, env, "alice", items[0], day(1), day(2))
		resp := resize(l, day(1), day(3))
		require.True(t, resp.Success(), resp.Message)
		assert.True(t, day(3).Equal(reload(t, env, l.ID()).End()))
	})

	t.Run("reassigned", func(t *testing.T) {
		loan(t, env, "bob", items[0], day(5), day(6))
		l := loan(t, env, "alice", items[0], day(6), day(7))
		resp := resize(l, day(5), day(7))
		require.True(t, resp.Success(), resp.Message)
		assert.Equal(t, "Loan has been reassigned.", resp.Message)
		assert.Equal(t, map[string]any{"product_item": float64(items[1])}, coretest.Data(t, resp))
		assert.Equal(t, items[1], reload(t, env, l.ID()).ProductItemID())
	})

	t.Run("acquired item stays", func(t *testing.T) {
		loan(t, env, "bob", items[0], day(10), day(11))
		l := loan(t, env, "alice", items[0], day(11), day(12))
		require.NoError(t, l.SetAcquired(true))
		_, err := env.Conn.Update(context.Background(), l)
		require.NoError(t, err)

		resp := resize(l, day(10), day(12))
		assert.Equal(t, api.ReasonLoanResizeFailed, resp.ReasonString())
		require.NotNil(t, resp.Amount)
		assert.Equal(t, 1, *resp.Amount)
		assert.True(t, day(11).Equal(reload(t, env, l.ID()).Start()))
	})

	t.Run("nothing free", func(t *testing.T) {
		loan(t, env, "bob", items[0], day(15), day(16))
		loan(t, env, "bob", items[1], day(15), day(16))
		l := loan(t, env, "alice", items[0], day(16), day(17))
		resp := resize(l, day(15), day(17))
		assert.Equal(t, api.ReasonLoanResizeFailed, resp.ReasonString())
	})

	t.Run("started", func(t *testing.T) {
		l := loan(t, env, "alice", items[1], day(-1), day(1))
		assert.Equal(t, api.ReasonLoanAlreadyStarted, resize(l, day(0), day(2)).ReasonString())
	})

	t.Run("ended", func(t *testing.T) {
		l := loan(t, env, "alice", items[1], day(-3), day(-2))
		resp := resize(l, day(1), day(2))
		assert.Equal(t, api.ReasonLoanResizeFailed, resp.ReasonString())
		assert.Nil(t, resp.Amount)
	})
}

func TestSetLoanAcquired(t *testing.T) {
	env := coretest.New(t)
	staff := env.User(t, "staff", tables.PermissionCollaborator)
	items := product(t, env, "drill", 1)
	l := loan(t, env, "alice", items[0], day(1), day(2))
	s := NewService()

	resp := env.Call(t, s.SetAcquired, staff, fmt.Sprintf(`{"loanId": %d, "value": true}`, l.ID()))
	require.True(t, resp.Success(), resp.Message)
	assert.True(t, reload(t, env, l.ID()).IsAcquired())

	assert.Equal(t, api.ReasonNoSuchLoan, env.Call(t, s.SetAcquired, staff, `{"loanId": 99, "value": true}`).ReasonString())
	assert.Equal(t, api.ReasonMissingArguments, env.Call(t, s.SetAcquired, staff, `{"loanId": 1}`).ReasonString())
	assert.Equal(t, api.ReasonInvalidArguments, env.Call(t, s.SetAcquired, staff, `{"loanId": 1, "value": "yes"}`).ReasonString())
}

func TestUnavailableDates(t *testing.T) {
	env := coretest.New(t)
	alice := env.User(t, "alice", tables.PermissionUser)
	items := product(t, env, "drill", 2)
	product(t, env, "empty", 0)
	loan(t, env, "alice", items[0], day(1).Add(10*time.Hour), day(2).Add(10*time.Hour))
	loan(t, env, "bob", items[1], day(2), day(3))
	s := NewService()

	resp := env.Call(t, s.UnavailableDates, alice, fmt.Sprintf(`{"productId": "drill", "start": %q, "end": %q}`, stamp(day(0)), stamp(day(4))))
	require.True(t, resp.Success(), resp.Message)
	assert.Equal(t, []any{float64(day(2).UnixMilli())}, coretest.Data(t, resp))

	resp = env.Call(t, s.UnavailableDates, alice, fmt.Sprintf(`{"productId": "empty", "start": %q, "end": %q}`, stamp(day(0)), stamp(day(4))))
	assert.Equal(t, []any{}, coretest.Data(t, resp))

	resp = env.Call(t, s.UnavailableDates, alice, fmt.Sprintf(`{"productId": "drill", "start": %q, "end": %q}`, stamp(day(0)), stamp(day(200))))
	assert.Equal(t, api.ReasonInvalidArguments, resp.ReasonString())
}

func TestAvailability(t *testing.T) {
	env := coretest.New(t)
	staff := env.User(t, "staff", tables.PermissionCollaborator)
	drills := product(t, env, "drill", 3)
	product(t, env, "saw", 2)
	s := NewService()

	loan(t, env, "alice", drills[0], day(2), day(4))
	out := loan(t, env, "bob", drills[1], day(0), day(3))
	require.NoError(t, out.SetAcquired(true))
	_, err := env.Conn.Update(context.Background(), out)
	require.NoError(t, err)
	// Ended loans no longer count.
	old := loan(t, env, "bob", drills[2], day(-5), day(-3))
	require.NoError(t, old.SetAcquired(true))
	_, err = env.Conn.Update(context.Background(), old)
	require.NoError(t, err)

	resp := env.Call(t, s.Availability, staff, `{"products": ["drill", "saw", "hammer"]}`)
	require.True(t, resp.Success(), resp.Message)
	assert.Equal(t, map[string]any{
		"drill":  map[string]any{"total": 3.0, "reservations": 2.0, "loanedOut": 1.0, "inStock": 2.0},
		"saw":    map[string]any{"total": 2.0, "reservations": 0.0, "loanedOut": 0.0, "inStock": 2.0},
		"hammer": map[string]any{"total": 0.0, "reservations": 0.0, "loanedOut": 0.0, "inStock": 0.0},
	}, coretest.Data(t, resp))

	resp = env.Call(t, s.Availability, staff, `{"products": "saw"}`)
	require.True(t, resp.Success(), resp.Message)
	assert.Equal(t, map[string]any{
		"saw": map[string]any{"total": 2.0, "reservations": 0.0, "loanedOut": 0.0, "inStock": 2.0},
	}, coretest.Data(t, resp))

	assert.Equal(t, api.ReasonMissingArguments, env.Call(t, s.Availability, staff, `{}`).ReasonString())
	assert.Equal(t, api.ReasonMissingArguments, env.Call(t, s.Availability, staff, `{"products": [1, 2]}`).ReasonString())
}

func TestAvailabilityNeedsCollaborator(t *testing.T) {
	r := dispatch.NewRegistry()
	NewService().Register(r)
	req, ok := r.Requirements("getProductAvailability")
	require.True(t, ok)
	assert.Equal(t, dispatch.Requirements{MinPermission: tables.PermissionCollaborator}, req)
}
