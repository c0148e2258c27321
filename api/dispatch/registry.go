package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/config"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/tables"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/types/api"
)

// Request is what a handler gets to work with.
type Request struct {
	ctx context.Context

	ID   string
	Type string
	// Conn is the calling worker's pinned connection.
	Conn *db.Conn
	// User is the authenticated caller, nil for handlers that skip auth.
	User *tables.User
	// Args are the handler arguments: the requestData object when the body
	// has one, otherwise the whole body.
	Args api.Args
	// Body is the complete request object.
	Body   api.Args
	Config *config.Config
	Log    logr.Logger
	Now    time.Time
}

// NewRequest builds a request outside the pipeline, as the console and tests
// do. user may be nil.
func NewRequest(ctx context.Context, requestType string, conn *db.Conn, cfg *config.Config, user *tables.User, args api.Args, log logr.Logger) *Request {
	if args == nil {
		args = api.Args{}
	}
	return &Request{
		ctx:    ctx,
		ID:     uuid.NewString(),
		Type:   requestType,
		Conn:   conn,
		User:   user,
		Args:   args,
		Body:   args,
		Config: cfg,
		Log:    log,
		Now:    time.Now(),
	}
}

// Context is cancelled when the client goes away or the request times out.
func (r *Request) Context() context.Context { return r.ctx }

// HandlerFunc answers one request type. A returned error becomes a
// ServerError response.
type HandlerFunc func(req *Request) (*api.Response, error)

// Requirements are the access rules declared for a request type.
type Requirements struct {
	SkipAuth      bool
	MinPermission tables.Permission
}

type entry struct {
	name    string
	handler HandlerFunc
	req     Requirements
}

// Registry maps request types to handlers. It is filled at startup and then
// frozen.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]entry
	frozen   bool
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]entry)}
}

// Register adds a handler. It panics on duplicates or after Freeze.
func (r *Registry) Register(name string, h HandlerFunc, req Requirements) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic(fmt.Sprintf("dispatch: register %q after freeze", name))
	}
	if name == "" || h == nil {
		panic("dispatch: register needs a name and a handler")
	}
	if _, dup := r.handlers[name]; dup {
		panic(fmt.Sprintf("dispatch: duplicate request type %q", name))
	}
	r.handlers[name] = entry{name: name, handler: h, req: req}
}

// Freeze forbids further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

func (r *Registry) lookup(name string) (entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.handlers[name]
	return e, ok
}

// Requirements returns the access rules declared for name.
func (r *Registry) Requirements(name string) (Requirements, bool) {
	e, ok := r.lookup(name)
	return e.req, ok
}

// Names returns the registered request types in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
