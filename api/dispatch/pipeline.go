package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-logr/logr"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/config"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/tables"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/logging"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/types/api"
)

// MaxBodySize caps request bodies; image uploads are the largest.
const MaxBodySize = 32 << 20

// Stage is how far a request got through the pipeline.
type Stage int

const (
	StageReceived Stage = iota
	StageContentTypeChecked
	StageBodyChecked
	StageDbChecked
	StageRouted
	StageAuthenticated
	StageAuthorized
	StageInvoked
	StageResponded
)

var stageNames = [...]string{
	"Received", "ContentTypeChecked", "BodyChecked", "DbChecked", "Routed",
	"Authenticated", "Authorized", "Invoked", "Responded",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Pipeline turns one job into one response: transport checks, database
// check, routing, authentication, authorization and the handler call.
type Pipeline struct {
	registry *Registry
	cfg      *config.Config
	// Now is the clock used for token ages.
	Now func() time.Time
}

func NewPipeline(registry *Registry, cfg *config.Config) *Pipeline {
	return &Pipeline{registry: registry, cfg: cfg, Now: time.Now}
}

// exchange tracks one job while it moves through the stages.
type exchange struct {
	job   *Job
	conn  *db.Conn
	log   logr.Logger
	stage Stage
}

func (x *exchange) advance(s Stage) {
	x.stage = s
	x.log.V(logging.DEBUG).Info("Request stage", "stage", s)
}

func (x *exchange) respond(resp *api.Response, status int) {
	if !x.job.markResponded() {
		return
	}
	resp.SendJSON(x.job.W, status)
	x.advance(StageResponded)
}

// Process answers job on conn. Panics in any stage are recovered and answered
// with ServerError so the calling worker survives.
func (p *Pipeline) Process(conn *db.Conn, job *Job, log logr.Logger) {
	x := &exchange{job: job, conn: conn, log: log.WithValues("requestId", job.ID)}
	completed := false
	defer func() {
		if r := recover(); r != nil {
			x.log.Error(fmt.Errorf("panic: %v", r), "Request handler panicked", "stage", x.stage)
			x.respond(api.ServerError(fmt.Sprint(r)), http.StatusOK)
		} else if !completed {
			// The goroutine is exiting without returning normally.
			x.respond(api.ServerError("worker terminated"), http.StatusOK)
		}
		job.finish()
	}()

	p.process(x)
	completed = true
}

func (p *Pipeline) process(x *exchange) {
	r := x.job.R
	if r.Context().Err() != nil {
		x.log.V(logging.VERBOSE).Info("Skipping request, client went away")
		return
	}
	x.advance(StageReceived)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		x.respond(api.MalformedRequest("Content-Type must be application/json"), http.StatusUnsupportedMediaType)
		return
	}
	x.advance(StageContentTypeChecked)

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize))
	if err != nil {
		x.respond(api.MalformedRequest("Unreadable body"), http.StatusBadRequest)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		x.respond(api.MalformedRequest("Empty body data"), http.StatusBadRequest)
		return
	}
	x.advance(StageBodyChecked)

	ctx, cancel := context.WithTimeout(r.Context(), p.cfg.PerformanceSettings.Timeout())
	defer cancel()

	if !p.checkConn(ctx, x) {
		x.respond(api.ServerError(api.DatabaseConnectionError), http.StatusInternalServerError)
		return
	}
	x.advance(StageDbChecked)

	resp := p.dispatch(ctx, x, body)
	x.respond(resp, http.StatusOK)
}

// checkConn pings the worker's connection and reconnects once on failure.
func (p *Pipeline) checkConn(ctx context.Context, x *exchange) bool {
	if _, err := x.conn.Ping(ctx); err == nil {
		return true
	}
	x.log.Info("Database connection lost, reconnecting", "conn", x.conn.Name())
	if err := x.conn.Reconnect(ctx); err == nil {
		if _, err := x.conn.Ping(ctx); err == nil {
			return true
		}
	}
	x.conn.MarkBroken()
	x.log.Error(nil, "Database connection unavailable", "conn", x.conn.Name())
	return false
}

// dispatch runs routing, auth and the handler and returns the response to send.
func (p *Pipeline) dispatch(ctx context.Context, x *exchange, body []byte) *api.Response {
	obj, err := api.ParseArgs(body)
	if err != nil {
		return api.MalformedRequest(err.Error())
	}
	requestType, ok := obj.String("requestType")
	if !ok || requestType == "" {
		return api.MalformedRequest("Missing requestType")
	}
	x.log = x.log.WithValues("requestType", requestType)

	e, ok := p.registry.lookup(requestType)
	if !ok {
		return api.InvalidRequestType(requestType)
	}
	x.advance(StageRouted)

	// Arguments and credentials may be nested under requestData.
	args := obj
	if data, ok := obj.Object("requestData"); ok {
		args = data
	}

	now := p.Now()
	req := &Request{
		ctx:    ctx,
		ID:     x.job.ID,
		Type:   requestType,
		Conn:   x.conn,
		Args:   args,
		Body:   obj,
		Config: p.cfg,
		Log:    x.log,
		Now:    now,
	}

	if !e.req.SkipAuth {
		user, resp, err := p.authenticate(ctx, x.conn, obj, args, now)
		if err != nil {
			x.log.Error(err, "Authentication failed")
			return api.ServerError(err.Error())
		}
		if resp != nil {
			return resp
		}
		x.advance(StageAuthenticated)
		if user.Permission() < e.req.MinPermission {
			return api.AccessDenied()
		}
		x.advance(StageAuthorized)
		req.User = user
		req.Log = x.log.WithValues("user", user.Username())
	}

	resp, err := e.handler(req)
	x.advance(StageInvoked)
	if err != nil {
		x.log.Error(err, "Request handler failed")
		return api.ServerError(err.Error())
	}
	if resp == nil {
		resp = api.OK(nil)
	}
	return resp
}

// authenticate resolves the caller. A non-nil response means the request is
// rejected.
func (p *Pipeline) authenticate(ctx context.Context, conn *db.Conn, body, args api.Args, now time.Time) (*tables.User, *api.Response, error) {
	src := body
	if !body.Has("username") && !body.Has("token") {
		src = args
	}
	username, okName := src.String("username")
	token, okToken := src.Int("token")
	if !okName || !okToken {
		return nil, api.MissingArguments("username", "token"), nil
	}

	user, err := db.Related[tables.User](ctx, conn, username)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, api.InvalidLogin(), nil
	}

	age := now.Unix() - token
	if token != user.Token() || age > p.cfg.AuthenticationSettings.Expiration {
		return nil, api.ExpiredToken(), nil
	}
	return user, nil, nil
}
