// Package console reads operator commands from a terminal while the server
// runs.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/go-logr/logr"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/api/routes/server"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/core/auth"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/logging"
)

var errExit = errors.New("exit")

type grammar struct {
	Status statusCmd `cmd:"" help:"Show the state of every worker."`
	Ping   pingCmd   `cmd:"" help:"Ping every database connection."`
	Revive reviveCmd `cmd:"" aliases:"reviveThreads" help:"Replace dead workers."`
	Logout logoutCmd `cmd:"" help:"Invalidate the token of a user."`
	Exit   exitCmd   `cmd:"" aliases:"quit,stop" help:"Stop the server."`
}

// Console runs commands against the worker pool and the database.
type Console struct {
	ops server.Operator
	src db.Source
	out io.Writer
	log logr.Logger
}

func New(ops server.Operator, src db.Source, out io.Writer, log logr.Logger) *Console {
	return &Console{ops: ops, src: src, out: out, log: log}
}

// Run executes one command per line of in until exit, end of input or ctx
// being done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := c.Exec(ctx, line); errors.Is(err, errExit) {
				return nil
			}
		}
	}
}

// Exec runs a single command line. Parse and command errors are printed; only
// the exit command is returned as an error.
func (c *Console) Exec(ctx context.Context, line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	var g grammar
	parser, err := kong.New(&g,
		kong.Name("console"),
		kong.Writers(c.out, c.out),
		kong.Exit(func(int) {}),
		kong.Bind(c),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintln(c.out, err)
		return nil
	}
	c.log.V(logging.VERBOSE).Info("Console command", "command", kctx.Command())
	if err := kctx.Run(); err != nil {
		if errors.Is(err, errExit) {
			return err
		}
		fmt.Fprintln(c.out, "error:", err)
	}
	return nil
}

type statusCmd struct{}

func (statusCmd) Run(c *Console) error {
	workers := c.ops.Status()
	fmt.Fprintf(c.out, "healthy=%v queued=%d alive=%d/%d\n",
		c.ops.Healthy(), c.ops.QueueLen(), c.ops.Alive(), len(workers))
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATE\tALIVE\tPROCESSED\tCONN")
	for _, w := range workers {
		fmt.Fprintf(tw, "%s\t%s\t%v\t%d\t%s\n", w.Name, w.State, w.Alive, w.Processed, w.Conn)
	}
	return tw.Flush()
}

type pingCmd struct {
	Count int `arg:"" optional:"" default:"1" help:"Pings per connection."`
}

func (p *pingCmd) Run(ctx context.Context, c *Console) error {
	if p.Count < 1 || p.Count > server.MaxPings {
		return fmt.Errorf("count must be a number from 1 to %d", server.MaxPings)
	}
	for _, rep := range server.PingAll(ctx, c.ops, p.Count) {
		fmt.Fprintf(c.out, "%s: %.2f ms average over %d pings\n", rep.Name, rep.Average, len(rep.RTTs))
		for _, e := range rep.Errors {
			fmt.Fprintf(c.out, "  %s\n", e)
		}
	}
	return nil
}

type reviveCmd struct{}

func (reviveCmd) Run(ctx context.Context, c *Console) error {
	restarted, attempted := c.ops.Revive(ctx)
	fmt.Fprintf(c.out, "Restarted %d of %d dead workers\n", restarted, attempted)
	return nil
}

type logoutCmd struct {
	Username string `arg:"" help:"Account to log out."`
}

func (l *logoutCmd) Run(ctx context.Context, c *Console) error {
	ok, err := auth.LogoutUser(ctx, c.src, l.Username)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(c.out, "No such user: %s\n", l.Username)
		return nil
	}
	c.log.Info("User logged out from console", "username", l.Username)
	fmt.Fprintf(c.out, "Logged out %s\n", l.Username)
	return nil
}

type exitCmd struct{}

func (exitCmd) Run() error { return errExit }
