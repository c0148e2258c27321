package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/go-logr/logr"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/api"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/api/dispatch"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/config"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/console"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/seed"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/logging"
)

var cli struct {
	Config string `short:"c" default:"config.json" help:"Path to the configuration file." type:"path"`

	Serve  serveCmd  `cmd:"" default:"withargs" help:"Run the API server."`
	InitDB initDBCmd `cmd:"" name:"init-db" help:"Create the tables and the default rows."`
}

type serveCmd struct {
	Console bool `default:"true" negatable:"" help:"Read operator commands from stdin."`
}

type initDBCmd struct {
	AdminUsername string `default:"admin" help:"Name of the administrator account."`
	AdminPassword string `required:"" env:"API_ADMIN_PASSWORD" help:"Password of the administrator account."`
}

func (s *serveCmd) Run(cfg *config.Config, log logr.Logger) error {
	var run api.Console
	if s.Console {
		run = func(ctx context.Context, pool *dispatch.Pool, src db.Source) error {
			return console.New(pool, src, os.Stdout, log.WithName("console")).Run(ctx, os.Stdin)
		}
	}
	return api.StartServer(cfg, log, run)
}

func (c *initDBCmd) Run(cfg *config.Config, log logr.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DatabaseSettings.Timeout())
	defer cancel()
	database, err := db.NewDB(ctx, db.Options{
		Driver: cfg.DatabaseSettings.Driver,
		DSN:    cfg.DatabaseSettings.DSN,
		Logger: log.WithName("db"),
	})
	if err != nil {
		return err
	}
	defer database.Close()
	_, err = seed.InitDB(ctx, database, seed.Options{
		AdminUsername: c.AdminUsername,
		AdminPassword: c.AdminPassword,
	}, log)
	return err
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("api"),
		kong.Description("Loan administration API server"),
		kong.UsageOnError(),
	)

	// Logs written before the configuration is read only go to stdout.
	boot, err := logging.New(logging.Options{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load(cli.Config, boot.Logger)
	if err != nil {
		logging.Fatal(boot.Logger, err, "Failed to load configuration", "path", cli.Config)
	}
	boot.Close()

	logger, err := logging.New(logging.Options{
		OutputDir: cfg.LogSettings.OutputDir,
		Level:     cfg.LogSettings.LogLevel,
		Format:    cfg.LogSettings.Format,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Close()

	kctx.Bind(cfg, logger.Logger)
	if err := kctx.Run(); err != nil {
		logging.Fatal(logger.Logger, err, "Command failed", "command", kctx.Command())
	}
}
