package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"greening/internal/api"
	"greening/internal/auth"
	"greening/internal/blob"
	"greening/internal/config"
	"greening/internal/dsl"
	"greening/internal/logger"
	"greening/internal/pg"
	"greening/internal/reference"
)

func main() {
	app := &cli.App{
		Name:  "greening",
		Usage: "greening program administration API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "greening.yaml", Usage: "YAML config file", EnvVars: []string{"GREENING_CONFIG"}},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "port", Usage: "override listen port"}},
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "create missing tables and seed settings, site sections and the admin user",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "reset", Usage: "DROP all tables first (data is lost)"},
				},
				Action: migrate,
			},
			{
				Name:  "create-user",
				Usage: "create a user or reset its password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
				},
				Action: createUser,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

// env: то, что нужно всем командам.
type env struct {
	cfg      *config.Config
	entities map[string]*dsl.Entity
	sections reference.Catalog
	store    *pg.Store
}

func (e *env) Close() {
	if e.store != nil {
		_ = e.store.DB.Close()
	}
}

func load(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if port := c.String("port"); port != "" {
		cfg.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger.SetDebug(cfg.IsDevelopment())

	entities, err := dsl.LoadAllEntities(cfg.DSLDir)
	if err != nil {
		return nil, fmt.Errorf("DSL: %w", err)
	}
	logger.Info("loaded %d entities from %s", len(entities), cfg.DSLDir)

	sections, err := reference.LoadCatalog(cfg.SectionsFile)
	if err != nil {
		return nil, fmt.Errorf("sections: %w", err)
	}
	if issues := api.NewStorage(entities, sections).SchemaLint(); len(issues) > 0 {
		msgs := make([]string, 0, len(issues))
		for _, i := range issues {
			msgs = append(msgs, i.String())
		}
		return nil, errors.New("DSL lint:\n  " + strings.Join(msgs, "\n  "))
	}

	db, err := pg.Open(c.Context, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	return &env{cfg: cfg, entities: entities, sections: sections, store: pg.New(db)}, nil
}

func (e *env) seed() (pg.Seed, error) {
	s := pg.Seed{Sections: e.sections, AdminUsername: e.cfg.AdminUsername}
	if e.cfg.AdminPassword != "" {
		hash, err := auth.HashPassword(e.cfg.AdminPassword)
		if err != nil {
			return s, err
		}
		s.AdminHash = hash
	}
	return s, nil
}

func serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := load(c)
	if err != nil {
		return err
	}
	defer e.Close()

	if e.cfg.AutoMigrate {
		seed, err := e.seed()
		if err != nil {
			return err
		}
		if err := e.store.Migrate(ctx, e.entities, seed); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	store, err := blob.New(ctx, e.cfg)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}
	defer store.Close()

	storage := api.NewStorage(e.entities, e.sections)
	storage.UsePG(e.store)
	storage.Blob = store
	storage.Tokens = auth.NewTokens(e.cfg.JWTSecret, e.cfg.TokenTTL())
	storage.Cfg = e.cfg

	if !e.cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	return api.RunServer(ctx, ":"+e.cfg.Port, api.NewRouter(storage))
}

func migrate(c *cli.Context) error {
	e, err := load(c)
	if err != nil {
		return err
	}
	defer e.Close()

	seed, err := e.seed()
	if err != nil {
		return err
	}
	if c.Bool("reset") {
		return e.store.Reset(c.Context, e.entities, seed)
	}
	return e.store.Migrate(c.Context, e.entities, seed)
}

func createUser(c *cli.Context) error {
	e, err := load(c)
	if err != nil {
		return err
	}
	defer e.Close()

	hash, err := auth.HashPassword(c.String("password"))
	if err != nil {
		return err
	}
	if err := e.store.UpsertUser(c.Context, c.String("username"), hash); err != nil {
		return err
	}
	logger.Info("user %s saved", c.String("username"))
	return nil
}
