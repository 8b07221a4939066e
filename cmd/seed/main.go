// Command seed fills the configured store with a roster, read from a YAML
// file or generated at random.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/okian/lootrota/internal/adapters/repository"
	app "github.com/okian/lootrota/internal/app"
	"github.com/okian/lootrota/internal/config"
	"github.com/okian/lootrota/internal/seed"
	"github.com/okian/lootrota/pkg/logger"
)

const (
	defaultPlayers = 30
	defaultItems   = 8
	seedTimeout    = time.Minute
)

func main() {
	var (
		file    = flag.String("file", "", "YAML roster to load (default: generate one)")
		players = flag.Int("players", defaultPlayers, "Number of players to generate")
		items   = flag.Int("items", defaultItems, "Number of items to generate")
		dbPath  = flag.String("db", "", "SQLite file (default: db_path from config)")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		os.Stderr.WriteString("failed to read .env: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get().Named("seed")

	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Error(ctx, "failed to load config", logger.Error(err))
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if cfg.DBPath == "" {
		log.Error(ctx, "nothing to seed: set -db or LOOTROTA_DB_PATH")
		os.Exit(1)
	}

	var ro seed.Roster
	if *file != "" {
		ro, err = seed.LoadFile(*file)
		if err != nil {
			log.Error(ctx, "failed to read roster", logger.String("file", *file), logger.Error(err))
			os.Exit(1)
		}
	} else {
		ro = seed.Generate(*players, *items)
	}

	store, err := repository.OpenSQLite(ctx, cfg.DBPath)
	if err != nil {
		log.Error(ctx, "failed to open store", logger.String("path", cfg.DBPath), logger.Error(err))
		os.Exit(1)
	}
	svc := app.New(app.WithStore(store), app.WithLogger(log))
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		os.Exit(1)
	}

	res, err := seed.Apply(ctx, svc, ro)
	svc.Stop()
	if err != nil {
		log.Error(ctx, "seed failed", logger.Int("players", res.Players), logger.Int("items", res.Items), logger.Error(err))
		os.Exit(1)
	}
}
