// seed loads the static YAML tables into Postgres so a fresh database
// serves a playable world. Item templates upsert on every run; world
// rows are only written when their tables are empty, so live state
// survives re-runs.
//
// Usage:
//
//	go run ./cmd/seed [-config config.toml] [-data <dir>] [-tick <seconds>]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/config"
	"github.com/fortrealm/server/internal/data"
	"github.com/fortrealm/server/internal/persist"
)

func main() {
	cfgPath := flag.String("config", "config.toml", "server config file")
	dataDir := flag.String("data", "", "data directory (default: game.data_dir from config)")
	tick := flag.Int("tick", 0, "retune real seconds per ingame hour (0 = leave as is)")
	flag.Parse()

	if err := run(*cfgPath, *dataDir, *tick); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath, dataDir string, tick int) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if dataDir == "" {
		dataDir = cfg.Game.DataDir
	}

	items, err := data.LoadItemTable(filepath.Join(dataDir, "items.yaml"))
	if err != nil {
		return err
	}
	if _, err := data.LoadLevelTable(filepath.Join(dataDir, "levels.yaml")); err != nil {
		return err
	}
	world, err := data.LoadWorldTable(filepath.Join(dataDir, "world.yaml"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, zap.NewNop())
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		return err
	}
	fmt.Println("migrations applied")

	repos := persist.NewRepos(db)
	rep, err := persist.Seed(ctx, repos, items, world)
	if err != nil {
		return err
	}
	fmt.Printf("upserted %d item templates\n", rep.Items)
	fmt.Printf("seeded %d territories, %d superbosses, %d collectables\n",
		rep.Territories, rep.Superbosses, rep.Collectables)

	if tick > 0 {
		if err := repos.Time.SetTickSeconds(ctx, tick); err != nil {
			return fmt.Errorf("set tick seconds: %w", err)
		}
		fmt.Printf("ingame hour retuned to %d real seconds\n", tick)
	}
	return nil
}
