// seed imports template_list.yaml into the database.
//
// Usage:
//
//	go run ./cmd/seed [-config config/server.toml] [-in data/yaml/template_list.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/orbitcore/server/internal/config"
	"github.com/orbitcore/server/internal/data"
	"github.com/orbitcore/server/internal/persist"
	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", "config/server.toml", "server config")
	in := flag.String("in", "data/yaml/template_list.yaml", "template list")
	flag.Parse()

	if err := run(*cfgPath, *in); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath, in string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	set, err := data.LoadTemplateSet(in)
	if err != nil {
		return err
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := persist.Open(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	if err := persist.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	if err := seed(ctx, db, set); err != nil {
		return err
	}
	fmt.Printf("Imported %d mobs, %d ores and %d map mobs into %s\n",
		len(set.Mobs), len(set.Ores), set.MapMobCount(), db.Driver())
	return nil
}

// seed upserts the whole set in one transaction.
func seed(ctx context.Context, db persist.Executor, set *data.TemplateSet) error {
	return db.InTx(ctx, func(tx persist.Executor) error {
		repo := persist.NewTemplateRepo(tx)
		for _, m := range set.Mobs {
			if err := repo.SaveMobTemplate(ctx, m); err != nil {
				return fmt.Errorf("mob %d: %w", m.ID, err)
			}
		}
		for _, o := range set.Ores {
			if err := repo.SaveOreTemplate(ctx, o); err != nil {
				return fmt.Errorf("ore %d: %w", o.ID, err)
			}
		}
		for mapID, list := range set.MapMobs {
			for _, mm := range list {
				if err := repo.SaveMapMob(ctx, mapID, mm); err != nil {
					return fmt.Errorf("map %d mob %d: %w", mapID, mm.MobID, err)
				}
			}
		}
		return nil
	})
}
