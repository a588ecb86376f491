package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/orbitcore/server/internal/config"
	"github.com/orbitcore/server/internal/core/ident"
	coresys "github.com/orbitcore/server/internal/core/system"
	"github.com/orbitcore/server/internal/data"
	"github.com/orbitcore/server/internal/net/packet"
	"github.com/orbitcore/server/internal/persist"
	"github.com/orbitcore/server/internal/scripting"
	"github.com/orbitcore/server/internal/system"
	"github.com/orbitcore/server/internal/world"
	"github.com/orbitcore/server/internal/zone"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("ORBITCORE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	// 3. Connect to the database and run migrations
	printSection("database")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.Open(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK(fmt.Sprintf("%s connected", db.Driver()))

	if err := persist.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK("migrations applied")
	fmt.Println()

	templateRepo := persist.NewTemplateRepo(db)
	playerRepo := persist.NewPlayerRepo(db)

	// 4. Load templates and static tables
	printSection("data")

	mobs, err := templateRepo.MobTemplates(ctx)
	if err != nil {
		return err
	}
	ores, err := templateRepo.OreTemplates(ctx)
	if err != nil {
		return err
	}
	catalog := world.NewCatalog(mobs, ores)
	printStat("mob templates", humanize.Comma(int64(catalog.MobCount())))
	printStat("ore templates", humanize.Comma(int64(catalog.OreCount())))

	mapTable, err := data.LoadMapTable(cfg.Data.MapList)
	if err != nil {
		return fmt.Errorf("load map table: %w", err)
	}
	printStat("maps", humanize.Comma(int64(mapTable.Count())))

	constTable, err := data.LoadConstantTable(cfg.Data.ConstantList)
	if err != nil {
		return fmt.Errorf("load constant table: %w", err)
	}
	if err := constTable.Validate(mapTable); err != nil {
		return fmt.Errorf("constant table: %w", err)
	}
	printStat("portals and stations", humanize.Comma(int64(constTable.Count())))

	// 5. Lua engine
	luaEngine, err := scripting.NewEngine(cfg.Data.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer luaEngine.Close()
	printOK("lua scripts loaded")

	codec, err := packet.NewCodec(cfg.Client.Charset)
	if err != nil {
		return fmt.Errorf("client charset: %w", err)
	}
	fmt.Println()

	// 6. Build the universe
	printSection("world")

	zm := zone.NewManager(zone.Options{
		Workers:        cfg.World.WorkerThreads,
		Interval:       cfg.World.ZoneInterval,
		Multithreading: cfg.World.Multithreading,
		OverrunWarn:    cfg.World.OverrunWarnInterval,
	}, log)

	env := &world.Env{
		Settings:  worldSettings(cfg),
		Log:       log,
		Codec:     codec,
		IDs:       ident.NewGenerator(0),
		Clock:     time.Now,
		Catalog:   catalog,
		Templates: templateRepo,
		Script:    luaEngine,
		Players:   playerRepo,
		Maps:      zm,
	}

	constants := 0
	for _, info := range mapTable.All() {
		spec, err := info.Spec()
		if err != nil {
			return err
		}
		m := world.NewMap(env, spec)
		constants += constTable.Place(m, env.IDs)
		if err := zm.RegisterMap(m); err != nil {
			return err
		}
	}
	printStat("constant objects", humanize.Comma(int64(constants)))

	seedStart := time.Now()
	if err := zm.LoadPools(ctx); err != nil {
		return fmt.Errorf("seed pools: %w", err)
	}
	var nMobs, nOres, nBoxes int
	for _, m := range zm.Maps() {
		a, b, c := m.Pools().Counts()
		nMobs += a
		nOres += b
		nBoxes += c
	}
	printStat("mobs", humanize.Comma(int64(nMobs)))
	printStat("ores", humanize.Comma(int64(nOres)))
	printStat("bonus boxes", humanize.Comma(int64(nBoxes)))
	printStat("seeded in", time.Since(seedStart).Round(time.Millisecond).String())

	zones := zm.Partition()
	printStat("zones", humanize.Comma(int64(len(zones))))

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	printStat("heap", humanize.Bytes(mem.HeapAlloc))
	fmt.Println()

	// 7. Systems
	runner := coresys.NewRunner()
	worldSys := system.NewWorldSystem(zm)
	persistSys := system.NewPersistenceSystem(zm, playerRepo, cfg.World.SaveInterval, cfg.Database.QueryTimeout, log)
	runner.Register(worldSys)
	runner.Register(persistSys)

	// 8. Start the tick loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.World.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("tick loop started (tick: %s, zones every %s)", cfg.World.TickRate, cfg.World.ZoneInterval))
	fmt.Println()

	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			runner.Tick(now.Sub(last))
			last = now
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			zm.Shutdown()
			persistSys.SaveAllPlayers()
			log.Info("server stopped",
				zap.Uint64("ticks", zm.Ticks()),
				zap.String("issued_ids", humanize.Comma(int64(env.IDs.Issued()))),
			)
			return nil
		}
	}
}

func worldSettings(cfg *config.Config) world.Settings {
	s := world.DefaultSettings()
	w := cfg.World
	s.GridCells = w.GridCells
	s.ScanRadius = w.ScanRadius
	s.DespawnGrace = w.DespawnGrace
	s.JumpDelay = w.JumpDelay
	s.LivenessCheckInterval = w.LivenessCheckInterval
	s.BonusBoxOwnerGrace = w.BonusBoxOwnerGrace
	s.MobRoamRadius = w.MobRoamRadius
	s.MobRoamInterval = w.MobRoamInterval
	s.QueryTimeout = cfg.Database.QueryTimeout
	return s
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
