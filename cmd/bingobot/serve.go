package main

import (
	"fmt"
	"os"
	"time"

	rand "math/rand/v2"

	"github.com/coder/quartz"

	"github.com/lox/bingobot/cmd/bingobot/shared"
	"github.com/lox/bingobot/internal/game"
	"github.com/lox/bingobot/internal/randutil"
	"github.com/lox/bingobot/internal/server"
	"github.com/lox/bingobot/internal/store"
)

// ServeCmd runs the game server.
type ServeCmd struct {
	Config   string `short:"c" default:"bingobot.hcl" help:"Path to HCL configuration file"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	Snapshot string `help:"Snapshot file path (overrides config)"`
	Seed     *int64 `help:"Deterministic RNG seed (optional)"`
}

func (c *ServeCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.Snapshot != "" {
		cfg.Server.SnapshotFile = c.Snapshot
	}

	logger := shared.NewLogger(os.Stderr, cfg.Server.LogLevel)

	var rng *rand.Rand
	var seed int64
	if c.Seed != nil {
		seed = *c.Seed
		rng = randutil.New(seed)
	} else {
		rng, seed = randutil.NewFromTime()
	}
	logger.Info("Seeded number caller", "seed", seed)

	if len(cfg.Admins) == 0 {
		logger.Warn("No admins configured, game management actions will be rejected")
	}

	admins := make([]game.PlayerID, 0, len(cfg.Admins))
	for _, id := range cfg.Admins {
		admins = append(admins, game.PlayerID(id))
	}

	snapshots := store.NewFileStore(cfg.Server.SnapshotFile, logger)
	srv := server.NewServer(cfg, logger)
	engine := game.NewEngine(logger, srv, snapshots, rng, admins)
	srv.SetEngine(engine)

	if len(admins) > 0 {
		interval := time.Duration(cfg.Server.AutoCallIntervalSec) * time.Second
		srv.SetAutoCaller(game.NewAutoCaller(logger, engine, admins[0], interval, quartz.NewReal()))
	}

	engine.Restore()

	logger.Info("Starting bingobot server",
		"addr", cfg.Server.Addr(),
		"admins", len(admins),
		"snapshot", cfg.Server.SnapshotFile)

	ctx := shared.SetupSignalHandler(logger)
	go func() {
		<-ctx.Done()
		_ = srv.Stop()
		os.Exit(0)
	}()

	return srv.Start()
}
