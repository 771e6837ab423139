package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/stellardominion/engine/internal/config"
	"github.com/stellardominion/engine/internal/data"
	"github.com/stellardominion/engine/internal/game"
	"github.com/stellardominion/engine/internal/persist"
	"github.com/stellardominion/engine/internal/scripting"
	"github.com/stellardominion/engine/internal/system"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

var printer = message.NewPrinter(language.English)

func printBanner(scenario string, seed int64) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        Stellar Dominion  engine v0.1      \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      確定性模擬核心 · headless driver      \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1m劇本:\033[0m %s \033[90m(seed: %d)\033[0m\n\n", scenario, seed)
}

// displayWidth counts CJK characters as two columns.
func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		if r > 0x7F {
			w += 2
		} else {
			w++
		}
	}
	return w
}

func printSection(title string) {
	lineLen := max(46-displayWidth(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := printer.Sprintf("%d", count)
	dotsLen := max(42-displayWidth(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main loop ─────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := config.DefaultPath
	if p := os.Getenv(config.PathEnv); p != "" {
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

	// 3. Scenario and static tables
	sc, err := data.LoadScenario(cfg.Scenario.Path)
	if err != nil {
		return fmt.Errorf("scenario: %w", err)
	}
	if cfg.Scenario.Seed != 0 {
		sc.Seed = cfg.Scenario.Seed
	}
	scenarioName := cfg.Scenario.Path
	if scenarioName == "" {
		scenarioName = "built-in"
	}
	printBanner(scenarioName, sc.Seed)

	printSection("資料表")
	tables, err := game.LoadTables(cfg.Data.Buildings, cfg.Data.Ships, cfg.Data.Economy)
	if err != nil {
		return err
	}
	printStat("建築", tables.Buildings.Count())
	printStat("艦種", tables.Ships.Count())

	var commands *data.CommandScript
	if cfg.Input.CommandScript != "" {
		commands, err = data.LoadCommandScript(cfg.Input.CommandScript)
		if err != nil {
			return fmt.Errorf("command script: %w", err)
		}
		printStat("預排指令", commands.Remaining())
	}
	fmt.Println()

	// 4. Lua scripting
	printSection("腳本")
	engine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer engine.Close()
	printOK(fmt.Sprintf("Lua 腳本載入完成 (%s)", engine.Dir()))

	var reloads <-chan struct{}
	if cfg.Scripting.HotReload {
		watcher, err := scripting.NewWatcher(cfg.Scripting.Dir, log)
		if err != nil {
			return fmt.Errorf("script watcher: %w", err)
		}
		if err := watcher.Start(); err != nil {
			log.Warn("腳本熱重載停用", zap.String("dir", cfg.Scripting.Dir), zap.Error(err))
		} else {
			defer watcher.Stop()
			reloads = watcher.Changes
			printOK("腳本熱重載啟用")
		}
	}
	fmt.Println()

	// 5. Snapshot store
	printSection("存檔")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openStore(ctx, cfg.Save, log)
	if err != nil {
		return fmt.Errorf("save store: %w", err)
	}
	defer store.Close()
	printOK(fmt.Sprintf("存檔後端 %s", cfg.Save.Backend))

	// 6. Game
	g, err := game.NewGame(sc, game.Options{
		Tables: tables,
		Store:  store,
		Save: system.SaveConfig{
			DefaultSlot:      cfg.Save.DefaultSlot,
			AutosaveSlot:     cfg.Save.AutosaveSlot,
			AutosaveInterval: cfg.Save.AutosaveInterval,
		},
		Scripts:           engine,
		Commands:          commands,
		CommandsPerSecond: cfg.Input.CommandsPerSecond,
		CommandBurst:      cfg.Input.Burst,
		HistoryLimit:      cfg.Simulation.HistoryLimit,
		SaveTimeout:       cfg.Save.Timeout,
	}, log)
	if err != nil {
		return fmt.Errorf("new game: %w", err)
	}

	if slot := cfg.Save.LoadOnStart; slot != "" {
		switch err := g.Load(slot); {
		case game.IsMissingSave(err):
			log.Warn("找不到存檔，開新遊戲", zap.String("slot", slot))
		case err != nil:
			return fmt.Errorf("load %q: %w", slot, err)
		default:
			printOK(fmt.Sprintf("讀取存檔 %s (tick %d)", slot, g.CurrentTick()))
		}
	}

	printStat("陣營", len(g.Factions()))
	printStat("星球", len(g.Planets()))
	printStat("艦船", len(g.Ships()))
	fmt.Println()

	// 7. Game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Simulation.FrameInterval)
	defer ticker.Stop()

	printSection("模擬就緒")
	printReady(fmt.Sprintf("遊戲迴圈啟動 (frame: %s, tick: %s)", cfg.Simulation.FrameInterval, system.TickDuration))
	if cfg.Simulation.RunTicks > 0 {
		printReady(printer.Sprintf("執行至 tick %d", cfg.Simulation.RunTicks))
	}
	fmt.Println()

	var acc time.Duration
	last := time.Now()
	lastStatus := g.CurrentTick()

	for {
		select {
		case now := <-ticker.C:
			acc += now.Sub(last)
			last = now

			steps := 0
			for acc >= system.TickDuration && steps < cfg.Simulation.MaxSubsteps {
				// Frame errors are already logged by the game; keep running.
				_ = g.FixedUpdate(system.TickDuration)
				acc -= system.TickDuration
				steps++
			}
			if acc >= system.TickDuration {
				log.Debug("模擬落後，丟棄時間", zap.Duration("dropped", acc))
				acc = 0
			}

			tick := g.CurrentTick()
			if iv := cfg.Simulation.StatusInterval; iv > 0 && tick/iv != lastStatus/iv {
				lastStatus = tick
				logStatus(g, log)
			}
			if cfg.Simulation.RunTicks > 0 && tick >= cfg.Simulation.RunTicks {
				log.Info("到達指定 tick，停止模擬", zap.Uint64("tick", tick))
				return shutdown(g, cfg.Save, log)
			}

		case <-reloads:
			if err := engine.Reload(); err != nil {
				log.Error("腳本重載失敗，沿用舊版", zap.Error(err))
			}

		case sig := <-shutdownCh:
			log.Info("收到關閉信號", zap.String("signal", sig.String()))
			return shutdown(g, cfg.Save, log)
		}
	}
}

func openStore(ctx context.Context, cfg config.SaveConfig, log *zap.Logger) (persist.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, err
		}
		return persist.OpenSQLite(ctx, cfg.SQLitePath)
	case "postgres":
		return persist.OpenPostgres(ctx, cfg.Postgres, log)
	default:
		return persist.NewFileStore(cfg.Dir, log)
	}
}

// logStatus is the read-only pass over the game a renderer would make.
func logStatus(g *game.GameState, log *zap.Logger) {
	player, hasPlayer := g.Player()
	var pop int64
	owned := 0
	for _, p := range g.Planets() {
		pop += int64(p.Population)
		if hasPlayer && p.Controller.Valid && p.Controller.ID == player.ID {
			owned++
		}
	}
	digest := g.Digest()
	log.Info("模擬狀態",
		zap.Uint64("tick", g.CurrentTick()),
		zap.Float32("speed", g.SpeedMultiplier()),
		zap.Bool("paused", g.IsPaused()),
		zap.Int("ships", len(g.Ships())),
		zap.Int64("population", pop),
		zap.Int("player_planets", owned),
		zap.String("digest", hex.EncodeToString(digest[:8])),
	)
}

func shutdown(g *game.GameState, cfg config.SaveConfig, log *zap.Logger) error {
	if cfg.SaveOnExit {
		if err := g.Save(cfg.DefaultSlot); err != nil {
			log.Error("關閉前存檔失敗", zap.Error(err))
			return fmt.Errorf("save on exit: %w", err)
		}
	}
	log.Info("模擬已停止", zap.Uint64("tick", g.CurrentTick()))
	return nil
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
