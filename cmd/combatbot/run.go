package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/autocombat/internal/combat"
	"github.com/cory-johannsen/autocombat/internal/combat/layout"
	"github.com/cory-johannsen/autocombat/internal/combat/script"
	"github.com/cory-johannsen/autocombat/internal/config"
	"github.com/cory-johannsen/autocombat/internal/device/sim"
	"github.com/cory-johannsen/autocombat/internal/observability"
	"github.com/cory-johannsen/autocombat/internal/server"
	"github.com/cory-johannsen/autocombat/internal/storage/postgres"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a combat script until the battle ends",
	Long: `Runs the configured combat script against the simulated battle screen,
serving metrics and health while it plays, and records the result in the run
history when the database is enabled.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		scenario, _ := cmd.Flags().GetString("scenario")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cmd.Flags().Changed("scenario") {
			cfg.Sim.Scenario = scenario
		}
		path, err := scriptPath(cmd, cfg.Bot.Script)
		if err != nil {
			return err
		}
		res, err := runBattle(cmd.Context(), cfg, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s after turn %d in %s\n", res.Outcome, describe(res), res.Turn, res.Elapsed)
		if res.Outcome != combat.OutcomeSuccess {
			return fmt.Errorf("combat %s", res.Outcome)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("scenario", "", "simulated battle scenario (YAML); overrides sim.scenario")
}

func describe(res combat.Result) string {
	if res.Signal.Terminal() {
		return res.Signal.String()
	}
	return res.Reason
}

// runStatus is the /status snapshot published after a battle.
type runStatus struct {
	SessionID string `json:"session_id"`
	Outcome   string `json:"outcome"`
	Signal    string `json:"signal"`
	Turn      int    `json:"turn"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Retreated bool   `json:"retreated"`
	Reason    string `json:"reason,omitempty"`
}

func loadLayout(cfg config.BotConfig) (layout.Layout, error) {
	if cfg.LayoutFile != "" {
		return layout.Load(cfg.LayoutFile, cfg.DeviceProfile)
	}
	return layout.Default(cfg.DeviceProfile)
}

// runBattle wires the runner, the status endpoints and the run history,
// then plays one battle under a Lifecycle.
func runBattle(ctx context.Context, cfg config.Config, path string) (combat.Result, error) {
	start := time.Now()

	logger, err := observability.NewBotLogger(cfg)
	if err != nil {
		return combat.Result{}, fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	lines, err := loadScript(path, logger)
	if err != nil {
		return combat.Result{}, err
	}
	prog, err := script.Parse(lines)
	if err != nil {
		return combat.Result{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	geo, err := loadLayout(cfg.Bot)
	if err != nil {
		return combat.Result{}, err
	}

	sc, err := sim.LoadScenario(cfg.Sim.Scenario)
	if err != nil {
		return combat.Result{}, err
	}
	dev, err := sim.New(sc, logger)
	if err != nil {
		return combat.Result{}, err
	}
	dev.SetLayout(geo)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	stats := config.NewStats()
	runner := combat.NewRunner(dev.Combat(), geo, combat.SettingsFromConfig(cfg), logger,
		combat.WithMetrics(metrics),
		combat.WithElapsedRecorder(stats),
	)

	var (
		pool *postgres.Pool
		runs *postgres.RunRepository
	)
	if cfg.Database.Enabled {
		pool, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return combat.Result{}, fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()
		runs = postgres.NewRunRepository(pool.DB())
	}

	lc := server.NewLifecycle(logger)
	var status *server.StatusServer
	if cfg.Server.StatusAddr != "" {
		status = server.NewStatusServer(cfg.Server.StatusAddr, reg, logger)
		if pool != nil {
			status.AddCheck("database", pool.HealthCheck(2*time.Second))
		}
		lc.Add("status", status)
	}
	var health *server.HealthServer
	if cfg.Server.HealthAddr != "" {
		health = server.NewHealthServer(cfg.Server.HealthAddr, logger)
		lc.Add("health", health)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	var res combat.Result
	lc.AddJob("combat", &server.FuncService{
		StartFn: func() error {
			defer close(done)
			if health != nil {
				health.SetServing(true)
			}
			res = runner.Run(runCtx, prog)
			if health != nil {
				health.SetServing(false)
			}
			if status != nil {
				if err := status.Publish(snapshot(res)); err != nil {
					logger.Warn("publishing status", zap.Error(err))
				}
			}
			if runs != nil {
				if err := recordRun(runs, cfg, prog, res); err != nil {
					logger.Error("recording combat run", zap.Error(err))
				}
			}
			return nil
		},
		StopFn: func() {
			cancel()
			<-done
		},
	})

	if err := lc.Run(ctx); err != nil {
		return res, err
	}
	if d, ok := stats.CombatElapsed(cfg.Bot.Mission); ok {
		logger.Info("combat elapsed recorded", zap.Duration("elapsed", d))
	}
	logger.Info("battle finished",
		zap.Stringer("outcome", res.Outcome),
		zap.Duration("wall_time", time.Since(start)),
		zap.Any("simulated", dev.Snapshot()),
	)
	return res, nil
}

func snapshot(res combat.Result) runStatus {
	return runStatus{
		SessionID: res.SessionID.String(),
		Outcome:   res.Outcome.String(),
		Signal:    res.Signal.String(),
		Turn:      res.Turn,
		ElapsedMS: res.Elapsed.Milliseconds(),
		Retreated: res.Retreated,
		Reason:    res.Reason,
	}
}

// recordRun stores res in the run history. A cancelled battle is still
// recorded, so the insert does not inherit the battle's context.
func recordRun(runs *postgres.RunRepository, cfg config.Config, prog script.Program, res combat.Result) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	turn := res.Turn
	if turn < 1 {
		turn = 1
	}
	_, err := runs.Insert(ctx, postgres.Run{
		ID:           res.SessionID,
		FarmingMode:  cfg.Bot.FarmingMode,
		Mission:      cfg.Bot.Mission,
		ScriptDigest: postgres.ScriptDigest(script.Format(prog)),
		Outcome:      res.Outcome.String(),
		Signal:       res.Signal.String(),
		Turn:         turn,
		Elapsed:      res.Elapsed,
		Retreated:    res.Retreated,
		Reason:       res.Reason,
	})
	return err
}
