package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"colonynav.ai/internal/observerproto"
	persistlog "colonynav.ai/internal/persistence/log"
	"colonynav.ai/internal/persistence/segmentdb"
	"colonynav.ai/internal/persistence/segments"
	"colonynav.ai/internal/sim/colony"
	"colonynav.ai/internal/sim/tuning"
	"colonynav.ai/internal/transport/observer"
)

var runFlags struct {
	config  string
	db      string
	cycles  uint64
	rateHz  int
	agents  int
	seed    int64
	regions int
	observe string

	statsDir   string
	statsEvery uint64
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the colony simulation",
	Long: `Generates a world of regions x regions, spawns agents with random trips and
drives every agent through the navigation engine once per cycle.

Example:
  navsim run --cycles 5000 --agents 64 --db ./data/segments.db --observe 127.0.0.1:8081`,
	RunE: runSim,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.config, "config", "", "navigation tuning yaml (default: built-in defaults)")
	f.StringVar(&runFlags.db, "db", "", "sqlite segment store (empty keeps segments in memory)")
	f.Uint64Var(&runFlags.cycles, "cycles", 1000, "cycles to run (0 runs until interrupted)")
	f.IntVar(&runFlags.rateHz, "rate", 0, "cycles per second (0 runs flat out)")
	f.IntVar(&runFlags.agents, "agents", colony.DefaultConfig().Agents, "number of agents")
	f.Int64Var(&runFlags.seed, "seed", 1337, "world seed")
	f.IntVar(&runFlags.regions, "regions", 4, "regions along each axis")
	f.StringVar(&runFlags.observe, "observe", "", "observer listen address, loopback only (empty to disable)")
	f.StringVar(&runFlags.statsDir, "stats-dir", "", "directory for the compressed per-cycle stats log (empty to disable)")
	f.Uint64Var(&runFlags.statsEvery, "stats-every", 1, "log every Nth cycle")
}

func runSim(cmd *cobra.Command, args []string) error {
	tune, err := tuning.Load(runFlags.config)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}

	cfg := colony.DefaultConfig()
	cfg.Tuning = tune
	cfg.Agents = runFlags.agents
	cfg.World.Seed = runFlags.seed
	cfg.World.Side = runFlags.regions
	cfg.World.HighwayInterval = tune.Navigation.HighwayInterval

	var host segments.Host
	if path := strings.TrimSpace(runFlags.db); path != "" {
		db, err := segmentdb.Open(path, colony.Limits(tune.Segments))
		if err != nil {
			return fmt.Errorf("open segment store: %w", err)
		}
		defer db.Close()
		host = db
	}

	r, err := colony.New(cfg, host, logger)
	if err != nil {
		return err
	}
	defer r.Close()

	var cycleLog *persistlog.CycleLogger
	if dir := strings.TrimSpace(runFlags.statsDir); dir != "" {
		cycleLog = persistlog.NewCycleLogger(dir, runFlags.statsEvery)
		defer func() {
			if err := cycleLog.Close(); err != nil {
				logger.Warn("close cycle log", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := observer.NewHub(logger)
	g, gctx := errgroup.WithContext(ctx)
	simCtx, simDone := context.WithCancel(gctx)

	if addr := strings.TrimSpace(runFlags.observe); addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           observer.NewServer(hub, r, logger).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			simDone()
			return fmt.Errorf("observer listen: %w", err)
		}
		logger.Info("observer listening", zap.String("addr", ln.Addr().String()))
		g.Go(func() error { return hub.Run(simCtx) })
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-simCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	started := time.Now()
	g.Go(func() error {
		defer simDone()
		err := r.Run(simCtx, runFlags.cycles, runFlags.rateHz, func(m observerproto.CycleMsg) {
			hub.Publish(m)
			if cycleLog != nil {
				if err := cycleLog.WriteCycle(m); err != nil {
					logger.Warn("write cycle log", zap.Error(err))
				}
			}
			if m.Cycle%500 == 0 {
				if cycleLog != nil {
					_ = cycleLog.Flush()
				}
				logger.Info("cycle",
					zap.Uint64("cycle", m.Cycle),
					zap.Int("moves", m.Travel.Moves),
					zap.Int("searches", m.Travel.Searches),
					zap.Int("cache_entries", m.Cache.Entries),
					zap.Float64("pressure", m.Budget.Pressure),
				)
			}
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	tot := r.Totals()
	logger.Info("run finished",
		zap.Uint64("cycles", tot.Cycles),
		zap.Uint64("trips", tot.Trips),
		zap.Uint64("arrivals", tot.Arrivals),
		zap.Uint64("abandoned", tot.Abandoned),
		zap.Uint64("shed", tot.Shed),
		zap.Uint64("moves", tot.Moves),
		zap.Int("cached_paths", r.Cache().Len()),
		zap.Duration("elapsed", time.Since(started)),
	)
	return nil
}
