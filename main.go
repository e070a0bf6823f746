package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wfunc/boardroom/config"
	"github.com/wfunc/boardroom/logger"
	"github.com/wfunc/boardroom/monitor"
	"github.com/wfunc/boardroom/persistence"
	"github.com/wfunc/boardroom/rpc"
	"github.com/wfunc/boardroom/server"
	"github.com/wfunc/boardroom/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Initialize logger
	logger.Init()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	mon := monitor.NewMonitor("boardroom")

	// Initialize document store
	store, pinger, err := openStore(cfg, mon)
	if err != nil {
		logger.Log.Fatalf("Failed to open %s store: %v", cfg.Database.Driver, err)
	}
	logger.Log.Infof("Using %s room store.", cfg.Database.Driver)

	rooms := services.NewRoomService(store,
		services.WithMonitor(mon),
		services.WithBoardSize(cfg.Game.BoardSize),
		services.WithHeartbeatInterval(cfg.Game.HeartbeatInterval),
	)

	gameServer := server.NewGameServer(cfg.Server.HTTPAddress, cfg.Server.PublicURL, rooms, mon)
	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress, rooms)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	healthServer, err := rpc.NewHealthServer(cfg.Server.GRPCAddress, pinger, 0)
	if err != nil {
		logger.Log.Fatalf("Failed to create health server: %v", err)
	}
	metricsServer := mon.NewServer(cfg.Server.MetricsAddress)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(gameServer.Start)
	g.Go(rpcServer.Start)
	g.Go(healthServer.Start)
	g.Go(func() error {
		logger.Log.Infof("Metrics listening on %s", cfg.Server.MetricsAddress)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		rpcServer.Stop()
		healthServer.Stop()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Warnf("Metrics shutdown: %v", err)
		}
		return gameServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Log.Errorf("Server stopped with error: %v", err)
	}

	rooms.Close()
	if err := store.Close(); err != nil {
		logger.Log.Warnf("Closing store: %v", err)
	}
}

// openStore returns the configured room store and, when it has one, its
// connectivity check for the health service.
func openStore(cfg *config.Config, mon *monitor.Monitor) (persistence.Store, rpc.Pinger, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pg := cfg.Database.Postgres
		dsn := persistence.PostgresDSN(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		db, err := persistence.NewGormPostgreSQL(dsn, cfg.Database.MaxAttempts, mon)
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	default:
		return persistence.NewMemoryStore(
			persistence.WithMaxAttempts(cfg.Database.MaxAttempts),
			persistence.WithTxObserver(mon),
		), nil, nil
	}
}
