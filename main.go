package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"faturas/config"
	"faturas/database"
	"faturas/extraction"
	"faturas/metrics"
)

func main() {
	runOnce := flag.Bool("run", false, "run one extraction and exit")
	flag.Parse()

	cfg, cfgErr := config.LoadConfig()
	log := config.NewLogger(cfg.LogLevel)
	if cfgErr != nil {
		log.WithError(cfgErr).Warn("failed to load config file, using defaults")
	}

	dbConn, err := sqlx.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		log.WithError(err).Fatal("db open error")
	}
	defer dbConn.Close()

	if err := database.InitDatabase(dbConn); err != nil {
		log.WithError(err).Fatal("database initialization failed")
	}

	m := metrics.NewExtraction()
	run := newRunFunc(dbConn, m, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *runOnce {
		rep, err := run(ctx, nil)
		if err != nil {
			log.WithError(err).Fatal("extraction failed")
		}
		log.WithField("run_id", rep.RunID).Info("extraction complete")
		return
	}

	ctrl := extraction.NewController(dbConn, run, log)
	mux := http.NewServeMux()
	SetupRoutes(mux, ctrl, m)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		ctrl.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", cfg.ListenAddr).Info("starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server start error")
	}
	ctrl.Wait()
}
