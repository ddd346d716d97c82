package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"faturas/apiclient"
	"faturas/automation"
	"faturas/config"
	"faturas/database"
	"faturas/document"
	"faturas/extraction"
	"faturas/loader"
	"faturas/metrics"
	"faturas/provider"
	"faturas/report"
	"faturas/session"
	"faturas/storage"
)

// newRunFunc assembles one extraction from the current configuration. The
// config is re-read on every run so changes saved through the API apply to
// the next start.
func newRunFunc(db *sqlx.DB, m *metrics.Extraction, log *logrus.Logger) extraction.RunFunc {
	return func(ctx context.Context, progress func(done, total int)) (report.Report, error) {
		cfg := config.GetConfig()
		if err := cfg.Validate(); err != nil {
			return report.Report{}, err
		}
		periods, _ := cfg.RequestedPeriods()
		cutoff, _ := cfg.Cutoff()

		records, err := loader.LoadAccounts(cfg.AccountsFile, log)
		if err != nil {
			return report.Report{}, fmt.Errorf("load accounts: %w", err)
		}

		store, err := storage.New(cfg.OutputDir)
		if err != nil {
			return report.Report{}, err
		}

		browser, err := automation.Launch(automation.Options{
			Headless: !cfg.ShowBrowser,
			Bin:      cfg.BrowserBin,
			Timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return report.Report{}, fmt.Errorf("launch browser: %w", err)
		}

		settings := session.DefaultSettings()
		settings.Settle = time.Duration(cfg.LoginSettleSeconds) * time.Second
		settings.FieldWait = time.Duration(cfg.FieldWaitSeconds) * time.Second

		client := apiclient.New(cfg.RetryPolicy(), apiclient.WithLogger(log))
		runner := extraction.NewRunner(
			session.NewManager(browser, settings, log),
			provider.NewResolver(client, log),
			document.NewRetriever(client, store, log),
			log,
			extraction.WithMetrics(m),
		)

		rep := runner.Run(ctx, records, extraction.Options{
			Periods:          periods,
			InactiveCutoff:   cutoff,
			StartAccountCode: cfg.StartAccountCode,
			Progress:         progress,
		})

		if db != nil {
			if err := database.SaveRun(db, rep, periods); err != nil {
				log.WithError(err).Error("failed to save run history")
			}
		}
		return rep, nil
	}
}
