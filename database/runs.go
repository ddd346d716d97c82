package database

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"faturas/model"
	"faturas/report"
)

const schema = `
CREATE TABLE IF NOT EXISTS extraction_runs (
	run_id      TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	elapsed_ms  INTEGER NOT NULL,
	processed   INTEGER NOT NULL,
	cancelled   BOOLEAN NOT NULL DEFAULT 0,
	periods     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS extraction_outcomes (
	run_id     TEXT NOT NULL REFERENCES extraction_runs(run_id) ON DELETE CASCADE,
	account    TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	elapsed_ms INTEGER NOT NULL DEFAULT 0,
	files      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, account)
);

CREATE INDEX IF NOT EXISTS idx_extraction_outcomes_outcome ON extraction_outcomes(run_id, outcome);
`

func InitDatabase(db *sqlx.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// SaveRun persists a finalized report and its per-account outcomes.
func SaveRun(db *sqlx.DB, rep report.Report, periods []model.Period) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("SaveRun: begin: %w", err)
	}
	defer tx.Rollback()

	if err := insertRunInTx(tx, rep, periods); err != nil {
		return err
	}

	elapsed := make(map[string]int64, len(rep.Timings))
	for _, t := range rep.Timings {
		elapsed[t.Account] = t.Elapsed.Milliseconds()
	}
	for _, o := range model.Outcomes {
		for _, account := range rep.Accounts[o] {
			out := model.RunOutcome{
				RunID:     rep.RunID,
				Account:   account,
				Outcome:   o,
				Detail:    rep.Details[account],
				ElapsedMs: elapsed[account],
				Files:     strings.Join(rep.Files[account], "\n"),
			}
			if err := insertOutcomeInTx(tx, out); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("SaveRun: commit: %w", err)
	}
	return nil
}

func insertRunInTx(tx *sqlx.Tx, rep report.Report, periods []model.Period) error {
	labels := make([]string, len(periods))
	for i, p := range periods {
		labels[i] = p.String()
	}
	const q = `
		INSERT INTO extraction_runs (run_id, started_at, finished_at, elapsed_ms, processed, cancelled, periods)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.Exec(q, rep.RunID, rep.StartedAt.UTC(), rep.FinishedAt.UTC(), rep.Elapsed.Milliseconds(),
		rep.Processed, rep.Cancelled, strings.Join(labels, ","))
	if err != nil {
		return fmt.Errorf("insertRunInTx (run %s) failed: %w", rep.RunID, err)
	}
	return nil
}

func insertOutcomeInTx(tx *sqlx.Tx, o model.RunOutcome) error {
	const q = `
		INSERT INTO extraction_outcomes (run_id, account, outcome, detail, elapsed_ms, files)
		VALUES (:run_id, :account, :outcome, :detail, :elapsed_ms, :files)`
	if _, err := tx.NamedExec(q, o); err != nil {
		return fmt.Errorf("insertOutcomeInTx (account %s) failed: %w", o.Account, err)
	}
	return nil
}

// ListRuns returns the most recent runs first, with outcome counts.
func ListRuns(db *sqlx.DB, limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []model.RunSummary
	const q = `
		SELECT run_id, started_at, finished_at, elapsed_ms, processed, cancelled, periods
		FROM extraction_runs ORDER BY started_at DESC LIMIT ?`
	if err := db.Select(&runs, q, limit); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		return runs, nil
	}

	ids := make([]string, len(runs))
	byID := make(map[string]*model.RunSummary, len(runs))
	for i := range runs {
		runs[i].Counts = make(map[model.Outcome]int)
		ids[i] = runs[i].RunID
		byID[runs[i].RunID] = &runs[i]
	}

	query, args, err := sqlx.In(`
		SELECT run_id, outcome, COUNT(*) AS n FROM extraction_outcomes
		WHERE run_id IN (?) GROUP BY run_id, outcome`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build count query: %w", err)
	}
	var counts []struct {
		RunID   string        `db:"run_id"`
		Outcome model.Outcome `db:"outcome"`
		N       int           `db:"n"`
	}
	if err := db.Select(&counts, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to count outcomes: %w", err)
	}
	for _, c := range counts {
		byID[c.RunID].Counts[c.Outcome] = c.N
	}
	return runs, nil
}

func GetRunOutcomes(db *sqlx.DB, runID string) ([]model.RunOutcome, error) {
	var outcomes []model.RunOutcome
	const q = `
		SELECT run_id, account, outcome, detail, elapsed_ms, files
		FROM extraction_outcomes WHERE run_id = ? ORDER BY outcome, account`
	if err := db.Select(&outcomes, q, runID); err != nil {
		return nil, fmt.Errorf("failed to get outcomes for run %s: %w", runID, err)
	}
	return outcomes, nil
}
