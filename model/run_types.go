package model

import "time"

// RunSummary is one persisted extraction run.
type RunSummary struct {
	RunID      string          `db:"run_id" json:"runId"`
	StartedAt  time.Time       `db:"started_at" json:"startedAt"`
	FinishedAt time.Time       `db:"finished_at" json:"finishedAt"`
	ElapsedMs  int64           `db:"elapsed_ms" json:"elapsedMs"`
	Processed  int             `db:"processed" json:"processed"`
	Cancelled  bool            `db:"cancelled" json:"cancelled"`
	Periods    string          `db:"periods" json:"periods"`
	Counts     map[Outcome]int `db:"-" json:"counts"`
}

// RunOutcome is the final category of one account in a run.
type RunOutcome struct {
	RunID     string  `db:"run_id" json:"runId"`
	Account   string  `db:"account" json:"account"`
	Outcome   Outcome `db:"outcome" json:"outcome"`
	Detail    string  `db:"detail" json:"detail"`
	ElapsedMs int64   `db:"elapsed_ms" json:"elapsedMs"`
	Files     string  `db:"files" json:"files"`
}
