package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/xuri/excelize/v2"

	"faturas/database"
	"faturas/model"
	"faturas/report"
)

// blockingRun reports progress once and waits for cancellation or release.
func blockingRun(release <-chan struct{}) RunFunc {
	return func(ctx context.Context, progress func(done, total int)) (report.Report, error) {
		progress(1, 3)
		rep := report.Report{RunID: "run-1", Processed: 1, Counts: map[model.Outcome]int{model.OutcomeSuccess: 1}}
		select {
		case <-ctx.Done():
			rep.Cancelled = true
		case <-release:
		}
		return rep, nil
	}
}

func TestControllerStartStopStatus(t *testing.T) {
	logger, _ := test.NewNullLogger()
	release := make(chan struct{})
	c := NewController(nil, blockingRun(release), logger)

	rec := httptest.NewRecorder()
	c.StartHandler()(rec, httptest.NewRequest(http.MethodPost, "/api/extraction/start", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c.StartHandler()(rec, httptest.NewRequest(http.MethodPost, "/api/extraction/start", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("second start must conflict, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c.StopHandler()(rec, httptest.NewRequest(http.MethodPost, "/api/extraction/stop", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("stop: got %d", rec.Code)
	}
	c.Wait()

	rec = httptest.NewRecorder()
	c.StatusHandler()(rec, httptest.NewRequest(http.MethodGet, "/api/extraction/status", nil))
	var st Status
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Running || st.Done != 1 || st.Total != 3 || st.Last == nil || !st.Last.Cancelled {
		t.Fatalf("unexpected status %+v", st)
	}

	rec = httptest.NewRecorder()
	c.StopHandler()(rec, httptest.NewRequest(http.MethodPost, "/api/extraction/stop", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("stop without a run must conflict, got %d", rec.Code)
	}
}

func TestControllerRecordsRunError(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := NewController(nil, func(context.Context, func(int, int)) (report.Report, error) {
		return report.Report{}, errors.New("accounts file missing")
	}, logger)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Wait()
	st := c.Status()
	if st.LastError != "accounts file missing" || st.Last != nil {
		t.Fatalf("unexpected status %+v", st)
	}

	rec := httptest.NewRecorder()
	c.ReportXLSXHandler()(rec, httptest.NewRequest(http.MethodGet, "/api/extraction/report.xlsx", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("report without a finished run: got %d", rec.Code)
	}
}

func TestControllerReportWorkbook(t *testing.T) {
	logger, _ := test.NewNullLogger()
	release := make(chan struct{})
	close(release)
	c := NewController(nil, blockingRun(release), logger)
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Wait()

	rec := httptest.NewRecorder()
	c.ReportXLSXHandler()(rec, httptest.NewRequest(http.MethodGet, "/api/extraction/report.xlsx", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("report: got %d", rec.Code)
	}
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	if idx, _ := f.GetSheetIndex("Resumo"); idx < 0 {
		t.Fatalf("summary sheet missing")
	}
}

func TestRunsHandler(t *testing.T) {
	logger, _ := test.NewNullLogger()
	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()
	if err := database.InitDatabase(db); err != nil {
		t.Fatal(err)
	}
	rep := report.Report{
		RunID:    "run-9",
		Accounts: map[model.Outcome][]string{model.OutcomeNoInvoice: {"CELPE:000000000001"}},
	}
	if err := database.SaveRun(db, rep, nil); err != nil {
		t.Fatal(err)
	}

	c := NewController(db, nil, logger)
	rec := httptest.NewRecorder()
	c.RunsHandler()(rec, httptest.NewRequest(http.MethodGet, "/api/extraction/runs", nil))
	var runs []model.RunSummary
	if err := json.NewDecoder(rec.Body).Decode(&runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 1 || runs[0].Counts[model.OutcomeNoInvoice] != 1 {
		t.Fatalf("unexpected runs %+v", runs)
	}

	rec = httptest.NewRecorder()
	c.RunsHandler()(rec, httptest.NewRequest(http.MethodGet, "/api/extraction/runs?run_id=run-9", nil))
	var outcomes []model.RunOutcome
	if err := json.NewDecoder(rec.Body).Decode(&outcomes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Outcome != model.OutcomeNoInvoice {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}
}
