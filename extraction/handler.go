package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"faturas/database"
	"faturas/report"
)

// RunFunc performs one complete extraction. It must honour ctx
// cancellation and report progress through the callback.
type RunFunc func(ctx context.Context, progress func(done, total int)) (report.Report, error)

// Status is what /api/extraction/status returns.
type Status struct {
	Running   bool           `json:"running"`
	Done      int            `json:"done"`
	Total     int            `json:"total"`
	LastError string         `json:"lastError,omitempty"`
	Last      *report.Report `json:"last,omitempty"`
}

// Controller owns the cancel func and progress of the single extraction
// that may run at a time.
type Controller struct {
	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	finished chan struct{}
	done     int
	total    int
	last     *report.Report
	lastErr  string

	db  *sqlx.DB
	run RunFunc
	log logrus.FieldLogger
}

func NewController(db *sqlx.DB, run RunFunc, log logrus.FieldLogger) *Controller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Controller{db: db, run: run, log: log}
}

// Start launches an extraction in the background. It fails if one is
// already running.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("an extraction is already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.running = true
	c.cancel = cancel
	c.finished = make(chan struct{})
	c.done, c.total = 0, 0
	c.lastErr = ""

	go c.execute(ctx, cancel, c.finished)
	return nil
}

func (c *Controller) execute(ctx context.Context, cancel context.CancelFunc, finished chan struct{}) {
	defer close(finished)
	defer cancel()

	rep, err := c.run(ctx, c.progress)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.cancel = nil
	if err != nil {
		c.lastErr = err.Error()
		c.log.WithError(err).Error("extraction failed")
		return
	}
	c.last = &rep
}

func (c *Controller) progress(done, total int) {
	c.mu.Lock()
	c.done, c.total = done, total
	c.mu.Unlock()
}

// Stop requests cancellation; the current account is allowed to finish.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.cancel == nil {
		return false
	}
	c.cancel()
	return true
}

// Wait blocks until the running extraction, if any, has finished.
func (c *Controller) Wait() {
	c.mu.Lock()
	finished := c.finished
	c.mu.Unlock()
	if finished != nil {
		<-finished
	}
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{Running: c.running, Done: c.done, Total: c.total, LastError: c.lastErr, Last: c.last}
}

func (c *Controller) StartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := c.Start(); err != nil {
			writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"message": "extraction started"})
	}
}

func (c *Controller) StopHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		if !c.Stop() {
			writeJSONError(w, "no extraction is running", http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "stop requested"})
	}
}

func (c *Controller) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(c.Status())
	}
}

// RunsHandler lists past runs, or the outcomes of one run when run_id is
// given.
func (c *Controller) RunsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c.db == nil {
			writeJSONError(w, "run history is not available", http.StatusServiceUnavailable)
			return
		}

		var (
			payload any
			err     error
		)
		if id := r.URL.Query().Get("run_id"); id != "" {
			payload, err = database.GetRunOutcomes(c.db, id)
		} else {
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			payload, err = database.ListRuns(c.db, limit)
		}
		if err != nil {
			c.log.WithError(err).Error("failed to read run history")
			writeJSONError(w, "failed to read run history", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	}
}

func (c *Controller) ReportXLSXHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		last := c.last
		c.mu.Unlock()
		if last == nil {
			writeJSONError(w, "no finished extraction", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="faturas_%s.xlsx"`, last.RunID))
		if err := last.WriteXLSX(w); err != nil {
			c.log.WithError(err).Error("failed to write report workbook")
		}
	}
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
