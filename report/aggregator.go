package report

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"faturas/model"
)

type AccountTiming struct {
	Account string        `json:"account"`
	Elapsed time.Duration `json:"elapsed"`
}

// Report is the finalized, read-only summary of one run.
type Report struct {
	RunID      string                     `json:"runId"`
	StartedAt  time.Time                  `json:"startedAt"`
	FinishedAt time.Time                  `json:"finishedAt"`
	Elapsed    time.Duration              `json:"elapsed"`
	Processed  int                        `json:"processed"`
	Cancelled  bool                       `json:"cancelled"`
	Counts     map[model.Outcome]int      `json:"counts"`
	Accounts   map[model.Outcome][]string `json:"accounts"`
	Details    map[string]string          `json:"details"`
	Files      map[string][]string        `json:"files"`
	Timings    []AccountTiming            `json:"timings"`
}

// OutcomeOf returns the final category of an account.
func (r Report) OutcomeOf(account string) (model.Outcome, bool) {
	for o, keys := range r.Accounts {
		for _, k := range keys {
			if k == account {
				return o, true
			}
		}
	}
	return "", false
}

// Aggregator accumulates one set per outcome while a run progresses.
// Accounts may collect several tags; Finalize resolves them to exactly one.
type Aggregator struct {
	runID     string
	started   time.Time
	now       func() time.Time
	order     []string
	seen      map[string]bool
	sets      map[model.Outcome]map[string]bool
	details   map[string]map[model.Outcome]string
	files     map[string][]string
	timings   []AccountTiming
	cancelled bool
}

func NewAggregator(now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	a := &Aggregator{
		runID:   uuid.NewString(),
		started: now(),
		now:     now,
		seen:    map[string]bool{},
		sets:    map[model.Outcome]map[string]bool{},
		details: map[string]map[model.Outcome]string{},
		files:   map[string][]string{},
	}
	for _, o := range model.Outcomes {
		a.sets[o] = map[string]bool{}
	}
	return a
}

func (a *Aggregator) RunID() string { return a.runID }

// Begin registers account as processed. Every processed account ends up in
// exactly one category, retained when nothing else was recorded.
func (a *Aggregator) Begin(account string) {
	if a.seen[account] {
		return
	}
	a.seen[account] = true
	a.order = append(a.order, account)
}

func (a *Aggregator) Record(account string, o model.Outcome, detail string) {
	a.Begin(account)
	set, ok := a.sets[o]
	if !ok {
		set = map[string]bool{}
		a.sets[o] = set
	}
	set[account] = true
	if a.details[account] == nil {
		a.details[account] = map[model.Outcome]string{}
	}
	if _, exists := a.details[account][o]; !exists {
		a.details[account][o] = detail
	}
}

// Success records a persisted document for account.
func (a *Aggregator) Success(account, path string) {
	a.Record(account, model.OutcomeSuccess, "")
	a.files[account] = append(a.files[account], path)
}

func (a *Aggregator) AddTiming(account string, d time.Duration) {
	a.timings = append(a.timings, AccountTiming{Account: account, Elapsed: d})
}

func (a *Aggregator) MarkCancelled() { a.cancelled = true }

// Finalize subtracts the success set from every other category and then
// resolves any account still carrying several tags by model.Outcomes order.
func (a *Aggregator) Finalize() Report {
	finished := a.now()
	rep := Report{
		RunID:      a.runID,
		StartedAt:  a.started,
		FinishedAt: finished,
		Elapsed:    finished.Sub(a.started),
		Processed:  len(a.order),
		Cancelled:  a.cancelled,
		Counts:     map[model.Outcome]int{},
		Accounts:   map[model.Outcome][]string{},
		Details:    map[string]string{},
		Files:      map[string][]string{},
		Timings:    append([]AccountTiming(nil), a.timings...),
	}

	success := a.sets[model.OutcomeSuccess]
	for o, set := range a.sets {
		if o == model.OutcomeSuccess {
			continue
		}
		for account := range set {
			if success[account] {
				delete(set, account)
			}
		}
	}

	for _, account := range a.order {
		final := model.OutcomeRetained
		for _, o := range model.Outcomes {
			if a.sets[o][account] {
				final = o
				break
			}
		}
		rep.Accounts[final] = append(rep.Accounts[final], account)
		rep.Details[account] = a.details[account][final]
		if files := a.files[account]; len(files) > 0 {
			rep.Files[account] = append([]string(nil), files...)
		}
	}

	for _, o := range model.Outcomes {
		sort.Strings(rep.Accounts[o])
		rep.Counts[o] = len(rep.Accounts[o])
	}
	return rep
}
