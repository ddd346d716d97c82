package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"faturas/distributor"
	"faturas/document"
	"faturas/metrics"
	"faturas/model"
	"faturas/provider"
	"faturas/report"
)

type Authenticator interface {
	Ensure(ctx context.Context, rec model.AccountRecord, profile distributor.Profile, a provider.Adapter) (string, model.Result)
	Close() error
}

type InvoiceResolver interface {
	Resolve(ctx context.Context, rec model.AccountRecord, profile distributor.Profile, a provider.Adapter, token string) (provider.Resolution, model.Result)
}

type DocumentFetcher interface {
	FetchAndStore(ctx context.Context, t document.Target) (string, model.Result)
}

// Options are the per-run inputs supplied by the caller.
type Options struct {
	Periods        []model.Period
	InactiveCutoff model.Period
	// StartAccountCode skips records until the first one with this code.
	StartAccountCode string
	// Progress is called after every record with the 1-based index and the
	// number of records considered.
	Progress func(done, total int)
}

// Runner processes account records one at a time over a single browser
// session.
type Runner struct {
	auth     Authenticator
	resolver InvoiceResolver
	docs     DocumentFetcher
	log      logrus.FieldLogger
	metrics  *metrics.Extraction
	lookup   func(int) (distributor.Profile, bool)
	now      func() time.Time
}

type RunnerOption func(*Runner)

func WithMetrics(m *metrics.Extraction) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithProfiles replaces the distributor registry lookup.
func WithProfiles(lookup func(int) (distributor.Profile, bool)) RunnerOption {
	return func(r *Runner) { r.lookup = lookup }
}

func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

func NewRunner(auth Authenticator, resolver InvoiceResolver, docs DocumentFetcher, log logrus.FieldLogger, opts ...RunnerOption) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Runner{
		auth:     auth,
		resolver: resolver,
		docs:     docs,
		log:      log,
		lookup:   distributor.Lookup,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes records in order and returns the finalized report. ctx is
// only checked between records: work already started for an account runs
// to completion or to its own timeouts. The browser session is closed on
// every exit path.
func (r *Runner) Run(ctx context.Context, records []model.AccountRecord, opts Options) report.Report {
	agg := report.NewAggregator(r.now)
	log := r.log.WithField("run_id", agg.RunID())

	defer func() {
		if err := r.auth.Close(); err != nil {
			log.WithError(err).Warn("failed to close browser session")
		}
	}()

	records = startFrom(records, opts.StartAccountCode, log)
	total := len(records)
	work := context.WithoutCancel(ctx)
	log.WithFields(logrus.Fields{"records": total, "periods": len(opts.Periods)}).Info("extraction started")

	for i, rec := range records {
		if ctx.Err() != nil {
			agg.MarkCancelled()
			log.WithField("processed", i).Info("extraction cancelled")
			break
		}

		profile, ok := r.lookup(rec.DistributorID)
		if !ok {
			log.WithFields(logrus.Fields{"distributor_id": rec.DistributorID, "account": rec.PaddedCode()}).Warn("unknown distributor, skipping")
		} else {
			key := model.AccountKey(profile.Name, rec.AccountCode)
			start := r.now()
			r.processAccount(work, agg, key, rec, profile, opts)
			elapsed := r.now().Sub(start)
			agg.AddTiming(key, elapsed)
			r.metrics.ObserveAccount(profile.Name, elapsed)
		}

		r.metrics.SetProgress(i+1, total)
		if opts.Progress != nil {
			opts.Progress(i+1, total)
		}
	}

	rep := agg.Finalize()
	r.metrics.ObserveRun(rep.Counts, rep.Cancelled)

	fields := logrus.Fields{"processed": rep.Processed, "elapsed": rep.Elapsed.String(), "cancelled": rep.Cancelled}
	for _, o := range model.Outcomes {
		fields[string(o)] = rep.Counts[o]
	}
	log.WithFields(fields).Info("extraction finished")
	return rep
}

func (r *Runner) processAccount(ctx context.Context, agg *report.Aggregator, key string, rec model.AccountRecord, profile distributor.Profile, opts Options) {
	agg.Begin(key)
	log := r.log.WithFields(logrus.Fields{"distributor": profile.Name, "account": rec.PaddedCode()})

	defer func() {
		if p := recover(); p != nil {
			log.WithField("panic", p).Error("unexpected failure while processing account")
			agg.Record(key, model.OutcomeRetained, fmt.Sprintf("unexpected: %v", p))
		}
	}()

	adapter := provider.For(profile)

	token, res := r.auth.Ensure(ctx, rec, profile, adapter)
	if !res.OK() {
		log.WithField("outcome", res.Outcome).Info(res.Detail)
		agg.Record(key, res.Outcome, res.Detail)
		return
	}

	resolution, res := r.resolver.Resolve(ctx, rec, profile, adapter, token)
	if !res.OK() {
		log.WithField("outcome", res.Outcome).Info(res.Detail)
		agg.Record(key, res.Outcome, res.Detail)
		return
	}

	if provider.IsInactive(resolution.Invoices, opts.InactiveCutoff) {
		latest, _ := provider.LatestPeriod(resolution.Invoices)
		agg.Record(key, model.OutcomeInactive, fmt.Sprintf("latest invoice %s", latest))
	}

	for _, period := range opts.Periods {
		plog := log.WithField("period", period.String())
		inv, ok := provider.Select(resolution.Invoices, period, adapter)
		if !ok {
			plog.Info("no invoice for period")
			agg.Record(key, model.OutcomeRetained, fmt.Sprintf("no invoice for %s", period))
			continue
		}

		path, res := r.docs.FetchAndStore(ctx, document.Target{
			Account: resolution.Account,
			Adapter: adapter,
			Token:   token,
			Invoice: inv,
			Period:  period,
		})
		if !res.OK() {
			plog.WithField("outcome", res.Outcome).Info(res.Detail)
			agg.Record(key, res.Outcome, res.Detail)
			continue
		}
		agg.Success(key, path)
	}
}

func startFrom(records []model.AccountRecord, code string, log logrus.FieldLogger) []model.AccountRecord {
	if code == "" {
		return records
	}
	want := model.PadAccountCode(code)
	for i, rec := range records {
		if rec.PaddedCode() == want {
			return records[i:]
		}
	}
	log.WithField("start_account", want).Warn("start account not found, processing every record")
	return records
}
