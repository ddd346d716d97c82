package model

type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomeRetained           Outcome = "retained"
	OutcomeInactive           Outcome = "inactive"
	OutcomeNoInvoice          Outcome = "no_invoice"
	OutcomeInvalidCredentials Outcome = "invalid_credentials"
	OutcomeMustResetPassword  Outcome = "must_reset_password"
	OutcomeInvoiceUnavailable Outcome = "invoice_unavailable"
	OutcomeSystemError        Outcome = "system_error"
)

// Outcomes lists every category in final-report precedence order: when an
// account carries several tags at the end of a run, the first one listed wins.
var Outcomes = []Outcome{
	OutcomeSuccess,
	OutcomeInvalidCredentials,
	OutcomeMustResetPassword,
	OutcomeSystemError,
	OutcomeInvoiceUnavailable,
	OutcomeNoInvoice,
	OutcomeInactive,
	OutcomeRetained,
}

// Result is what every pipeline stage returns instead of raising.
// A zero Result (empty Outcome) means the stage succeeded and the caller
// should continue.
type Result struct {
	Outcome Outcome
	Detail  string
}

func (r Result) OK() bool { return r.Outcome == "" }

func Fail(o Outcome, detail string) Result {
	return Result{Outcome: o, Detail: detail}
}
