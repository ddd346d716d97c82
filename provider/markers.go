package provider

import (
	"fmt"
	"net/http"

	"faturas/apiclient"
	"faturas/model"
)

// Body phrases the portal APIs use for permanent business errors. Matching
// is case-insensitive.
var (
	UnavailableMarkers = []string{
		"fatura indisponível no canal digital",
		"fatura não disponível",
		"segunda via indisponível",
	}
	MismatchMarkers = []string{
		"documento não encontrado",
		"não pertence ao documento",
		"documento informado não corresponde",
	}
)

// SkipLiterals are the phrases that stop the HTTP client from retrying.
func SkipLiterals() []string {
	out := make([]string, 0, len(UnavailableMarkers)+len(MismatchMarkers))
	out = append(out, UnavailableMarkers...)
	return append(out, MismatchMarkers...)
}

// ClassifyFailure maps a non-success response to an outcome: known
// unavailable phrases to invoice_unavailable, document mismatches to
// invalid_credentials, server errors that survived the retries to
// system_error and anything else to retained.
func ClassifyFailure(stage string, resp *apiclient.Response) model.Result {
	if resp == nil {
		return model.Fail(model.OutcomeSystemError, stage+": no response")
	}
	detail := fmt.Sprintf("%s: status %d", stage, resp.StatusCode)
	switch {
	case resp.Contains(UnavailableMarkers...):
		return model.Fail(model.OutcomeInvoiceUnavailable, detail)
	case resp.Contains(MismatchMarkers...):
		return model.Fail(model.OutcomeInvalidCredentials, detail)
	case resp.StatusCode >= http.StatusInternalServerError:
		return model.Fail(model.OutcomeSystemError, detail)
	default:
		return model.Fail(model.OutcomeRetained, detail)
	}
}
