package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"faturas/apiclient"
	"faturas/distributor"
	"faturas/model"
)

// unitMatchDigits is how many trailing digits of the zero-padded codes must
// agree for a unit to match the requested account.
const unitMatchDigits = 10

type Resolver struct {
	client *apiclient.Client
	log    logrus.FieldLogger
}

func NewResolver(client *apiclient.Client, log logrus.FieldLogger) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{client: client, log: log}
}

// Resolution is what the three-call sequence yields for one account.
type Resolution struct {
	Account  Account
	Invoices []model.Invoice
}

// Resolve performs unit lookup (standard family only), the protocol
// exchange and the invoice listing. A failed Result stops the account.
func (r *Resolver) Resolve(ctx context.Context, rec model.AccountRecord, profile distributor.Profile, a Adapter, token string) (Resolution, model.Result) {
	acct := Account{Record: rec, Profile: profile, Unit: rec.PaddedCode()}
	header := AuthHeader(token)
	log := r.log.WithFields(logrus.Fields{"distributor": profile.Name, "account": rec.PaddedCode()})

	if a.NeedsUnitLookup() {
		unit, res := r.lookupUnit(ctx, acct, a, header)
		if !res.OK() {
			return Resolution{}, res
		}
		acct.Unit = unit
		log = log.WithField("unit", unit)
	}

	resp, err := r.client.Get(ctx, profile.APIBaseHost+protocolPath, header, a.ProtocolParams(acct), SkipLiterals())
	if err != nil {
		log.WithError(err).Warn("protocol request failed")
		return Resolution{}, model.Fail(model.OutcomeSystemError, fmt.Sprintf("protocol: %v", err))
	}
	if !resp.OK() {
		return Resolution{}, ClassifyFailure("protocol", resp)
	}
	protocol, ok := a.ExtractProtocol(resp.Body)
	if !ok {
		log.Warn("protocol missing from response")
		return Resolution{}, model.Fail(model.OutcomeRetained, "protocol: no known protocol field")
	}
	acct.Protocol = protocol

	resp, err = r.client.Get(ctx, profile.APIBaseHost+invoicesPath, header, a.InvoiceParams(acct), SkipLiterals())
	if err != nil {
		log.WithError(err).Warn("invoice list request failed")
		return Resolution{}, model.Fail(model.OutcomeSystemError, fmt.Sprintf("invoices: %v", err))
	}
	if !resp.OK() {
		return Resolution{}, ClassifyFailure("invoices", resp)
	}
	invoices, err := a.ExtractInvoices(resp.Body)
	if err != nil {
		log.WithError(err).Warn("invoice list unreadable")
		return Resolution{}, model.Fail(model.OutcomeRetained, fmt.Sprintf("invoices: %v", err))
	}
	if len(invoices) == 0 {
		return Resolution{}, model.Fail(model.OutcomeNoInvoice, "invoices: empty list")
	}

	log.WithField("invoices", len(invoices)).Debug("invoices resolved")
	return Resolution{Account: acct, Invoices: invoices}, model.Result{}
}

type unitList struct {
	UCs []struct {
		UC json.RawMessage `json:"uc"`
	} `json:"ucs"`
}

func (r *Resolver) lookupUnit(ctx context.Context, acct Account, a Adapter, header http.Header) (string, model.Result) {
	endpoint := acct.Profile.APIBaseHost + fmt.Sprintf(unitsPath, url.PathEscape(acct.Record.LoginID))
	resp, err := r.client.Get(ctx, endpoint, header, a.UnitParams(acct), SkipLiterals())
	if err != nil {
		return "", model.Fail(model.OutcomeSystemError, fmt.Sprintf("units: %v", err))
	}
	if !resp.OK() {
		return "", ClassifyFailure("units", resp)
	}

	var list unitList
	if err := json.Unmarshal(resp.Body, &list); err != nil {
		return "", model.Fail(model.OutcomeRetained, fmt.Sprintf("units: %v", err))
	}
	want := trailingDigits(acct.Record.PaddedCode())
	for _, u := range list.UCs {
		code := rawString(u.UC)
		if code != "" && trailingDigits(model.PadAccountCode(code)) == want {
			return code, model.Result{}
		}
	}
	return "", model.Fail(model.OutcomeRetained, "units: account not listed for login")
}

func trailingDigits(code string) string {
	if len(code) <= unitMatchDigits {
		return code
	}
	return code[len(code)-unitMatchDigits:]
}

// AuthHeader builds the headers shared by every portal API call.
func AuthHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	h.Set("Accept", "application/json, application/pdf")
	return h
}

// DocumentURL is the download endpoint for one invoice.
func DocumentURL(profile distributor.Profile, inv model.Invoice) string {
	return profile.APIBaseHost + fmt.Sprintf(documentPath, url.PathEscape(inv.Number))
}
