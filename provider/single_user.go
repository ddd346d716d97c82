package provider

import (
	"encoding/json"
	"net/url"
	"strings"

	"faturas/distributor"
	"faturas/model"
)

// SingleUser is the family served through one fixed API user. The account
// code is the unit id, invoices come wrapped in a delivery envelope and the
// period field is a date ("2025-10-01").
type SingleUser struct{}

const singleUserStorageKey = "neoUser"

func (SingleUser) Family() distributor.Family { return distributor.FamilySingleUser }

func (SingleUser) StorageKeys() []string { return []string{singleUserStorageKey} }

// ExtractToken reads the "token" field of the JSON blob kept in storage and
// falls back to the raw value when the blob is not JSON.
func (SingleUser) ExtractToken(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	var blob map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return strings.Trim(raw, `"`)
	}
	return rawString(blob["token"])
}

func (SingleUser) NeedsUnitLookup() bool { return false }

func (SingleUser) ExtractProtocol(body []byte) (string, bool) {
	return extractProtocol(body)
}

func (SingleUser) ExtractInvoices(body []byte) ([]model.Invoice, error) {
	raws, err := decodeInvoices(body, true)
	if err != nil {
		return nil, err
	}
	out := make([]model.Invoice, 0, len(raws))
	for _, r := range raws {
		ref := r.DataCompetencia
		if ref == "" {
			ref = r.MesReferencia
		}
		out = append(out, r.normalize(ref, r.ValorFatura, r.ValorEmissao, r.TipoFatura, r.TipoArrecadacao))
	}
	return out, nil
}

// Matches checks the "YYYY-MM" prefix of the competence date.
func (SingleUser) Matches(inv model.Invoice, p model.Period) bool {
	return strings.HasPrefix(strings.TrimSpace(inv.Reference), p.Dashed())
}

func (SingleUser) UnitParams(a Account) url.Values { return nil }

func (SingleUser) ProtocolParams(a Account) url.Values {
	v := baseParams(a)
	v.Set("documento", a.Record.LoginID)
	v.Set("codCliente", a.Record.PaddedCode())
	return v
}

func (SingleUser) InvoiceParams(a Account) url.Values {
	v := baseParams(a)
	v.Set("codigo", a.Record.PaddedCode())
	v.Set("documento", a.Record.LoginID)
	v.Set("protocolo", a.Protocol)
	v.Set("tipificacao", tipificacao)
	v.Set("byPassActiv", byPassActiv)
	return v
}

func (SingleUser) PDFParams(a Account, inv model.Invoice) url.Values {
	a.Unit = a.Record.PaddedCode()
	return pdfParams(a)
}
