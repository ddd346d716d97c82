package provider

import (
	"encoding/json"
	"net/url"
	"strings"

	"faturas/distributor"
	"faturas/model"
)

// Standard is the multi-unit family: a login may see several units, so the
// account code is first mapped to an internal unit id.
type Standard struct{}

func (Standard) Family() distributor.Family { return distributor.FamilyStandard }

func (Standard) StorageKeys() []string { return []string{"tokenNeSe", "token"} }

func (Standard) ExtractToken(raw string) string {
	return strings.Trim(strings.TrimSpace(raw), `"`)
}

func (Standard) NeedsUnitLookup() bool { return true }

func (Standard) ExtractProtocol(body []byte) (string, bool) {
	return extractProtocol(body)
}

func (Standard) ExtractInvoices(body []byte) ([]model.Invoice, error) {
	raws, err := decodeInvoices(body, false)
	if err != nil {
		return nil, err
	}
	out := make([]model.Invoice, 0, len(raws))
	for _, r := range raws {
		ref := r.MesReferencia
		if ref == "" {
			ref = r.DataCompetencia
		}
		out = append(out, r.normalize(ref, r.ValorEmissao, r.ValorFatura, r.TipoArrecadacao, r.TipoFatura))
	}
	return out, nil
}

// Matches compares the month reference exactly, e.g. "2025/10".
func (Standard) Matches(inv model.Invoice, p model.Period) bool {
	return strings.TrimSpace(inv.Reference) == p.String()
}

func (Standard) UnitParams(a Account) url.Values {
	v := baseParams(a)
	v.Set("documento", a.Record.LoginID)
	v.Set("indMaisUcs", "X")
	return v
}

func (Standard) ProtocolParams(a Account) url.Values {
	v := baseParams(a)
	v.Set("documento", a.Record.LoginID)
	v.Set("codCliente", a.Unit)
	v.Set("recaptchaAnl", "false")
	return v
}

func (Standard) InvoiceParams(a Account) url.Values {
	v := baseParams(a)
	v.Set("codigo", a.Unit)
	v.Set("documento", a.Record.LoginID)
	v.Set("protocolo", a.Protocol)
	v.Set("tipificacao", tipificacao)
	v.Set("byPassActiv", byPassActiv)
	v.Set("documentoSolicitante", a.Record.LoginID)
	v.Set("documentoCliente", a.Record.LoginID)
	v.Set("tipoPerfil", tipoPerfil)
	return v
}

func (Standard) PDFParams(a Account, inv model.Invoice) url.Values {
	v := pdfParams(a)
	v.Set("documentoSolicitante", a.Record.LoginID)
	v.Set("documentoCliente", a.Record.LoginID)
	return v
}

func pdfParams(a Account) url.Values {
	v := baseParams(a)
	v.Set("codigo", a.Unit)
	v.Set("protocolo", a.Protocol)
	v.Set("tipificacao", tipificacao)
	v.Set("motivo", motivoSegunda)
	v.Set("tipoPerfil", tipoPerfil)
	v.Set("documento", a.Record.LoginID)
	v.Set("byPassActiv", byPassActiv)
	return v
}

func extractProtocol(body []byte) (string, bool) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return "", false
	}
	for _, field := range protocolFields {
		raw, ok := m[field]
		if !ok {
			continue
		}
		if s := rawString(raw); s != "" {
			return s, true
		}
	}
	return "", false
}
