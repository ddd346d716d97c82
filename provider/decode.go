package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"faturas/model"
)

type rawInvoice struct {
	MesReferencia   string          `json:"mesReferencia"`
	DataCompetencia string          `json:"dataCompetencia"`
	DataVencimento  string          `json:"dataVencimento"`
	ValorEmissao    json.RawMessage `json:"valorEmissao"`
	ValorFatura     json.RawMessage `json:"valorFatura"`
	NumeroFatura    json.RawMessage `json:"numeroFatura"`
	TipoArrecadacao string          `json:"tipoArrecadacao"`
	TipoFatura      string          `json:"tipoFatura"`
}

type invoiceEnvelope struct {
	Faturas        []rawInvoice `json:"faturas"`
	EntregaFaturas *struct {
		Faturas []rawInvoice `json:"faturas"`
	} `json:"entregaFaturas"`
}

// decodeInvoices accepts a bare array, a flat {"faturas": [...]} object or
// the {"entregaFaturas": {"faturas": [...]}} delivery wrapper. nestedFirst
// decides which object shape wins when both are present.
func decodeInvoices(body []byte, nestedFirst bool) ([]rawInvoice, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var list []rawInvoice
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode invoice list: %w", err)
		}
		return list, nil
	}

	var env invoiceEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode invoice envelope: %w", err)
	}
	var nested []rawInvoice
	if env.EntregaFaturas != nil {
		nested = env.EntregaFaturas.Faturas
	}
	if nestedFirst {
		if len(nested) > 0 {
			return nested, nil
		}
		return env.Faturas, nil
	}
	if len(env.Faturas) > 0 {
		return env.Faturas, nil
	}
	return nested, nil
}

func (r rawInvoice) normalize(ref string, amount, altAmount json.RawMessage, typeCode, altType string) model.Invoice {
	inv := model.Invoice{
		Reference: strings.TrimSpace(ref),
		DueDate:   strings.TrimSpace(r.DataVencimento),
		Number:    rawString(r.NumeroFatura),
		TypeCode:  typeCode,
	}
	if inv.TypeCode == "" {
		inv.TypeCode = altType
	}
	if p, err := model.ParsePeriod(inv.Reference); err == nil {
		inv.Period = p
	}
	inv.Amount = parseAmount(amount)
	if inv.Amount.IsZero() {
		inv.Amount = parseAmount(altAmount)
	}
	return inv
}

// rawString renders a JSON string or number as text; null and other
// values yield "".
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// parseAmount reads amounts sent as numbers or strings, accepting the
// Brazilian decimal comma ("1.234,56").
func parseAmount(raw json.RawMessage) decimal.Decimal {
	s := rawString(raw)
	if s == "" {
		return decimal.Zero
	}
	// The comma is the decimal separator only when it follows the last dot
	// ("1.234,56"); otherwise it groups thousands ("1,234.56").
	if comma := strings.LastIndex(s, ","); comma >= 0 {
		if comma > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
