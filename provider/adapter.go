package provider

import (
	"net/url"

	"faturas/distributor"
	"faturas/model"
)

// Account carries everything the adapters need to build query parameters
// for one account. Unit and Protocol are filled in as the resolver advances.
type Account struct {
	Record   model.AccountRecord
	Profile  distributor.Profile
	Unit     string
	Protocol string
}

// Adapter hides the differences between the distributor API families:
// where the bearer token lives in browser storage, the shape of protocol
// and invoice responses, how periods are matched and which parameters each
// endpoint expects.
type Adapter interface {
	Family() distributor.Family
	StorageKeys() []string
	ExtractToken(raw string) string

	NeedsUnitLookup() bool
	ExtractProtocol(body []byte) (string, bool)
	ExtractInvoices(body []byte) ([]model.Invoice, error)
	Matches(inv model.Invoice, p model.Period) bool

	UnitParams(a Account) url.Values
	ProtocolParams(a Account) url.Values
	InvoiceParams(a Account) url.Values
	PDFParams(a Account, inv model.Invoice) url.Values
}

// For returns the adapter for a distributor's family.
func For(p distributor.Profile) Adapter {
	if p.Family == distributor.FamilySingleUser {
		return SingleUser{}
	}
	return Standard{}
}

const (
	unitsPath     = "/imoveis/1.1.0/clientes/%s/ucs"
	protocolPath  = "/protocolo/1.1.0/obterProtocolo"
	invoicesPath  = "/multilogin/2.0.0/servicos/faturas/ucs/faturas"
	documentPath  = "/multilogin/2.0.0/servicos/faturas/%s/pdf"
	tipificacao   = "1031602"
	motivoSegunda = "10"
	byPassActiv   = "X"
	tipoPerfil    = "1"
)

// protocolFields is the priority order in which protocol values are read.
var protocolFields = []string{
	"protocoloSalesforceStr",
	"protocoloLegadoStr",
	"protocolo",
	"protocoloSalesforce",
}

func baseParams(a Account) url.Values {
	return url.Values{
		"distribuidora":    {a.Profile.Name},
		"canalSolicitante": {a.Profile.ChannelCode},
		"regiao":           {a.Profile.RegionCode},
		"usuario":          {a.Profile.APIUser},
	}
}
