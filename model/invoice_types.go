package model

import "github.com/shopspring/decimal"

// Invoice is a provider invoice normalized from either API family.
// Reference keeps the raw period field exactly as the provider returned it;
// selection compares against it, Period is only used for ordering.
type Invoice struct {
	Reference string          `json:"reference"`
	Period    Period          `json:"period"`
	DueDate   string          `json:"dueDate"`
	Amount    decimal.Decimal `json:"amount"`
	Number    string          `json:"number"`
	TypeCode  string          `json:"typeCode"`
}
