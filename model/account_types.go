package model

import (
	"fmt"
	"strings"
)

// AccountRecord is one row of the account sheet: a consumer unit plus the
// portal credentials that can see it.
type AccountRecord struct {
	DistributorID int    `db:"distributor_id" json:"distributorId"`
	AccountCode   string `db:"account_code" json:"accountCode"`
	LoginID       string `db:"login_id" json:"loginId"`
	Password      string `db:"-" json:"-"`
}

// PaddedCode returns the account code left-padded with zeros to 12 digits.
func (r AccountRecord) PaddedCode() string {
	return PadAccountCode(r.AccountCode)
}

func PadAccountCode(code string) string {
	code = strings.TrimSpace(code)
	if len(code) >= 12 {
		return code
	}
	return strings.Repeat("0", 12-len(code)) + code
}

// AccountKey identifies an account inside one run's report.
func AccountKey(distributor, code string) string {
	return fmt.Sprintf("%s:%s", distributor, PadAccountCode(code))
}
