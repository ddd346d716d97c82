package provider

import "faturas/model"

// Select returns the first invoice whose period field matches p.
func Select(invoices []model.Invoice, p model.Period, a Adapter) (model.Invoice, bool) {
	for _, inv := range invoices {
		if a.Matches(inv, p) {
			return inv, true
		}
	}
	return model.Invoice{}, false
}

// LatestPeriod returns the most recent parsable invoice period.
func LatestPeriod(invoices []model.Invoice) (model.Period, bool) {
	var latest model.Period
	found := false
	for _, inv := range invoices {
		if inv.Period.IsZero() {
			continue
		}
		if !found || inv.Period.After(latest) {
			latest = inv.Period
			found = true
		}
	}
	return latest, found
}

// IsInactive reports whether the newest invoice is at or before cutoff.
// A zero cutoff disables the check.
func IsInactive(invoices []model.Invoice, cutoff model.Period) bool {
	if cutoff.IsZero() {
		return false
	}
	latest, ok := LatestPeriod(invoices)
	if !ok {
		return false
	}
	return !latest.After(cutoff)
}
